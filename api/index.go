package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/go-callback-links/pkg/app"
	"github.com/wadjakorntonsri/go-callback-links/pkg/config"
	"github.com/wadjakorntonsri/go-callback-links/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, false)

	// Serverless instances do not share memory: point DEDUP_BACKEND at redis
	// or a Turso DATABASE_URL, and keep delays short enough to finish in-instance.
	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		panic(err)
	}
	mux = a.Handler()
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
