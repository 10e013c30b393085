package handler

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-callback-links/pkg/config"
	"github.com/wadjakorntonsri/go-callback-links/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, service ports.LinkService, log zerolog.Logger) http.Handler {
	h := NewHTTPHandler(service, cfg.PublicBaseURL, cfg.TrustProxy)
	mw := NewMiddleware(log, NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), cfg.TrustProxy)

	mux := http.NewServeMux()
	route := func(pattern string, handler http.Handler) {
		mux.Handle(pattern, mw.Metrics(pattern, handler))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		res := map[string]string{
			"message": "ok",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(&res)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	route("POST /create-link", mw.RateLimit(http.HandlerFunc(h.CreateLink)))
	route("GET /redirect/{token}", http.HandlerFunc(h.Redirect))

	return mw.RequestID(mw.Logger(mw.Recovery(mux)))
}
