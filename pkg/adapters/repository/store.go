// Package repository selects the dedup backend named in the configuration.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/wadjakorntonsri/go-callback-links/pkg/adapters/repository/memory"
	redisrepo "github.com/wadjakorntonsri/go-callback-links/pkg/adapters/repository/redis"
	"github.com/wadjakorntonsri/go-callback-links/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-callback-links/pkg/config"
	"github.com/wadjakorntonsri/go-callback-links/pkg/ports"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// NewVisitStore builds the configured VisitStore. Durable backends are
// pinged up front so a bad address fails at startup.
func NewVisitStore(ctx context.Context, cfg *config.Config) (ports.VisitStore, error) {
	switch strings.ToLower(cfg.DedupBackend) {
	case BackendMemory, "":
		return memory.NewVisitStore(cfg.DedupRetention, memory.WithMaxRecords(cfg.DedupMaxRecords)), nil
	case BackendRedis:
		return redisrepo.NewVisitStore(ctx, cfg.RedisURL, cfg.RedisKeyPrefix, cfg.DedupRetention)
	case BackendSQLite:
		return sqlite.NewVisitRepository(ctx, cfg.DatabaseURL, cfg.DedupRetention)
	default:
		return nil, fmt.Errorf("unknown dedup backend %q", cfg.DedupBackend)
	}
}
