package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const DefaultSecret = "default-key-please-change"

type Config struct {
	Port          string
	AppEnv        string
	PublicBaseURL string
	TrustProxy    bool

	TokenSecret    string
	TokenAlgorithm string

	DedupBackend    string
	RedisURL        string
	RedisKeyPrefix  string
	DatabaseURL     string
	DedupRetention  time.Duration
	DedupMaxRecords int
	PurgeSchedule   string

	CallbackTimeout time.Duration
	CallbackOAuth   OAuthConfig

	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration

	LogLevel  string
	LogPretty bool
}

// OAuthConfig enables client-credentials bearer tokens on outbound callbacks
// when TokenURL is set.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (o OAuthConfig) Enabled() bool { return o.TokenURL != "" }

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:          getEnv("PORT", "8080"),
		AppEnv:        getEnv("APP_ENV", "local"),
		PublicBaseURL: strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", ""), "/"),
		TrustProxy:    isTruthy(getEnv("TRUST_PROXY", "false")),

		TokenSecret:    getEnv("SECRET_KEY", DefaultSecret),
		TokenAlgorithm: getEnv("ALGORITHM", "HS256"),

		DedupBackend:    getEnv("DEDUP_BACKEND", "memory"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisKeyPrefix:  getEnv("REDIS_KEY_PREFIX", "links:"),
		DatabaseURL:     getEnv("DATABASE_URL", "file:visits.sqlite"),
		DedupRetention:  getDuration("DEDUP_RETENTION", 30*24*time.Hour),
		DedupMaxRecords: getInt("DEDUP_MAX_RECORDS", 100_000),
		PurgeSchedule:   getEnv("PURGE_SCHEDULE", "@every 1h"),

		CallbackTimeout: getDuration("CALLBACK_TIMEOUT", 10*time.Second),
		CallbackOAuth: OAuthConfig{
			TokenURL:     getEnv("CALLBACK_OAUTH_TOKEN_URL", ""),
			ClientID:     getEnv("CALLBACK_OAUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("CALLBACK_OAUTH_CLIENT_SECRET", ""),
			Scopes:       splitList(getEnv("CALLBACK_OAUTH_SCOPES", "")),
		},

		RateLimitRPS:    getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:  getInt("RATE_LIMIT_BURST", 10),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: isTruthy(getEnv("LOG_PRETTY", "false")),
	}
}

// Validate rejects configurations that must not reach production.
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return errors.New("SECRET_KEY must not be empty")
	}
	if c.AppEnv == "production" && c.TokenSecret == DefaultSecret {
		return errors.New("SECRET_KEY must be changed in production")
	}
	// the base URL is part of the dedup key, a client-supplied Host would let
	// visitors mint fresh keys
	if c.AppEnv == "production" && c.PublicBaseURL == "" {
		return errors.New("PUBLIC_BASE_URL must be set in production")
	}
	if c.DedupRetention <= 0 {
		return errors.New("DEDUP_RETENTION must be positive")
	}
	if c.CallbackTimeout <= 0 {
		return errors.New("CALLBACK_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Dur("default", fallback).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Int("default", fallback).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Float64("default", fallback).Msg("invalid number, using default")
		return fallback
	}
	return f
}

// isTruthy accepts "1", "true", "yes", "y", "on" in any case.
func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
		out = append(out, part)
	}
	return out
}
