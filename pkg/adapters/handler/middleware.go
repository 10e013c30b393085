package handler

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/wadjakorntonsri/go-callback-links/pkg/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps the raw query logged per request.
	maxQueryLogLength = 2048
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyLogger
)

// statusRecorder captures the status code and bytes written for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

type Middleware struct {
	log        zerolog.Logger
	limiter    *RateLimiter
	trustProxy bool
}

// NewMiddleware builds the middleware set. trustProxy makes X-Forwarded-For
// the client address for logging and rate limiting.
func NewMiddleware(log zerolog.Logger, limiter *RateLimiter, trustProxy bool) *Middleware {
	return &Middleware{log: log, limiter: limiter, trustProxy: trustProxy}
}

// RequestID reuses an incoming X-Request-ID or generates one, echoes it on
// the response and stores it in the request context.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger attaches a request-scoped logger and writes one access log line
// per request: error for 5xx, warn for 4xx, info otherwise.
func (m *Middleware) Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := m.log.With().
			Str("request_id", RequestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_ip", clientIP(r, m.trustProxy)).
			Str("user_agent", r.UserAgent()).
			Str("query", truncate(r.URL.RawQuery, maxQueryLogLength)).
			Logger()

		rec := &statusRecorder{ResponseWriter: w}
		ctx := context.WithValue(r.Context(), ctxKeyLogger, &l)
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", rec.bytes).
			Msg("request")
	})
}

// Recovery converts panics into a JSON 500 and logs the stack.
func (m *Middleware) Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				m.log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", RequestIDFrom(r.Context())).
					Msg("panic recovered")
				writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Metrics records request counts and latency. pattern is the registered
// route so label cardinality stays bounded.
func (m *Middleware) Metrics(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.HTTPInflight.Inc()
		defer metrics.HTTPInflight.Dec()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		metrics.HTTPRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.Status())).Inc()
		metrics.HTTPLatency.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// RateLimit applies the per-IP limiter, when configured.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	if m.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter.Allow(clientIP(r, m.trustProxy)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter keeps one token bucket per key and forgets idle keys.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  uint64
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns nil when rps <= 0, which disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      10 * time.Minute,
		visitors: make(map[string]*visitor),
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	rl.lookups++
	if rl.lookups >= 5000 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	lim := v.limiter
	rl.mu.Unlock()

	return lim.Allow()
}

// RequestIDFrom returns the request ID stored by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// LoggerFrom returns the request-scoped logger, falling back to the global one.
func LoggerFrom(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(*zerolog.Logger); ok {
		return l
	}
	l := log.With().Logger()
	return &l
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := firstHeaderValue(r.Header.Get("X-Forwarded-For")); fwd != "" {
			return fwd
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
