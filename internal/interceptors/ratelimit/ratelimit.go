// Package ratelimit provides a rate limiting interceptor using the cache subsystem.
package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tutorloop/matchflow-go/internal/api"
	"github.com/tutorloop/matchflow-go/internal/interceptors"
	"github.com/tutorloop/matchflow-go/internal/platform/cache"
	"github.com/tutorloop/matchflow-go/internal/platform/cfgutil"
	"github.com/tutorloop/matchflow-go/internal/platform/logutil"
)

func init() {
	interceptors.Register("ratelimit", New)
}

// Config defines rate limiting parameters decoded from interceptor config.
type Config struct {
	Enabled           bool  `mapstructure:"enabled"`
	RequestsPerWindow int64 `mapstructure:"requests_per_window"`
	WindowSeconds     int   `mapstructure:"window_seconds"`
}

// ApplyDefaults sets reasonable defaults for unconfigured fields.
func (c *Config) ApplyDefaults() {
	if c.RequestsPerWindow == 0 {
		c.RequestsPerWindow = 100
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = 60
	}
}

// Limiter provides rate limiting using a cache backend with
// trusted-proxy-aware keying.
type Limiter struct {
	cache   cache.Counter
	keyFunc func(*http.Request) string
	limit   int64
	window  time.Duration
	log     *slog.Logger
}

// New creates a new ratelimit interceptor from the given config block.
func New(conf map[string]any, deps interceptors.Deps) (interceptors.Middleware, error) {
	var c Config
	if err := cfgutil.Decode(conf, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()

	limiter := NewLimiter(deps.Cache, deps.ClientIP, c.RequestsPerWindow, time.Duration(c.WindowSeconds)*time.Second, deps.Logger)
	return limiter.Wrap, nil
}

// NewLimiter creates a limiter with explicit dependencies.
func NewLimiter(counter cache.Counter, keyFunc func(*http.Request) string, limit int64, window time.Duration, log *slog.Logger) *Limiter {
	if keyFunc == nil {
		keyFunc = func(r *http.Request) string { return r.RemoteAddr }
	}
	return &Limiter{
		cache:   counter,
		keyFunc: keyFunc,
		limit:   limit,
		window:  window,
		log:     logutil.NoopIfNil(log),
	}
}

// Wrap is the middleware function that applies rate limiting.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.keyFunc(r)
		count, resetAt, err := l.cache.Increment(r.Context(), "ratelimit:"+key, 1, l.window)
		if err != nil {
			// On error, log and allow the request through
			l.log.Warn("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if count > l.limit {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			api.WriteTooManyRequests(w, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WithKeyFunc returns a new Limiter with a custom key function.
func (l *Limiter) WithKeyFunc(fn func(*http.Request) string) *Limiter {
	return &Limiter{
		cache:   l.cache,
		keyFunc: fn,
		limit:   l.limit,
		window:  l.window,
		log:     l.log,
	}
}
