// Package interceptors provides cross-cutting HTTP middleware behind a
// registry, so the middleware chain is assembled from configuration.
package interceptors

import (
	"log/slog"
	"net/http"

	"github.com/tutorloop/matchflow-go/internal/platform/cache"
)

// Middleware is an HTTP middleware function.
type Middleware func(http.Handler) http.Handler

// Deps carries the shared resources an interceptor may need.
type Deps struct {
	// Cache backs counters for rate limiting.
	Cache cache.Counter

	// ClientIP resolves the client address, honoring trusted proxies.
	ClientIP func(*http.Request) string

	// Logger for interceptor diagnostics.
	Logger *slog.Logger
}

// NewInterceptor is the constructor function type for interceptors.
type NewInterceptor func(conf map[string]any, deps Deps) (Middleware, error)
