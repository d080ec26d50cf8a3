package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/tutorloop/matchflow-go/internal/api"
	"github.com/tutorloop/matchflow-go/internal/identity"
)

type contextKey string

const (
	// SessionContextKey is the context key for the current session.
	SessionContextKey contextKey = "session"
	// UserContextKey is the context key for the current user.
	UserContextKey contextKey = "user"
)

// loggingMiddleware logs request information using slog.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", s.trustedProxies.GetClientIPString(r),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// authMiddleware enforces session authentication.
// Public endpoints (health, login) bypass auth.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthRequired(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := api.ExtractToken(r)
		if token == "" {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
			return
		}

		session, err := s.deps.SessionRepo.Get(r.Context(), token)
		if errors.Is(err, identity.ErrSessionExpired) {
			api.WriteUnauthorized(w, api.ReasonSessionExpired, "session has expired")
			return
		}
		if err != nil {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "session not found")
			return
		}

		user, err := s.deps.PartyRepo.Get(r.Context(), session.UserID)
		if err != nil {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "session user not found")
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, SessionContextKey, session)
		ctx = context.WithValue(ctx, UserContextKey, user)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionFromContext returns the session from request context.
func GetSessionFromContext(ctx context.Context) *identity.Session {
	session, _ := ctx.Value(SessionContextKey).(*identity.Session)
	return session
}

// GetUserFromContext returns the user from request context.
func GetUserFromContext(ctx context.Context) *identity.User {
	user, _ := ctx.Value(UserContextKey).(*identity.User)
	return user
}
