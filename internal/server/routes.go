package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tutorloop/matchflow-go/internal/api"
)

// RouteGroup defines an endpoint group with its auth requirements.
type RouteGroup struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
}

// routeGroups defines all endpoint groups and their auth requirements.
// This table is the single source of truth for routing decisions.
var routeGroups = []RouteGroup{
	{Name: "api", PathPrefix: "/api", RequiresAuth: true}, // exceptions in publicExceptions
}

// GetRouteGroups returns the route group definitions for testing.
func GetRouteGroups() []RouteGroup {
	return routeGroups
}

// publicExceptions are specific paths that don't require auth within
// otherwise protected groups.
var publicExceptions = []string{
	"/api/healthz",
	"/api/auth/login",
}

// IsAuthRequired checks if a given path requires authentication.
// This is used by the auth middleware to make gating decisions.
func IsAuthRequired(path string) bool {
	for _, exc := range publicExceptions {
		if pathMatchesPrefix(path, exc) {
			return false
		}
	}

	for _, rg := range routeGroups {
		if pathMatchesPrefix(path, rg.PathPrefix) {
			return rg.RequiresAuth
		}
	}

	// Default: require auth for unknown paths
	return true
}

// pathMatchesPrefix checks if path equals or is a subpath of prefix.
func pathMatchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		if path[len(prefix)] == '/' {
			return true
		}
	}
	return false
}

// setupRoutes creates the chi router with all route groups mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Global middleware stack (order matters for correct logging)
	// RequestID must come first so GetReqID works in the access log.
	// loggingMiddleware wraps the response, Recoverer writes through
	// the wrapper, so the access log captures correct status on panics.
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Configured interceptors (rate limiting and friends)
	for _, mw := range s.chain {
		r.Use(mw)
	}

	// Auth middleware for all routes (checks IsAuthRequired)
	r.Use(s.authMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Health endpoint (public)
		r.Get("/healthz", api.HealthHandler)

		// Auth endpoints (login is public, logout/me need a session)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.authHandler.Login)
			r.Post("/logout", s.authHandler.Logout)
			r.Get("/me", s.authHandler.GetCurrentUser)
		})

		// Matching request lifecycle. Static segments are registered
		// before the {requestID} subtree so "expiring" and "summary"
		// never parse as request ids.
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", s.requestsHandler.HandleCreate)
			r.Get("/", s.requestsHandler.HandleList)
			r.Get("/expiring", s.requestsHandler.HandleExpiring)
			r.Get("/summary", s.requestsHandler.HandleSummary)

			r.Route("/{requestID}", func(r chi.Router) {
				r.Get("/", s.requestsHandler.HandleGet)
				r.Post("/accept", s.requestsHandler.HandleAccept)
				r.Post("/decline", s.requestsHandler.HandleDecline)
				r.Get("/suggestions", s.fallbackHandler.HandleGet)
				r.Put("/suggestions", s.fallbackHandler.HandlePut)
			})
		})

		// Onboarding completion tracking
		r.Route("/onboarding/{userID}", func(r chi.Router) {
			r.Get("/", s.onboardingHandler.HandleGet)
			r.Put("/", s.onboardingHandler.HandleSet)
		})

		// Next-best-action lookup
		r.Route("/actions/{role}/{targetID}", func(r chi.Router) {
			r.Get("/", s.actionsHandler.HandleResolve)
			r.Put("/", s.actionsHandler.HandlePut)
		})

		// Calendar projection
		r.Post("/calendar", s.calendarHandler.HandleRecord)
		r.Get("/calendar/{role}/{ownerID}", s.calendarHandler.HandleList)

		// Digests
		r.Post("/digests", s.digestHandler.HandleAppend)
		r.Get("/digests/{role}/{targetID}/latest", s.digestHandler.HandleLatest)
	})

	return r
}
