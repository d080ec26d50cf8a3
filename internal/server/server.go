// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tutorloop/matchflow-go/internal/api"
	"github.com/tutorloop/matchflow-go/internal/clock"
	"github.com/tutorloop/matchflow-go/internal/config"
	"github.com/tutorloop/matchflow-go/internal/identity"
	"github.com/tutorloop/matchflow-go/internal/interceptors"
	"github.com/tutorloop/matchflow-go/internal/match/actions"
	"github.com/tutorloop/matchflow-go/internal/match/calendar"
	"github.com/tutorloop/matchflow-go/internal/match/digest"
	"github.com/tutorloop/matchflow-go/internal/match/fallback"
	"github.com/tutorloop/matchflow-go/internal/match/onboarding"
	"github.com/tutorloop/matchflow-go/internal/match/requests"
	"github.com/tutorloop/matchflow-go/internal/platform/cache"
	tlspkg "github.com/tutorloop/matchflow-go/internal/platform/http/tls"
)

var ErrMissingDep = errors.New("missing required dependency")

// Deps holds all server dependencies.
type Deps struct {
	// Required: identity and auth
	PartyRepo   identity.PartyRepo
	SessionRepo identity.SessionRepo
	UserAuth    *identity.UserAuth

	// Optional: time source (nil uses the system clock)
	Clock clock.Clock

	// Optional: counter backend for rate limiting interceptors
	Cache cache.Counter

	// Optional: lifecycle notification sender
	Notifier requests.NotificationSender

	// Optional: persistence repos (nil uses in-memory)
	RequestRepo    requests.Repo
	OnboardingRepo onboarding.Repo
	ActionRepo     actions.Repo
	SuggestionRepo fallback.Repo
	CalendarRepo   calendar.Repo
	DigestRepo     digest.Repo
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg            *config.Config
	httpServer     *http.Server
	logger         *slog.Logger
	deps           *Deps
	trustedProxies *TrustedProxies
	chain          []interceptors.Middleware

	ledger *requests.Ledger

	authHandler       *api.AuthHandler
	requestsHandler   *requests.Handler
	onboardingHandler *onboarding.Handler
	actionsHandler    *actions.Handler
	fallbackHandler   *fallback.Handler
	calendarHandler   *calendar.Handler
	digestHandler     *digest.Handler
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	initializeDefaultRepos(deps)

	clk := deps.Clock
	if clk == nil {
		clk = clock.System{}
	}

	var ledgerOpts []requests.Option
	if deps.Notifier != nil {
		ledgerOpts = append(ledgerOpts, requests.WithNotifier(deps.Notifier))
	}
	if cfg.Sweep.WarningHorizonMinutes > 0 {
		ledgerOpts = append(ledgerOpts,
			requests.WithWarningHorizon(time.Duration(cfg.Sweep.WarningHorizonMinutes)*time.Minute))
	}
	ledger := requests.NewLedger(deps.RequestRepo, clk, logger, ledgerOpts...)

	tracker := onboarding.NewTracker(deps.OnboardingRepo)
	resolver := actions.NewResolver(deps.ActionRepo)
	engine := fallback.NewEngine(deps.SuggestionRepo)
	projector := calendar.NewProjector(deps.CalendarRepo)
	aggregator := digest.NewAggregator(deps.DigestRepo)

	sessionTTL := time.Duration(cfg.Server.SessionTTLMinutes) * time.Minute
	authHandler := api.NewAuthHandler(deps.PartyRepo, deps.SessionRepo, deps.UserAuth, sessionTTL)

	trustedProxies := NewTrustedProxies(cfg.Server.TrustedProxies)

	chain, err := interceptors.Chain(cfg.Interceptors, interceptors.Deps{
		Cache:    deps.Cache,
		ClientIP: trustedProxies.GetClientIPString,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build interceptor chain: %w", err)
	}

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		deps:           deps,
		trustedProxies: trustedProxies,
		chain:          chain,

		ledger: ledger,

		authHandler:       authHandler,
		requestsHandler:   requests.NewHandler(ledger, clk, logger),
		onboardingHandler: onboarding.NewHandler(tracker),
		actionsHandler:    actions.NewHandler(resolver, deps.ActionRepo),
		fallbackHandler:   fallback.NewHandler(engine),
		calendarHandler:   calendar.NewHandler(projector, deps.CalendarRepo),
		digestHandler:     digest.NewHandler(aggregator, deps.DigestRepo, clk),
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Ledger returns the request ledger so callers can attach the expiry
// sweeper to the same instance the handlers use.
func (s *Server) Ledger() *requests.Ledger {
	return s.ledger
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"external_origin", s.cfg.ExternalOrigin,
		"tls_mode", s.cfg.TLS.Mode,
	)

	switch s.cfg.TLS.Mode {
	case "off":
		return s.httpServer.ListenAndServe()

	case "acme":
		return s.startACME()

	case "static", "selfsigned":
		tlsManager := tlspkg.NewTLSManager(&s.cfg.TLS, s.logger)
		hostname := extractHostname(s.cfg.ExternalOrigin)
		tlsConfig, err := tlsManager.GetTLSConfig(hostname)
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		if tlsConfig == nil {
			return fmt.Errorf("TLS config is nil for mode %s", s.cfg.TLS.Mode)
		}

		s.httpServer.TLSConfig = tlsConfig
		s.logger.Info("starting server with TLS", "mode", s.cfg.TLS.Mode)

		// Certs live in TLSConfig.Certificates; empty file args use them.
		return s.httpServer.ListenAndServeTLS("", "")

	default:
		return fmt.Errorf("%w: %s", tlspkg.ErrInvalidTLSMode, s.cfg.TLS.Mode)
	}
}

// startACME obtains a certificate via ACME, serves HTTP-01 challenges
// and redirects on the plain HTTP port, and then serves the API over
// TLS on the main listen address.
func (s *Server) startACME() error {
	rootCAs, err := tlspkg.BuildRootCAPool(s.cfg.TLS.ACME.RootCAFile, s.cfg.TLS.ACME.RootCADir)
	if err != nil {
		return fmt.Errorf("failed to build ACME root CA pool: %w", err)
	}

	acme := tlspkg.NewACMEManager(&s.cfg.TLS.ACME, s.logger, rootCAs)

	// The challenge listener must be up before Init talks to the ACME
	// server, or validation requests would hit a closed port.
	httpAddr := fmt.Sprintf(":%d", s.cfg.TLS.HTTPPort)
	challengeServer := &http.Server{
		Addr:         httpAddr,
		Handler:      s.challengeOrRedirect(acme),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Info("starting ACME challenge listener", "addr", httpAddr)
		if err := challengeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ACME challenge listener failed", "error", err)
		}
	}()
	defer challengeServer.Close()

	if err := acme.Init(context.Background()); err != nil {
		return fmt.Errorf("ACME initialization failed: %w", err)
	}

	s.httpServer.TLSConfig = acme.GetTLSConfig()
	s.logger.Info("starting server with ACME TLS", "domain", s.cfg.TLS.ACME.Domain)
	return s.httpServer.ListenAndServeTLS("", "")
}

// challengeOrRedirect serves ACME challenges and redirects everything
// else to the HTTPS origin.
func (s *Server) challengeOrRedirect(acme *tlspkg.ACMEManager) http.Handler {
	challenge := acme.ChallengeHandler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) >= len("/.well-known/acme-challenge/") &&
			r.URL.Path[:len("/.well-known/acme-challenge/")] == "/.well-known/acme-challenge/" {
			challenge.ServeHTTP(w, r)
			return
		}
		target := s.cfg.ExternalOrigin + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// extractHostname extracts just the hostname from an external origin
// URL, without scheme or port. TLS certificate generation needs it.
func extractHostname(externalOrigin string) string {
	host := externalOrigin
	if idx := len("https://"); len(host) > idx && host[:idx] == "https://" {
		host = host[idx:]
	} else if idx := len("http://"); len(host) > idx && host[:idx] == "http://" {
		host = host[idx:]
	}
	if len(host) > 0 && host[len(host)-1] == '/' {
		host = host[:len(host)-1]
	}
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
		if host[i] == ']' {
			// IPv6 address like [::1]:8080
			break
		}
	}
	return host
}

// validateDeps checks that all required dependencies are provided.
func validateDeps(deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}

	if deps.PartyRepo == nil {
		return fmt.Errorf("%w: PartyRepo", ErrMissingDep)
	}
	if deps.SessionRepo == nil {
		return fmt.Errorf("%w: SessionRepo", ErrMissingDep)
	}
	if deps.UserAuth == nil {
		return fmt.Errorf("%w: UserAuth", ErrMissingDep)
	}

	return nil
}

// initializeDefaultRepos initializes in-memory repos for optional
// dependencies that are nil, so handlers always have valid repos.
func initializeDefaultRepos(deps *Deps) {
	if deps.RequestRepo == nil {
		deps.RequestRepo = requests.NewMemoryRepo()
	}
	if deps.OnboardingRepo == nil {
		deps.OnboardingRepo = onboarding.NewMemoryRepo()
	}
	if deps.ActionRepo == nil {
		deps.ActionRepo = actions.NewMemoryRepo()
	}
	if deps.SuggestionRepo == nil {
		deps.SuggestionRepo = fallback.NewMemoryRepo()
	}
	if deps.CalendarRepo == nil {
		deps.CalendarRepo = calendar.NewMemoryRepo()
	}
	if deps.DigestRepo == nil {
		deps.DigestRepo = digest.NewMemoryRepo()
	}
}
