// Package main is the entrypoint for the matchflow-go server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tutorloop/matchflow-go/internal/clock"
	"github.com/tutorloop/matchflow-go/internal/config"
	"github.com/tutorloop/matchflow-go/internal/identity"
	"github.com/tutorloop/matchflow-go/internal/platform/cache"
	"github.com/tutorloop/matchflow-go/internal/server"
	"github.com/tutorloop/matchflow-go/internal/store"
	"github.com/tutorloop/matchflow-go/internal/sweeper"

	// Register drivers and interceptors
	_ "github.com/tutorloop/matchflow-go/internal/interceptors/ratelimit"
	_ "github.com/tutorloop/matchflow-go/internal/platform/cache/loader"
	_ "github.com/tutorloop/matchflow-go/internal/store/loader"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalOrigin := flag.String("external-origin", "", "External origin (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory, sqlite, or json (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory or valkey (overrides config)")
	adminUsername := flag.String("admin-username", "", "Bootstrap admin username (overrides config)")
	adminPassword := flag.String("admin-password", "", "Bootstrap admin password (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config with precedence: mode preset -> TOML file -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:     listenAddr,
			ExternalOrigin: externalOrigin,
			TLSMode:        tlsMode,
			StoreDriver:    storeDriver,
			CacheDriver:    cacheDriver,
			AdminUsername:  adminUsername,
			AdminPassword:  adminPassword,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Mode == string(config.ModeDev) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence driver
	db, err := store.New(cfg.Store.Driver, driverBlock(cfg.Store.Drivers, cfg.Store.Driver), logger)
	if err != nil {
		logger.Error("failed to create store driver", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	if err := db.Init(ctx); err != nil {
		logger.Error("failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("store initialized", "driver", db.Name())

	// Cache driver backing rate limiting counters
	counters, err := cache.NewDriver(cfg.Cache.Driver, driverBlock(cfg.Cache.Drivers, cfg.Cache.Driver), logger)
	if err != nil {
		logger.Error("failed to create cache driver", "driver", cfg.Cache.Driver, "error", err)
		os.Exit(1)
	}
	defer counters.Close()

	// Identity and bootstrap admin
	clk := clock.System{}
	sessionRepo := identity.NewMemorySessionRepo(clk)
	userAuth := identity.NewUserAuth(0) // 0 selects the bcrypt default cost

	admin := cfg.Server.BootstrapAdmin
	if admin.Username != "" {
		if admin.Password == "" {
			generated, err := identity.GenerateToken()
			if err != nil {
				logger.Error("failed to generate admin password", "error", err)
				os.Exit(1)
			}
			admin.Password = generated
			// Logged once at startup; not recoverable afterwards.
			logger.Info("generated bootstrap admin password",
				"username", admin.Username, "password", generated)
		}
		bootstrap := identity.NewBootstrap(db, userAuth, logger)
		created, err := bootstrap.Run(ctx, identity.SeededUser{
			Username: admin.Username,
			Password: admin.Password,
			Role:     identity.RoleAdmin,
		}, nil)
		if err != nil {
			logger.Error("bootstrap failed", "error", err)
			os.Exit(1)
		}
		if created > 0 {
			logger.Info("bootstrap admin created", "username", admin.Username)
		}
	}

	srv, err := server.New(cfg, logger, &server.Deps{
		PartyRepo:   db,
		SessionRepo: sessionRepo,
		UserAuth:    userAuth,
		Clock:       clk,
		Cache:       counters,

		RequestRepo:    db,
		OnboardingRepo: db,
		ActionRepo:     db,
		SuggestionRepo: db,
		CalendarRepo:   db,
		DigestRepo:     db,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Background expiry sweep
	sw := sweeper.New(srv.Ledger(), clk,
		time.Duration(cfg.Sweep.IntervalSeconds)*time.Second, logger)
	go sw.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

// driverBlock extracts the named driver's config block from the
// per-driver settings map.
func driverBlock(drivers map[string]any, name string) map[string]any {
	block, ok := drivers[name].(map[string]any)
	if !ok {
		return nil
	}
	return block
}
