package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "":
		return ModeProd, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of prod, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr     *string
	ExternalOrigin *string
	TLSMode        *string
	StoreDriver    *string
	CacheDriver    *string
	AdminUsername  *string
	AdminPassword  *string
}

// fileConfig mirrors Config but with pointer sections to detect presence.
type fileConfig struct {
	Mode string `toml:"mode"`

	ExternalOrigin string `toml:"external_origin"`
	ListenAddr     string `toml:"listen_addr"`

	Server       *serverConfig             `toml:"server"`
	TLS          *TLSConfig                `toml:"tls"`
	Store        *storeConfig              `toml:"store"`
	Cache        *cacheConfig              `toml:"cache"`
	Sweep        *sweepConfig              `toml:"sweep"`
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

type serverConfig struct {
	TrustedProxies    []string        `toml:"trusted_proxies"`
	BootstrapAdmin    *bootstrapAdmin `toml:"bootstrap_admin"`
	SessionTTLMinutes int             `toml:"session_ttl_minutes"`
}

type bootstrapAdmin struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type storeConfig struct {
	Driver  string         `toml:"driver"`
	Drivers map[string]any `toml:"drivers"`
}

type cacheConfig struct {
	Driver  string         `toml:"driver"`
	Drivers map[string]any `toml:"drivers"`
}

type sweepConfig struct {
	IntervalSeconds       int `toml:"interval_seconds"`
	WarningHorizonMinutes int `toml:"warning_horizon_minutes"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (prod)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate enum fields
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	// Step 1: Load TOML file if provided
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		// Warn about undecoded keys (do not fail)
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	// Step 2: Determine effective mode
	modeStr := string(ModeProd)
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	// Step 3: Start from mode preset
	cfg := presetForMode(mode)

	// Step 4: Overlay TOML values
	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	// Step 5: Overlay CLI flags
	overlayFlags(cfg, opts.FlagOverrides)

	// Step 6: Validate enum fields (fatal on invalid values)
	if err := validateEnums(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return ProdConfig()
}

// ProdConfig returns production-safe defaults.
func ProdConfig() *Config {
	return &Config{
		Mode:           string(ModeProd),
		ExternalOrigin: "https://localhost:9400",
		ListenAddr:     ":9400",
		Server: ServerConfig{
			TrustedProxies:    []string{"127.0.0.0/8", "::1/128"},
			SessionTTLMinutes: 1440,
		},
		TLS: TLSConfig{
			Mode:          "selfsigned",
			HTTPPort:      9480,
			HTTPSPort:     9400,
			SelfSignedDir: ".matchflow/certs",
			ACME: ACMEConfig{
				Directory:  "https://acme-v02.api.letsencrypt.org/directory",
				StorageDir: ".matchflow/acme",
				UseStaging: false,
			},
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Drivers: map[string]any{
				"sqlite": map[string]any{"path": ".matchflow/matchflow.db"},
			},
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Sweep: SweepConfig{
			IntervalSeconds:       60,
			WarningHorizonMinutes: 120,
		},
	}
}

// DevConfig returns development mode defaults.
func DevConfig() *Config {
	cfg := ProdConfig()
	cfg.Mode = string(ModeDev)
	cfg.TLS.Mode = "off"
	cfg.TLS.ACME.Directory = "https://acme-staging-v02.api.letsencrypt.org/directory"
	cfg.TLS.ACME.UseStaging = true
	cfg.Store.Driver = "memory"
	cfg.Sweep.IntervalSeconds = 10
	return cfg
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ExternalOrigin != "" {
		cfg.ExternalOrigin = fc.ExternalOrigin
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}

	if fc.Server != nil {
		if len(fc.Server.TrustedProxies) > 0 {
			cfg.Server.TrustedProxies = fc.Server.TrustedProxies
		}
		if fc.Server.BootstrapAdmin != nil {
			cfg.Server.BootstrapAdmin.Username = fc.Server.BootstrapAdmin.Username
			cfg.Server.BootstrapAdmin.Password = fc.Server.BootstrapAdmin.Password
		}
		if fc.Server.SessionTTLMinutes > 0 {
			cfg.Server.SessionTTLMinutes = fc.Server.SessionTTLMinutes
		}
	}

	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		if fc.TLS.CertFile != "" {
			cfg.TLS.CertFile = fc.TLS.CertFile
		}
		if fc.TLS.KeyFile != "" {
			cfg.TLS.KeyFile = fc.TLS.KeyFile
		}
		if fc.TLS.HTTPPort != 0 {
			cfg.TLS.HTTPPort = fc.TLS.HTTPPort
		}
		if fc.TLS.HTTPSPort != 0 {
			cfg.TLS.HTTPSPort = fc.TLS.HTTPSPort
		}
		if fc.TLS.SelfSignedDir != "" {
			cfg.TLS.SelfSignedDir = fc.TLS.SelfSignedDir
		}
		if fc.TLS.ACME.Email != "" {
			cfg.TLS.ACME.Email = fc.TLS.ACME.Email
		}
		if fc.TLS.ACME.Domain != "" {
			cfg.TLS.ACME.Domain = fc.TLS.ACME.Domain
		}
		if fc.TLS.ACME.Directory != "" {
			cfg.TLS.ACME.Directory = fc.TLS.ACME.Directory
		}
		if fc.TLS.ACME.StorageDir != "" {
			cfg.TLS.ACME.StorageDir = fc.TLS.ACME.StorageDir
		}
		if fc.TLS.ACME.RootCAFile != "" {
			cfg.TLS.ACME.RootCAFile = fc.TLS.ACME.RootCAFile
		}
		if fc.TLS.ACME.RootCADir != "" {
			cfg.TLS.ACME.RootCADir = fc.TLS.ACME.RootCADir
		}
		// UseStaging is a bool, we overlay it when the TLS section is present
		cfg.TLS.ACME.UseStaging = fc.TLS.ACME.UseStaging
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if len(fc.Store.Drivers) > 0 {
			cfg.Store.Drivers = fc.Store.Drivers
		}
	}

	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if len(fc.Cache.Drivers) > 0 {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}

	if fc.Sweep != nil {
		if fc.Sweep.IntervalSeconds != 0 {
			cfg.Sweep.IntervalSeconds = fc.Sweep.IntervalSeconds
		}
		if fc.Sweep.WarningHorizonMinutes > 0 {
			cfg.Sweep.WarningHorizonMinutes = fc.Sweep.WarningHorizonMinutes
		}
	}

	if len(fc.Interceptors) > 0 {
		cfg.Interceptors = fc.Interceptors
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.ExternalOrigin != nil && *f.ExternalOrigin != "" {
		cfg.ExternalOrigin = *f.ExternalOrigin
	}
	if f.TLSMode != nil && *f.TLSMode != "" {
		cfg.TLS.Mode = *f.TLSMode
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.CacheDriver != nil && *f.CacheDriver != "" {
		cfg.Cache.Driver = *f.CacheDriver
	}
	if f.AdminUsername != nil && *f.AdminUsername != "" {
		cfg.Server.BootstrapAdmin.Username = *f.AdminUsername
	}
	if f.AdminPassword != nil && *f.AdminPassword != "" {
		cfg.Server.BootstrapAdmin.Password = *f.AdminPassword
	}
}

// validateEnums validates enum-like config fields and returns an error
// for invalid values.
func validateEnums(cfg *Config) error {
	// mode is already validated by ParseMode before we get here

	switch cfg.TLS.Mode {
	case "off", "static", "selfsigned", "acme":
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned, acme", cfg.TLS.Mode)
	}

	switch cfg.Store.Driver {
	case "", "memory", "sqlite", "json":
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory, sqlite, json", cfg.Store.Driver)
	}

	switch cfg.Cache.Driver {
	case "", "memory", "valkey":
	default:
		return fmt.Errorf("invalid cache.driver %q: must be one of memory, valkey", cfg.Cache.Driver)
	}

	if cfg.Sweep.IntervalSeconds < 0 {
		return fmt.Errorf("invalid sweep.interval_seconds %d: must not be negative", cfg.Sweep.IntervalSeconds)
	}

	return nil
}
