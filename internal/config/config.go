// Package config provides configuration loading and validation.
package config

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: prod or dev.
	Mode string `json:"mode"`

	// ExternalOrigin is the public origin (scheme + host + port) for
	// this instance. Example: "https://localhost:9400"
	ExternalOrigin string `json:"external_origin"`

	// ListenAddr is the address to listen on. Example: ":9400"
	ListenAddr string `json:"listen_addr"`

	// Server holds HTTP server settings.
	Server ServerConfig `json:"server"`

	// TLS configuration.
	TLS TLSConfig `json:"tls"`

	// Store selects the persistence driver.
	Store StoreConfig `json:"store"`

	// Cache selects the TTL cache driver used by rate limiting.
	Cache CacheConfig `json:"cache"`

	// Sweep controls the background expiry sweeper.
	Sweep SweepConfig `json:"sweep"`

	// Interceptors holds per-interceptor configuration blocks, keyed
	// by interceptor name. Each block is decoded by its interceptor.
	Interceptors map[string]map[string]any `json:"interceptors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// TrustedProxies are CIDRs whose X-Forwarded-For values are honored.
	TrustedProxies []string `json:"trusted_proxies"`

	// BootstrapAdmin is created at startup if it does not exist.
	BootstrapAdmin BootstrapAdmin `json:"bootstrap_admin"`

	// SessionTTLMinutes is the login session lifetime.
	SessionTTLMinutes int `json:"session_ttl_minutes"`
}

// BootstrapAdmin holds startup admin credentials.
type BootstrapAdmin struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned, acme
	Mode string `json:"mode" toml:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `json:"cert_file" toml:"cert_file"`
	KeyFile  string `json:"key_file" toml:"key_file"`

	// HTTPPort for HTTP listener (used for ACME challenges and redirects)
	HTTPPort int `json:"http_port" toml:"http_port"`

	// HTTPSPort for HTTPS listener
	HTTPSPort int `json:"https_port" toml:"https_port"`

	// SelfSignedDir is where generated certificates are cached.
	SelfSignedDir string `json:"self_signed_dir" toml:"self_signed_dir"`

	// ACME settings for acme mode.
	ACME ACMEConfig `json:"acme" toml:"acme"`
}

// ACMEConfig holds ACME (Let's Encrypt) settings.
type ACMEConfig struct {
	Email      string `json:"email" toml:"email"`
	Domain     string `json:"domain" toml:"domain"`
	Directory  string `json:"directory" toml:"directory"`
	StorageDir string `json:"storage_dir" toml:"storage_dir"`
	UseStaging bool   `json:"use_staging" toml:"use_staging"`

	// RootCAFile and RootCADir extend the trust pool used when talking
	// to the ACME directory, for private or staging CAs.
	RootCAFile string `json:"root_ca_file" toml:"root_ca_file"`
	RootCADir  string `json:"root_ca_dir" toml:"root_ca_dir"`
}

// StoreConfig selects and configures the persistence driver.
type StoreConfig struct {
	// Driver is one of: memory, sqlite, json
	Driver string `json:"driver"`

	// Drivers holds per-driver settings, keyed by driver name.
	Drivers map[string]any `json:"drivers"`
}

// CacheConfig selects and configures the TTL cache driver.
type CacheConfig struct {
	// Driver is one of: memory, valkey
	Driver string `json:"driver"`

	// Drivers holds per-driver settings, keyed by driver name.
	Drivers map[string]any `json:"drivers"`
}

// SweepConfig controls the background expiry sweeper.
type SweepConfig struct {
	// IntervalSeconds is how often pending requests are checked for
	// expiry. 0 disables the sweeper.
	IntervalSeconds int `json:"interval_seconds"`

	// WarningHorizonMinutes is the default expiring-soon window.
	WarningHorizonMinutes int `json:"warning_horizon_minutes"`
}
