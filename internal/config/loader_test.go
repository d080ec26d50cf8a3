package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"prod", "prod", ModeProd, false},
		{"dev", "dev", ModeDev, false},
		{"empty defaults to prod", "", ModeProd, false},
		{"uppercase", "PROD", ModeProd, false},
		{"mixed case", "Dev", ModeDev, false},
		{"whitespace", "  dev  ", ModeDev, false},
		{"invalid", "invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Without a config file, defaults to prod mode
	cfg, err := Load(LoaderOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "prod" {
		t.Errorf("expected mode prod, got %s", cfg.Mode)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected store driver sqlite, got %s", cfg.Store.Driver)
	}
	if cfg.TLS.Mode != "selfsigned" {
		t.Errorf("expected tls mode selfsigned, got %s", cfg.TLS.Mode)
	}
}

func TestLoad_ModeFlag(t *testing.T) {
	// Mode flag overrides default
	cfg, err := Load(LoaderOptions{ModeFlag: "dev"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "dev" {
		t.Errorf("expected mode dev, got %s", cfg.Mode)
	}
	if cfg.TLS.Mode != "off" {
		t.Errorf("expected TLS off in dev, got %s", cfg.TLS.Mode)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected memory store in dev, got %s", cfg.Store.Driver)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	tomlContent := `
mode = "dev"
external_origin = "https://example.com:8443"
listen_addr = ":8443"

[server]
trusted_proxies = ["10.0.0.0/8"]
session_ttl_minutes = 60

[server.bootstrap_admin]
username = "root"
password = "secret123"

[store]
driver = "json"

[sweep]
interval_seconds = 30
warning_horizon_minutes = 45
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(LoaderOptions{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "dev" {
		t.Errorf("expected mode dev, got %s", cfg.Mode)
	}
	if cfg.ExternalOrigin != "https://example.com:8443" {
		t.Errorf("expected origin https://example.com:8443, got %s", cfg.ExternalOrigin)
	}
	if cfg.ListenAddr != ":8443" {
		t.Errorf("expected listen :8443, got %s", cfg.ListenAddr)
	}
	if len(cfg.Server.TrustedProxies) != 1 || cfg.Server.TrustedProxies[0] != "10.0.0.0/8" {
		t.Errorf("expected trusted proxies [10.0.0.0/8], got %v", cfg.Server.TrustedProxies)
	}
	if cfg.Server.BootstrapAdmin.Username != "root" {
		t.Errorf("expected admin username root, got %s", cfg.Server.BootstrapAdmin.Username)
	}
	if cfg.Server.SessionTTLMinutes != 60 {
		t.Errorf("expected session ttl 60, got %d", cfg.Server.SessionTTLMinutes)
	}
	// TOML overrides mode preset
	if cfg.Store.Driver != "json" {
		t.Errorf("expected store driver json from TOML, got %s", cfg.Store.Driver)
	}
	if cfg.Sweep.IntervalSeconds != 30 {
		t.Errorf("expected sweep interval 30, got %d", cfg.Sweep.IntervalSeconds)
	}
	if cfg.Sweep.WarningHorizonMinutes != 45 {
		t.Errorf("expected warning horizon 45, got %d", cfg.Sweep.WarningHorizonMinutes)
	}
}

func TestLoad_Precedence_FlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	tomlContent := `
external_origin = "https://from-toml.com"
listen_addr = ":9000"

[store]
driver = "json"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// Flags should override TOML
	origin := "https://from-flag.com"
	store := "memory"
	cfg, err := Load(LoaderOptions{
		ConfigPath: configPath,
		FlagOverrides: FlagOverrides{
			ExternalOrigin: &origin,
			StoreDriver:    &store,
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ExternalOrigin != "https://from-flag.com" {
		t.Errorf("expected origin from flag, got %s", cfg.ExternalOrigin)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("expected listen from TOML :9000, got %s", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected store driver from flag memory, got %s", cfg.Store.Driver)
	}
}

func TestLoad_ModeFlag_OverridesConfigFileMode(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	tomlContent := `
mode = "prod"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(LoaderOptions{
		ConfigPath: configPath,
		ModeFlag:   "dev",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "dev" {
		t.Errorf("expected mode dev from flag, got %s", cfg.Mode)
	}
	// Dev preset defaults should apply
	if cfg.TLS.Mode != "off" {
		t.Errorf("expected TLS off from dev preset, got %s", cfg.TLS.Mode)
	}
}

func TestLoad_MissingConfigFile_FailsFast(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigPath: "/nonexistent/path/config.toml"})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("expected read error, got: %v", err)
	}
}

func TestLoad_InvalidTOML_FailsFast(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(configPath, []byte("this is not valid toml [[["), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(LoaderOptions{ConfigPath: configPath})
	if err == nil {
		t.Fatal("expected error for invalid TOML")
	}
	if !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected parse error, got: %v", err)
	}
}

func TestLoad_InvalidMode_FailsFast(t *testing.T) {
	_, err := Load(LoaderOptions{ModeFlag: "invalid"})
	if err == nil {
		t.Fatal("expected error for invalid mode")
	}
	if !strings.Contains(err.Error(), "invalid mode") {
		t.Errorf("expected mode error, got: %v", err)
	}
}

func TestLoad_InvalidTLSMode_FailsFast(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	tomlContent := `
[tls]
mode = "letsencrypt"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(LoaderOptions{ConfigPath: configPath})
	if err == nil {
		t.Fatal("expected error for invalid tls.mode")
	}
	if !strings.Contains(err.Error(), "invalid tls.mode") {
		t.Errorf("expected tls.mode error, got: %v", err)
	}
}

func TestLoad_InvalidStoreDriver_FailsFast(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	tomlContent := `
[store]
driver = "postgres"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(LoaderOptions{ConfigPath: configPath})
	if err == nil {
		t.Fatal("expected error for unknown store driver")
	}
	if !strings.Contains(err.Error(), "store.driver") {
		t.Errorf("expected error to mention store.driver, got: %v", err)
	}
}

func TestLoad_InvalidCacheDriver_FailsFast(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	tomlContent := `
[cache]
driver = "memcached"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(LoaderOptions{ConfigPath: configPath})
	if err == nil {
		t.Fatal("expected error for unknown cache driver")
	}
	if !strings.Contains(err.Error(), "cache.driver") {
		t.Errorf("expected error to mention cache.driver, got: %v", err)
	}
}

func TestLoad_UndecodedKeys_WarnsButSucceeds(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	tomlContent := `
mode = "dev"

[unknown_section]
random_key = "value"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(LoaderOptions{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("Load() should succeed with undecoded keys, got error: %v", err)
	}

	if cfg.Mode != "dev" {
		t.Errorf("expected mode dev, got %s", cfg.Mode)
	}
}

func TestLoad_InterceptorsSection(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	tomlContent := `
[interceptors.ratelimit]
enabled = true
limit = 100
window_seconds = 60
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(LoaderOptions{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	block, ok := cfg.Interceptors["ratelimit"]
	if !ok {
		t.Fatal("expected ratelimit interceptor block")
	}
	if block["enabled"] != true {
		t.Errorf("expected enabled true, got %v", block["enabled"])
	}
}

func TestProdConfig(t *testing.T) {
	cfg := ProdConfig()

	if cfg.Mode != "prod" {
		t.Errorf("expected mode prod, got %s", cfg.Mode)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected sqlite store, got %s", cfg.Store.Driver)
	}
	if cfg.Sweep.IntervalSeconds != 60 {
		t.Errorf("expected sweep interval 60, got %d", cfg.Sweep.IntervalSeconds)
	}
}

func TestDevConfig(t *testing.T) {
	cfg := DevConfig()

	if cfg.Mode != "dev" {
		t.Errorf("expected mode dev, got %s", cfg.Mode)
	}
	if cfg.TLS.Mode != "off" {
		t.Errorf("expected TLS mode off, got %s", cfg.TLS.Mode)
	}
	if !cfg.TLS.ACME.UseStaging {
		t.Error("expected ACME staging in dev")
	}
}
