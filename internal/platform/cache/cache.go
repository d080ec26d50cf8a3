// Package cache provides TTL key-value storage and counters for rate
// limiting, behind a pluggable driver registry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrExpired  = errors.New("key expired")

	// ErrUnknownDriver is returned when no driver is registered under
	// the requested name.
	ErrUnknownDriver = errors.New("unknown cache driver")
)

// Cache provides TTL-based key-value storage.
type Cache interface {
	// Get retrieves a value by key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. If TTL is 0, use default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists and is not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources.
	Close() error
}

// Counter provides atomic increment operations for rate limiting.
type Counter interface {
	// Increment adds delta to the counter and returns the new value and
	// the instant the window resets. If the key doesn't exist, it's
	// created with the given TTL.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error)

	// GetCount returns the current counter value. Returns 0 if not found.
	GetCount(ctx context.Context, key string) (int64, error)

	// Reset sets the counter to 0.
	Reset(ctx context.Context, key string) error
}

// CacheWithCounter combines Cache and Counter interfaces.
type CacheWithCounter interface {
	Cache
	Counter
}

// TTLRateLimit is the default rate limit window.
const TTLRateLimit = 1 * time.Minute

// Factory creates a driver instance from its config block.
type Factory func(config map[string]any, logger *slog.Logger) (CacheWithCounter, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// RegisterDriver registers a cache driver factory under a name.
// Drivers self-register from their init functions; importing the
// loader package pulls in the defaults.
func RegisterDriver(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = f
}

// NewDriver creates a cache using the named driver. An empty name
// selects the memory driver.
func NewDriver(name string, config map[string]any, logger *slog.Logger) (CacheWithCounter, error) {
	if name == "" {
		name = "memory"
	}

	driversMu.RLock()
	factory, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownDriver, name, DriverNames())
	}
	return factory(config, logger)
}

// DriverNames returns the registered driver names, sorted.
func DriverNames() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
