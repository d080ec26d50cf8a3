// Package valkey provides a Valkey/Redis cache driver.
package valkey

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/tutorloop/matchflow-go/internal/platform/cache"
	"github.com/tutorloop/matchflow-go/internal/platform/logutil"
)

func init() {
	cache.RegisterDriver("valkey", func(config map[string]any, logger *slog.Logger) (cache.CacheWithCounter, error) {
		cfg := DefaultConfig()
		if config != nil {
			if v, ok := config["addr"].(string); ok && v != "" {
				cfg.Addr = v
			}
			if v, ok := config["password"].(string); ok {
				cfg.Password = v
			}
			if v, ok := config["db"]; ok {
				if n, ok := toInt(v); ok {
					cfg.DB = n
				}
			}
			if v, ok := config["default_ttl_seconds"]; ok {
				if n, ok := toInt(v); ok && n > 0 {
					cfg.DefaultTTL = time.Duration(n) * time.Second
				}
			}
		}
		return New(cfg, logger)
	})
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Config holds Valkey connection configuration.
type Config struct {
	Addr       string
	Password   string
	DB         int
	DefaultTTL time.Duration
}

// DefaultConfig returns sensible defaults for a local Valkey instance.
func DefaultConfig() *Config {
	return &Config{
		Addr:       "localhost:6379",
		DB:         0,
		DefaultTTL: 15 * time.Minute,
	}
}

// Cache is a Valkey-backed cache. Connection failures surface at
// construction time: the server should fail fast rather than run with
// a silently broken rate limiter.
type Cache struct {
	client     valkeygo.Client
	defaultTTL time.Duration
	logger     *slog.Logger
}

// New creates a Valkey cache and verifies the connection with a ping.
func New(cfg *Config, logger *slog.Logger) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Client-side caching needs server assistance; keep it off so the
	// driver also works against minimal server implementations.
	client, err := valkeygo.NewClient(valkeygo.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect %s: %w", cfg.Addr, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping %s: %w", cfg.Addr, err)
	}

	return &Cache{
		client:     client,
		defaultTTL: cfg.DefaultTTL,
		logger:     logutil.NoopIfNil(logger),
	}, nil
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	data, err := resp.AsBytes()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	cmd := c.client.B().Set().Key(key).Value(valkeygo.BinaryString(value)).Px(ttl).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// Exists checks if a key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Do(ctx, c.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Increment adds delta to a counter and returns the new value and reset time.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	value, err := c.client.Do(ctx, c.client.B().Incrby().Key(key).Increment(delta).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}

	// A fresh key has no TTL yet; stamp the window on first increment.
	if value == delta {
		if err := c.client.Do(ctx, c.client.B().Pexpire().Key(key).Milliseconds(ttl.Milliseconds()).Build()).Error(); err != nil {
			return 0, time.Time{}, err
		}
		return value, time.Now().Add(ttl), nil
	}

	remaining, err := c.client.Do(ctx, c.client.B().Pttl().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}
	if remaining < 0 {
		// Counter survived without a TTL (e.g. expiry raced); re-stamp.
		if err := c.client.Do(ctx, c.client.B().Pexpire().Key(key).Milliseconds(ttl.Milliseconds()).Build()).Error(); err != nil {
			return 0, time.Time{}, err
		}
		remaining = ttl.Milliseconds()
	}
	return value, time.Now().Add(time.Duration(remaining) * time.Millisecond), nil
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	value, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsInt64()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return value, nil
}

// Reset sets a counter to 0.
func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// Close releases the client connection.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

// Ensure Cache implements CacheWithCounter.
var _ cache.CacheWithCounter = (*Cache)(nil)
