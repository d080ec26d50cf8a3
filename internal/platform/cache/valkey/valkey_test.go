package valkey_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tutorloop/matchflow-go/internal/platform/cache"
	"github.com/tutorloop/matchflow-go/internal/platform/cache/valkey"
)

func newTestCache(t *testing.T) (*valkey.Cache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	c, err := valkey.New(&valkey.Config{Addr: srv.Addr(), DefaultTTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestValkey_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "value1" {
		t.Errorf("expected 'value1', got %q", string(val))
	}
}

func TestValkey_GetNotFound(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Get(context.Background(), "nonexistent")
	if err != cache.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValkey_Expiration(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte("value1"), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	exists, err := c.Exists(ctx, "key1")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("key should exist initially")
	}

	srv.FastForward(2 * time.Second)

	if _, err := c.Get(ctx, "key1"); err != cache.ErrNotFound {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestValkey_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "key1", []byte("value1"), time.Minute)
	if err := c.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := c.Get(ctx, "key1"); err != cache.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestValkey_CounterIncrement(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	count, resetAt, err := c.Increment(ctx, "counter1", 1, time.Minute)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1, got %d", count)
	}
	if resetAt.Before(time.Now()) {
		t.Errorf("resetAt %v should be in the future", resetAt)
	}

	count, _, err = c.Increment(ctx, "counter1", 5, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if count != 6 {
		t.Errorf("expected 6, got %d", count)
	}

	got, err := c.GetCount(ctx, "counter1")
	if err != nil {
		t.Fatal(err)
	}
	if got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
}

func TestValkey_CounterWindowExpires(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	if _, _, err := c.Increment(ctx, "counter1", 10, time.Second); err != nil {
		t.Fatal(err)
	}

	srv.FastForward(2 * time.Second)

	count, err := c.GetCount(ctx, "counter1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected 0 after window expiry, got %d", count)
	}

	count, _, err = c.Increment(ctx, "counter1", 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected fresh window to start at 1, got %d", count)
	}
}

func TestValkey_CounterReset(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, _, err := c.Increment(ctx, "counter1", 100, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := c.Reset(ctx, "counter1"); err != nil {
		t.Fatal(err)
	}

	count, err := c.GetCount(ctx, "counter1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected 0 after reset, got %d", count)
	}
}

func TestValkey_ConnectFailure(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	if _, err := valkey.New(&valkey.Config{Addr: addr}, nil); err == nil {
		t.Error("expected connection error against a closed server")
	}
}
