package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, err := c.Get(ctx, "stats"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}

	if err := c.Set(ctx, "stats", `{"totalCases":1}`, time.Minute); err != nil {
		t.Fatal(err)
	}
	if v, err := c.Get(ctx, "stats"); err != nil || v != `{"totalCases":1}` {
		t.Fatalf("get = %q, %v", v, err)
	}

	now = now.Add(time.Minute)
	if _, err := c.Get(ctx, "stats"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expiry, got %v", err)
	}

	_ = c.Set(ctx, "forever", "x", 0)
	now = now.Add(24 * time.Hour)
	if v, _ := c.Get(ctx, "forever"); v != "x" {
		t.Fatal("zero ttl entry expired")
	}
	_ = c.Delete(ctx, "forever")
	if _, err := c.Get(ctx, "forever"); !errors.Is(err, ErrMiss) {
		t.Fatal("delete did not remove entry")
	}
}

func TestNewRedisCacheBadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "not-a-url", "aijudge:"); err == nil {
		t.Fatal("expected parse error")
	}
}
