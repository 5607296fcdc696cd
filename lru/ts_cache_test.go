package lru

import (
	"context"
	"testing"
	"time"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := NewTSCache(time.Minute)
	c.Put("example.com", []string{"203.0.113.1"})

	got, found := c.Get("example.com")
	if !found {
		t.Fatal("expected a cache hit")
	}
	if ips, ok := got.([]string); !ok || len(ips) != 1 || ips[0] != "203.0.113.1" {
		t.Fatalf("got %v", got)
	}
}

func TestGetMiss(t *testing.T) {
	c := NewTSCache(time.Minute)
	if _, found := c.Get("absent"); found {
		t.Fatal("expected a cache miss")
	}
}

func TestWorkerReapsExpiredEntries(t *testing.T) {
	cache := NewTSCache(time.Millisecond)
	cache.options.SweepInterval = 5 * time.Millisecond
	cache.Put("stale", "value")
	if cache.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cache.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	cache.Worker(ctx)

	if cache.Len() != 0 {
		t.Fatalf("Len() = %d after sweep, want 0", cache.Len())
	}
}
