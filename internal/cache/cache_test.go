package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok { // a becomes most recent
		t.Fatalf("expected a")
	}
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %d ok=%v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("k2", "v2")
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry should still be valid")
	}
	now = now.Add(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 swept entry, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache")
	}
}

func TestLRUDeleteAndClear(t *testing.T) {
	c := NewLRUCache[int](10, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should be gone")
	}
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("expected empty after Clear")
	}
	if c.CleanExpired() != 0 {
		t.Fatalf("no-TTL cache never expires")
	}
}

func TestManagerSweep(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(2 * time.Second)

	m := NewManager()
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}

	m.StartCleanup(context.Background(), 10*time.Millisecond)
	m.Stop()
	m.Stop() // idempotent
}
