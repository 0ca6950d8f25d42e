package cache

import (
	"testing"
	"time"
)

func TestCache_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	c := New[[]string](time.Minute)
	c.SetClock(func() time.Time { return now })

	c.Set("directory", []string{"t1", "t2"})

	got, ok := c.Get("directory")
	if !ok || len(got) != 2 {
		t.Fatalf("expected cached value, got %v ok=%v", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("directory"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestCache_ClearDropsEverything(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be cleared")
	}
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be cleared")
	}
}

func TestCache_DefaultTTL(t *testing.T) {
	c := New[string](0)
	if c.ttl != 5*time.Second {
		t.Fatalf("expected default ttl, got %v", c.ttl)
	}
}
