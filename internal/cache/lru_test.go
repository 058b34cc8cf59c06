package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *time.Time) {
	c := NewLRUCache[string](size, ttl)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	// "b" is now least recently used
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, now := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	*now = now.Add(2 * time.Minute)
	c.Set("c", "3")

	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be expired")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1", removed)
	}
	if v, ok := c.Get("c"); !ok || v != "3" {
		t.Errorf("Get(c) = %q, %v", v, ok)
	}
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "loaded", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(context.Background(), "k", load)
		if err != nil || v != "loaded" {
			t.Fatalf("GetOrLoad() = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad(context.Background(), "x", func(context.Context) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("GetOrLoad() error = %v", err)
	}
	if _, ok := c.Get("x"); ok {
		t.Error("errors must not be cached")
	}
}

func TestLRUCache_DeletePurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a deleted")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d", c.Size())
	}
}

func TestManager_Sweep(t *testing.T) {
	c, now := newTestCache(10, time.Second)
	c.Set("a", "1")
	*now = now.Add(time.Minute)

	m := NewManager(nil)
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
}
