package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestMemoryStore_GetSetInvalidate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Get on empty store
	entry, ok := store.Get(ctx, "nonexistent")
	if ok {
		t.Error("Get on empty store should return ok=false")
	}
	if entry.Value != nil {
		t.Error("Get on empty store should return zero entry")
	}

	// Set
	key := "query:users:abc123"
	err := store.Set(ctx, key, "test-value", time.Minute, 5*time.Minute)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Get after Set
	entry, ok = store.Get(ctx, key)
	if !ok {
		t.Fatal("Get after Set should return ok=true")
	}
	if entry.Value != "test-value" {
		t.Errorf("Get returned %v, want %q", entry.Value, "test-value")
	}
	if entry.StaleAfter != time.Minute {
		t.Errorf("StaleAfter = %v, want 1m", entry.StaleAfter)
	}
	if entry.EvictAfter != 5*time.Minute {
		t.Errorf("EvictAfter = %v, want 5m", entry.EvictAfter)
	}

	// Invalidate
	if err := store.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok := store.Get(ctx, key); ok {
		t.Error("Get after Invalidate should return ok=false")
	}

	// Invalidate is idempotent
	if err := store.Invalidate(ctx, "nonexistent"); err != nil {
		t.Errorf("Invalidate on non-existent key should not error, got: %v", err)
	}
}

func TestMemoryStore_RejectsInvalidKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "", "v", 0, time.Minute); err != ErrInvalidKey {
		t.Errorf("Set with empty key error = %v, want ErrInvalidKey", err)
	}
}

func TestMemoryStore_LastWriterWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	key := "query:users:abc123"
	_ = store.Set(ctx, key, "first", time.Minute, time.Hour)
	_ = store.Set(ctx, key, "second", time.Minute, time.Hour)

	entry, ok := store.Get(ctx, key)
	if !ok {
		t.Fatal("Get should return ok=true")
	}
	if entry.Value != "second" {
		t.Errorf("Value = %v, want %q", entry.Value, "second")
	}
}

func TestMemoryStore_FreshnessWindows(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStoreWithClock(clock)
	ctx := context.Background()

	key := "query:users:abc123"
	staleTime := 5 * time.Second
	cacheTime := 15 * time.Second

	if err := store.Set(ctx, key, 1, staleTime, cacheTime); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	t.Run("fresh before stale window", func(t *testing.T) {
		clock.Advance(staleTime - time.Millisecond)
		entry, ok := store.Get(ctx, key)
		if !ok {
			t.Fatal("entry should be present")
		}
		if f := entry.FreshnessAt(clock.Now()); f != Fresh {
			t.Errorf("freshness = %v, want fresh", f)
		}
	})

	t.Run("stale after stale window", func(t *testing.T) {
		clock.Advance(2 * time.Millisecond)
		entry, ok := store.Get(ctx, key)
		if !ok {
			t.Fatal("stale entry should still be returned")
		}
		if f := entry.FreshnessAt(clock.Now()); f != Stale {
			t.Errorf("freshness = %v, want stale", f)
		}
	})

	t.Run("absent after eviction window", func(t *testing.T) {
		clock.Advance(cacheTime)
		if _, ok := store.Get(ctx, key); ok {
			t.Error("evicted entry should be reported as a miss")
		}
		// Lazy eviction removed it
		if store.Len() != 0 {
			t.Errorf("Len = %d, want 0 after lazy eviction", store.Len())
		}
	})
}

func TestMemoryStore_RaisesEvictWindowToStaleWindow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	key := "query:users:abc123"
	_ = store.Set(ctx, key, 1, time.Hour, time.Minute)

	entry, ok := store.Get(ctx, key)
	if !ok {
		t.Fatal("Get should return ok=true")
	}
	if entry.EvictAfter != time.Hour {
		t.Errorf("EvictAfter = %v, want raised to 1h", entry.EvictAfter)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStoreWithClock(clock)
	ctx := context.Background()

	_ = store.Set(ctx, "query:a:1", 1, time.Second, 10*time.Second)
	_ = store.Set(ctx, "query:b:2", 2, time.Second, time.Minute)

	clock.Advance(30 * time.Second)

	removed := store.Sweep(ctx)
	if removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
	if _, ok := store.Get(ctx, "query:b:2"); !ok {
		t.Error("unexpired entry should survive Sweep")
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Set(ctx, "query:a:1", 1, 0, time.Minute)
	_ = store.Set(ctx, "query:b:2", 2, 0, time.Minute)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0 after Clear", store.Len())
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			key := "query:grid:key"
			for j := 0; j < 100; j++ {
				_ = store.Set(ctx, key, n, time.Minute, time.Hour)
				store.Get(ctx, key)
			}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
