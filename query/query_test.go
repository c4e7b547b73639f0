package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/queryops/cache"
)

func newTestClient(t *testing.T, clock clockwork.Clock) (*Client, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStoreWithClock(clock)
	c, err := NewClient(ClientConfig{Store: store, Clock: clock})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, store
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNew_Validation(t *testing.T) {
	c, _ := newTestClient(t, clockwork.NewFakeClock())
	fetch := func(ctx context.Context) (int, error) { return 0, nil }

	tests := []struct {
		name    string
		client  *Client
		cfg     Config[int]
		wantErr error
	}{
		{"nil client", nil, Config[int]{Scope: "s", Fetch: fetch}, ErrNilClient},
		{"missing scope", c, Config[int]{Fetch: fetch}, ErrMissingScope},
		{"missing fetcher", c, Config[int]{Scope: "s"}, ErrMissingFetcher},
		{"bad windows", c, Config[int]{
			Scope: "s", Fetch: fetch,
			Options: Options{StaleTime: time.Minute, CacheTime: time.Second},
		}, ErrInvalidWindows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.client, tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestQuery_ExecuteMissFetches(t *testing.T) {
	c, store := newTestClient(t, clockwork.NewFakeClock())

	var calls atomic.Int32
	q, err := New(c, Config[string]{
		Scope: "greeting",
		Fetch: func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "hello", nil
		},
		Options: Options{StaleTime: time.Minute, CacheTime: time.Hour},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := q.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "hello" {
		t.Errorf("Execute() = %q, want %q", got, "hello")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
	if st := q.State(); st.Status != StatusSuccess || st.Data != "hello" {
		t.Errorf("state = %+v, want success with data", st)
	}
	if store.Len() != 1 {
		t.Errorf("store.Len() = %d, want 1", store.Len())
	}
}

func TestQuery_FreshnessWindows(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestClient(t, clk)

	var calls atomic.Int32
	q, err := New(c, Config[int]{
		Scope: "metrics",
		Fetch: func(ctx context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
		Options: Options{StaleTime: 5 * time.Second, CacheTime: 15 * time.Second},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, err := q.Execute(ctx); err != nil {
		t.Fatalf("initial Execute: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("fetch calls = %d, want 1", n)
	}

	// Inside the stale window: served from cache, no fetch.
	clk.Advance(3 * time.Second)
	got, err := q.Execute(ctx)
	if err != nil {
		t.Fatalf("fresh Execute: %v", err)
	}
	if got != 1 || calls.Load() != 1 {
		t.Errorf("fresh hit: got %d with %d calls, want 1 with 1 call", got, calls.Load())
	}

	// Past stale, inside cache window: stale value returned
	// immediately, refresh runs in the background.
	clk.Advance(4 * time.Second)
	got, err = q.Execute(ctx)
	if err != nil {
		t.Fatalf("stale Execute: %v", err)
	}
	if got != 1 {
		t.Errorf("stale hit returned %d, want cached 1", got)
	}
	waitFor(t, func() bool { return calls.Load() == 2 })
	waitFor(t, func() bool {
		st := q.State()
		return st.Status == StatusSuccess && st.Data == 2
	})

	// Past the cache window: a miss, fetched synchronously.
	clk.Advance(16 * time.Second)
	got, err = q.Execute(ctx)
	if err != nil {
		t.Fatalf("evicted Execute: %v", err)
	}
	if got != 3 || calls.Load() != 3 {
		t.Errorf("evicted: got %d with %d calls, want 3 with 3 calls", got, calls.Load())
	}
}

func TestQuery_EvictedEntryLoadsNotRefetches(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestClient(t, clk)
	ctx := context.Background()

	gate := make(chan struct{})
	var calls atomic.Int32
	q, err := New(c, Config[int]{
		Scope: "evictable",
		Fetch: func(ctx context.Context) (int, error) {
			n := int(calls.Add(1))
			if n > 1 {
				<-gate
			}
			return n, nil
		},
		Options: Options{StaleTime: 5 * time.Second, CacheTime: 15 * time.Second},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := q.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Past the cache window the value is gone: the next fetch is a
	// load from nothing, not a refresh of held data.
	clk.Advance(16 * time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := q.Execute(ctx); err != nil {
			t.Errorf("Execute after eviction: %v", err)
		}
	}()

	waitFor(t, func() bool { return calls.Load() == 2 })
	st := q.State()
	if st.Status != StatusLoading {
		t.Errorf("status during post-eviction fetch = %v, want %v", st.Status, StatusLoading)
	}
	if st.HasData {
		t.Error("evicted value still held during post-eviction fetch")
	}
	close(gate)
	<-done
	if st := q.State(); st.Status != StatusSuccess || st.Data != 2 {
		t.Errorf("state after post-eviction fetch = %+v", st)
	}
}

func TestQuery_Reset(t *testing.T) {
	c, store := newTestClient(t, clockwork.NewFakeClock())
	ctx := context.Background()

	q, err := New(c, Config[string]{
		Scope:   "resettable",
		Fetch:   func(ctx context.Context) (string, error) { return "v", nil },
		Options: Options{StaleTime: time.Hour, CacheTime: time.Hour},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := q.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	q.Reset()

	st := q.State()
	if st.Status != StatusIdle || st.HasData || st.Data != "" || st.Err != nil {
		t.Errorf("state after Reset = %+v, want empty idle", st)
	}
	if store.Len() != 1 {
		t.Errorf("Reset touched the cache: store.Len() = %d, want 1", store.Len())
	}
}

func TestQuery_ResetAbortsInFlight(t *testing.T) {
	c, _ := newTestClient(t, clockwork.NewFakeClock())

	var calls atomic.Int32
	q, err := New(c, Config[string]{
		Scope: "resettable",
		Fetch: func(ctx context.Context) (string, error) {
			calls.Add(1)
			<-ctx.Done()
			return "", ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := q.Execute(context.Background())
		errc <- err
	}()

	waitFor(t, func() bool { return c.flights.InFlight(q.Key()) })
	q.Reset()

	if err := <-errc; !IsAborted(err) {
		t.Fatalf("Execute() error = %v, want aborted", err)
	}
	if st := q.State(); st.Status != StatusIdle {
		t.Errorf("status after Reset = %v, want idle", st.Status)
	}
}

func TestQuery_AbandonedAttemptNeverWins(t *testing.T) {
	c, store := newTestClient(t, clockwork.NewFakeClock())
	ctx := context.Background()

	finished := make(chan struct{})
	var calls atomic.Int32
	q, err := New(c, Config[string]{
		Scope: "slow-then-fast",
		Fetch: func(ctx context.Context) (string, error) {
			if calls.Add(1) == 1 {
				// First attempt outlives its deadline, ignoring
				// cancellation, and completes late.
				defer close(finished)
				time.Sleep(60 * time.Millisecond)
				return "stale-attempt", nil
			}
			return "live", nil
		},
		Options: Options{
			MaxAttempts: 2,
			RetryDelay:  time.Millisecond,
			Timeout:     10 * time.Millisecond,
			StaleTime:   time.Hour,
			CacheTime:   time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := q.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "live" {
		t.Errorf("Execute() = %q, want %q", got, "live")
	}

	<-finished
	entry, ok := store.Get(ctx, q.Key())
	if !ok {
		t.Fatal("cache entry missing")
	}
	if entry.Value != "live" {
		t.Errorf("cached value = %v, want %q", entry.Value, "live")
	}
	if st := q.State(); st.Data != "live" {
		t.Errorf("state data = %q, want %q", st.Data, "live")
	}
}

func TestQuery_ConcurrentExecutesShareOneFetch(t *testing.T) {
	c, _ := newTestClient(t, clockwork.NewFakeClock())

	var calls atomic.Int32
	gate := make(chan struct{})
	q, err := New(c, Config[string]{
		Scope: "shared",
		Fetch: func(ctx context.Context) (string, error) {
			calls.Add(1)
			<-gate
			return "value", nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 5
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := q.Execute(context.Background())
			if err != nil {
				t.Errorf("Execute: %v", err)
				return
			}
			results <- v
		}()
	}

	waitFor(t, func() bool { return c.flights.InFlight(q.Key()) })
	close(gate)
	wg.Wait()
	close(results)

	for v := range results {
		if v != "value" {
			t.Errorf("subscriber got %q, want %q", v, "value")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestQuery_RetryThenError(t *testing.T) {
	c, store := newTestClient(t, clockwork.NewFakeClock())

	boom := errors.New("boom")
	var calls atomic.Int32
	var onErr error
	var settled bool
	q, err := New(c, Config[string]{
		Scope: "failing",
		Fetch: func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "", boom
		},
		Options:   Options{MaxAttempts: 3, RetryDelay: time.Millisecond},
		OnError:   func(e error) { onErr = e },
		OnSettled: func(_ string, _ error) { settled = true },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = q.Execute(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v, want %v", err, boom)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("fetch calls = %d, want 3", n)
	}
	if st := q.State(); st.Status != StatusError || !errors.Is(st.Err, boom) {
		t.Errorf("state = %+v, want error state", st)
	}
	if !errors.Is(onErr, boom) || !settled {
		t.Errorf("callbacks: OnError=%v settled=%v", onErr, settled)
	}
	if store.Len() != 0 {
		t.Errorf("failed fetch must not write cache, store.Len() = %d", store.Len())
	}
}

func TestQuery_ErrorRetainsPreviousData(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestClient(t, clk)

	boom := errors.New("boom")
	var fail atomic.Bool
	q, err := New(c, Config[string]{
		Scope: "flaky",
		Fetch: func(ctx context.Context) (string, error) {
			if fail.Load() {
				return "", boom
			}
			return "good", nil
		},
		Options: Options{MaxAttempts: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, err := q.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	fail.Store(true)
	if _, err := q.Refetch(ctx); !errors.Is(err, boom) {
		t.Fatalf("Refetch() error = %v, want %v", err, boom)
	}

	st := q.State()
	if st.Status != StatusError {
		t.Errorf("status = %v, want %v", st.Status, StatusError)
	}
	if !st.HasData || st.Data != "good" {
		t.Errorf("previous data lost: %+v", st)
	}
}

func TestQuery_CancelAborts(t *testing.T) {
	c, store := newTestClient(t, clockwork.NewFakeClock())

	var calls atomic.Int32
	var callbacks atomic.Int32
	q, err := New(c, Config[string]{
		Scope: "cancellable",
		Fetch: func(ctx context.Context) (string, error) {
			calls.Add(1)
			<-ctx.Done()
			return "", ctx.Err()
		},
		OnSuccess: func(string) { callbacks.Add(1) },
		OnError:   func(error) { callbacks.Add(1) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := q.Execute(context.Background())
		errc <- err
	}()

	waitFor(t, func() bool { return c.flights.InFlight(q.Key()) })
	q.Cancel()

	if err := <-errc; !IsAborted(err) {
		t.Fatalf("Execute() error = %v, want aborted", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("aborted fetch retried: %d calls", n)
	}
	if n := callbacks.Load(); n != 0 {
		t.Errorf("aborted fetch fired %d callbacks, want 0", n)
	}
	waitFor(t, func() bool { return q.State().Status == StatusIdle })
	if store.Len() != 0 {
		t.Errorf("aborted fetch wrote cache, store.Len() = %d", store.Len())
	}
}

func TestQuery_RefetchSupersedes(t *testing.T) {
	c, store := newTestClient(t, clockwork.NewFakeClock())

	release := make(chan struct{})
	var calls atomic.Int32
	q, err := New(c, Config[string]{
		Scope: "superseded",
		Fetch: func(ctx context.Context) (string, error) {
			if calls.Add(1) == 1 {
				// First fetch ignores cancellation and finishes
				// late; its result must be discarded anyway.
				<-release
				return "old", nil
			}
			return "new", nil
		},
		Options: Options{StaleTime: time.Minute, CacheTime: time.Hour},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	firstErr := make(chan error, 1)
	go func() {
		_, err := q.Execute(context.Background())
		firstErr <- err
	}()
	waitFor(t, func() bool { return calls.Load() == 1 })

	got, err := q.Refetch(context.Background())
	if err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	if got != "new" {
		t.Errorf("Refetch() = %q, want %q", got, "new")
	}

	close(release)
	if err := <-firstErr; !IsAborted(err) {
		t.Errorf("superseded Execute() error = %v, want aborted", err)
	}

	if st := q.State(); st.Data != "new" {
		t.Errorf("state data = %q, want %q", st.Data, "new")
	}
	entry, ok := store.Get(context.Background(), q.Key())
	if !ok {
		t.Fatal("cache entry missing")
	}
	if entry.Value != "new" {
		t.Errorf("cached value = %v, want %q", entry.Value, "new")
	}
}

func TestQuery_Disabled(t *testing.T) {
	c, _ := newTestClient(t, clockwork.NewFakeClock())

	q, err := New(c, Config[string]{
		Scope:   "off",
		Fetch:   func(ctx context.Context) (string, error) { return "x", nil },
		Options: Options{Disabled: true},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := q.Execute(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Execute() error = %v, want %v", err, ErrDisabled)
	}
	if _, err := q.Refetch(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Refetch() error = %v, want %v", err, ErrDisabled)
	}
	if st := q.State(); st.Status != StatusIdle {
		t.Errorf("disabled query left idle state: %v", st.Status)
	}
}

func TestQuery_SelectTransformsBeforeCaching(t *testing.T) {
	c, store := newTestClient(t, clockwork.NewFakeClock())

	q, err := New(c, Config[[]int]{
		Scope: "numbers",
		Fetch: func(ctx context.Context) ([]int, error) {
			return []int{3, 1, 2, 1}, nil
		},
		Select: func(v []int) []int {
			out := make([]int, 0, len(v))
			for _, n := range v {
				if n > 1 {
					out = append(out, n)
				}
			}
			return out
		},
		Options: Options{StaleTime: time.Minute, CacheTime: time.Hour},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := q.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 2 {
		t.Errorf("Execute() = %v, want [3 2]", got)
	}

	entry, ok := store.Get(context.Background(), q.Key())
	if !ok {
		t.Fatal("cache entry missing")
	}
	cached := entry.Value.([]int)
	if len(cached) != 2 {
		t.Errorf("cached value = %v, want selected [3 2]", cached)
	}
}

func TestQuery_Subscribe(t *testing.T) {
	c, _ := newTestClient(t, clockwork.NewFakeClock())

	q, err := New(c, Config[string]{
		Scope: "watched",
		Fetch: func(ctx context.Context) (string, error) { return "v1", nil },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ch, unsubscribe := q.Subscribe()
	defer unsubscribe()

	st := <-ch
	if st.Status != StatusIdle {
		t.Fatalf("initial snapshot status = %v, want idle", st.Status)
	}

	if _, err := q.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// The channel conflates, so intermediate Loading may be replaced;
	// the final snapshot must be Success.
	waitFor(t, func() bool {
		select {
		case st = <-ch:
		default:
		}
		return st.Status == StatusSuccess && st.Data == "v1"
	})
}

func TestQuery_SubscribeUnsubscribe(t *testing.T) {
	c, _ := newTestClient(t, clockwork.NewFakeClock())

	q, err := New(c, Config[string]{
		Scope: "watched",
		Fetch: func(ctx context.Context) (string, error) { return "v", nil },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ch, unsubscribe := q.Subscribe()
	<-ch
	unsubscribe()
	if _, open := <-ch; open {
		t.Error("channel still open after unsubscribe")
	}
	// Releasing twice is harmless.
	unsubscribe()
}

func TestQuery_RefetchOnFocus(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestClient(t, clk)
	ctx := context.Background()

	var calls atomic.Int32
	q, err := New(c, Config[int]{
		Scope: "focusable",
		Fetch: func(ctx context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
		Options: Options{
			StaleTime:      10 * time.Second,
			CacheTime:      time.Hour,
			RefetchOnFocus: true,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	q.Mount(ctx)
	defer q.Unmount()

	if _, err := q.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Still fresh: focus must not refetch.
	c.NotifyFocus(ctx)
	time.Sleep(10 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("focus refetched a fresh value: %d calls", n)
	}

	clk.Advance(11 * time.Second)
	c.NotifyFocus(ctx)
	waitFor(t, func() bool { return calls.Load() == 2 })
}

func TestQuery_RefetchOnReconnect(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestClient(t, clk)
	ctx := context.Background()

	var calls atomic.Int32
	q, err := New(c, Config[int]{
		Scope: "reconnectable",
		Fetch: func(ctx context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
		Options: Options{
			StaleTime:          time.Second,
			CacheTime:          time.Hour,
			RefetchOnReconnect: true,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	q.Mount(ctx)
	defer q.Unmount()

	if _, err := q.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	clk.Advance(2 * time.Second)
	c.NotifyReconnect(ctx)
	waitFor(t, func() bool { return calls.Load() == 2 })
}

func TestQuery_UnmountStopsTriggers(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestClient(t, clk)
	ctx := context.Background()

	var calls atomic.Int32
	q, err := New(c, Config[int]{
		Scope: "transient",
		Fetch: func(ctx context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
		Options: Options{RefetchOnFocus: true},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	q.Mount(ctx)
	q.Unmount()

	c.NotifyFocus(ctx)
	time.Sleep(10 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("unmounted query refetched: %d calls", n)
	}
}

func TestQuery_Polling(t *testing.T) {
	clk := clockwork.NewFakeClock()
	c, _ := newTestClient(t, clk)
	ctx := context.Background()

	var calls atomic.Int32
	q, err := New(c, Config[int]{
		Scope: "polled",
		Fetch: func(ctx context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
		Options: Options{PollInterval: time.Minute},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	q.Mount(ctx)
	defer q.Unmount()

	clk.BlockUntil(1)
	clk.Advance(time.Minute)
	waitFor(t, func() bool { return calls.Load() == 1 })

	// A tick may land while the previous fetch is still settling and
	// be dropped; keep advancing until the next one is taken.
	waitFor(t, func() bool {
		clk.Advance(time.Minute)
		return calls.Load() >= 2
	})
}

func TestClient_Invalidate(t *testing.T) {
	c, _ := newTestClient(t, clockwork.NewFakeClock())
	ctx := context.Background()

	params := map[string]any{"id": 7}
	var calls atomic.Int32
	q, err := New(c, Config[int]{
		Scope:  "records",
		Params: params,
		Fetch: func(ctx context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
		Options: Options{StaleTime: time.Hour, CacheTime: time.Hour},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := q.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := q.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("fresh value refetched: %d calls", n)
	}

	if err := c.Invalidate(ctx, "records", params); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	got, err := q.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute after invalidate: %v", err)
	}
	if got != 2 || calls.Load() != 2 {
		t.Errorf("after invalidate: got %d with %d calls, want a refetch", got, calls.Load())
	}
}

func TestQuery_SameKeyForSameScopeAndParams(t *testing.T) {
	c, _ := newTestClient(t, clockwork.NewFakeClock())
	fetch := func(ctx context.Context) (int, error) { return 1, nil }

	a, err := New(c, Config[int]{Scope: "s", Params: map[string]any{"a": 1, "b": 2}, Fetch: fetch})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(c, Config[int]{Scope: "s", Params: map[string]any{"b": 2, "a": 1}, Fetch: fetch})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Key() != b.Key() {
		t.Errorf("keys differ for equal params: %q vs %q", a.Key(), b.Key())
	}
}
