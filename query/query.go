package query

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/queryops/cache"
	"github.com/jonwraymond/queryops/flight"
	"github.com/jonwraymond/queryops/observe"
	"github.com/jonwraymond/queryops/resilience"
)

// Fetcher loads the value for a query. It must honor context
// cancellation.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Config describes a query.
type Config[T any] struct {
	// Scope is a stable name for the kind of data being fetched,
	// e.g. "experiments" or "user-profile". Required.
	Scope string

	// Params distinguish queries within a scope. They must serialize
	// to JSON deterministically; maps are canonicalized.
	Params any

	// Fetch loads the value. Required.
	Fetch Fetcher[T]

	// Options tune caching, retries and refresh triggers.
	Options Options

	// Select transforms the fetched value before it is cached and
	// published. Optional.
	Select func(T) T

	// OnSuccess is called after a fetch settles with a value and the
	// value is cached, before the state is published. Optional.
	OnSuccess func(T)

	// OnError is called after a fetch exhausts its retries. Optional.
	OnError func(error)

	// OnSettled is called after OnSuccess or OnError. Optional.
	OnSettled func(T, error)
}

// Query is a cached, deduplicated, retrying fetch for a single key.
// Queries created against the same client with the same scope and
// params share cached values and in-flight fetches.
type Query[T any] struct {
	client *Client
	cfg    Config[T]
	key    string
	meta   observe.QueryMeta
	exec   *resilience.Executor
	logger observe.Logger

	staleTime time.Duration
	cacheTime time.Duration

	poller *Poller

	mu      sync.Mutex
	state   State[T]
	gen     uint64
	subs    map[int]chan State[T]
	subID   int
	mounted bool
	regID   int
}

// New creates a query bound to the client's cache and in-flight
// registry. The cache key is derived from scope and params.
func New[T any](c *Client, cfg Config[T]) (*Query[T], error) {
	if c == nil {
		return nil, ErrNilClient
	}
	if cfg.Scope == "" {
		return nil, ErrMissingScope
	}
	if cfg.Fetch == nil {
		return nil, ErrMissingFetcher
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	cfg.Options = cfg.Options.withDefaults()

	key, err := c.keyer.Key(cfg.Scope, cfg.Params)
	if err != nil {
		return nil, err
	}
	staleTime, cacheTime := c.policy.EffectiveWindows(cfg.Options.StaleTime, cfg.Options.CacheTime)
	meta := observe.QueryMeta{Key: key, Scope: cfg.Scope}

	q := &Query[T]{
		client:    c,
		cfg:       cfg,
		key:       key,
		meta:      meta,
		logger:    c.logger.WithQuery(meta),
		staleTime: staleTime,
		cacheTime: cacheTime,
		poller:    NewPoller(c.clock),
		subs:      make(map[int]chan State[T]),
	}

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: cfg.Options.MaxAttempts,
		BaseDelay:   cfg.Options.RetryDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			ctx := context.Background()
			q.logger.Warn(ctx, "fetch retrying",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "delay", Value: delay.String()},
				observe.Field{Key: "error", Value: err.Error()},
			)
			c.metrics.RecordRetry(ctx, meta, attempt)
		},
	})
	opts := []resilience.ExecutorOption{resilience.WithRetry(retry)}
	if cfg.Options.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(cfg.Options.Timeout))
	}
	q.exec = resilience.NewExecutor(opts...)

	return q, nil
}

// Key returns the derived cache key.
func (q *Query[T]) Key() string { return q.key }

// State returns the current state snapshot.
func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Execute resolves the query against the cache:
//
//   - a fresh cached value is returned without fetching;
//   - a stale cached value is returned immediately and a background
//     refresh starts;
//   - a miss fetches synchronously.
//
// Concurrent executions for the same key share a single fetch. The
// context bounds only this caller's wait; a shared fetch keeps running
// for its other subscribers.
func (q *Query[T]) Execute(ctx context.Context) (T, error) {
	var zero T
	if q.cfg.Options.Disabled {
		return zero, ErrDisabled
	}

	if entry, ok := q.client.store.Get(ctx, q.key); ok {
		if v, ok := entry.Value.(T); ok {
			switch entry.FreshnessAt(q.client.clock.Now()) {
			case cache.Fresh:
				q.client.metrics.RecordCacheRead(ctx, q.meta, "fresh")
				q.logger.Debug(ctx, "cache hit")
				q.adoptCached(v)
				return v, nil
			case cache.Stale:
				q.client.metrics.RecordCacheRead(ctx, q.meta, "stale")
				q.logger.Debug(ctx, "stale cache hit, refreshing in background")
				q.adoptCached(v)
				q.launch(q.beginFetch(false))
				return v, nil
			}
		} else {
			q.logger.Warn(ctx, "cached value has unexpected type, refetching")
		}
	}

	q.client.metrics.RecordCacheRead(ctx, q.meta, "miss")
	q.logger.Debug(ctx, "cache miss, fetching")
	done := q.launch(q.beginFetch(true))
	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Refetch fetches unconditionally, superseding any in-flight fetch for
// the key. The superseded fetch is aborted and its result discarded;
// only the new fetch's outcome is observed.
func (q *Query[T]) Refetch(ctx context.Context) (T, error) {
	var zero T
	if q.cfg.Options.Disabled {
		return zero, ErrDisabled
	}
	q.client.flights.Cancel(q.key)
	done := q.launch(q.beginFetch(false))
	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Invalidate removes this query's cache entry. The next Execute
// misses and fetches.
func (q *Query[T]) Invalidate(ctx context.Context) error {
	return q.client.store.Invalidate(ctx, q.key)
}

// Cancel aborts the in-flight fetch for the key, if any. The aborted
// fetch triggers no callbacks and leaves the cache untouched.
func (q *Query[T]) Cancel() {
	q.client.flights.Cancel(q.key)
}

// Reset returns the query to its initial state: any in-flight fetch
// is aborted and its result discarded, the held value and error are
// dropped, and subscribers observe Idle. The cache entry is left
// untouched.
func (q *Query[T]) Reset() {
	q.client.flights.Cancel(q.key)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gen++
	q.state = State[T]{Status: StatusIdle, UpdatedAt: q.client.clock.Now()}
	q.publishLocked()
}

// Subscribe returns a channel of state snapshots and a release
// function. The current state is delivered immediately; afterwards the
// channel conflates, always carrying the latest snapshot.
func (q *Query[T]) Subscribe() (<-chan State[T], func()) {
	q.mu.Lock()
	q.subID++
	id := q.subID
	ch := make(chan State[T], 1)
	q.subs[id] = ch
	ch <- q.state
	q.mu.Unlock()

	return ch, func() {
		q.mu.Lock()
		if c, ok := q.subs[id]; ok {
			delete(q.subs, id)
			close(c)
		}
		q.mu.Unlock()
	}
}

// Mount registers the query for client-wide refresh triggers and
// starts polling if configured. With RefetchOnMount set, a stale or
// missing cached value triggers a background refresh.
func (q *Query[T]) Mount(ctx context.Context) {
	q.mu.Lock()
	if q.mounted {
		q.mu.Unlock()
		return
	}
	q.mounted = true
	q.mu.Unlock()

	id := q.client.register(q)
	q.mu.Lock()
	q.regID = id
	q.mu.Unlock()

	if q.cfg.Options.PollInterval > 0 && !q.cfg.Options.Disabled {
		q.poller.Start(q.cfg.Options.PollInterval, func() {
			<-q.launch(q.beginFetch(false))
		})
	}
	if q.cfg.Options.RefetchOnMount {
		q.refetchIfStale(ctx)
	}
}

// Unmount stops polling, aborts any in-flight fetch, and deregisters
// the query from client-wide triggers. Cached values and
// subscriptions are unaffected.
func (q *Query[T]) Unmount() {
	q.mu.Lock()
	if !q.mounted {
		q.mu.Unlock()
		return
	}
	q.mounted = false
	id := q.regID
	q.mu.Unlock()

	q.poller.Stop()
	q.client.unregister(id)
	q.client.flights.Cancel(q.key)
}

func (q *Query[T]) onFocus(ctx context.Context) {
	if q.cfg.Options.RefetchOnFocus {
		q.refetchIfStale(ctx)
	}
}

func (q *Query[T]) onReconnect(ctx context.Context) {
	if q.cfg.Options.RefetchOnReconnect {
		q.refetchIfStale(ctx)
	}
}

// refetchIfStale starts a background refresh unless the cached value
// is still fresh.
func (q *Query[T]) refetchIfStale(ctx context.Context) {
	if q.cfg.Options.Disabled {
		return
	}
	if entry, ok := q.client.store.Get(ctx, q.key); ok {
		if entry.FreshnessAt(q.client.clock.Now()) == cache.Fresh {
			return
		}
	}
	q.launch(q.beginFetch(false))
}

type fetchOutcome[T any] struct {
	value T
	err   error
}

// launch joins or starts the fetch for the key and spawns a goroutine
// that settles this query's state when it completes. The returned
// channel delivers the settled outcome once.
func (q *Query[T]) launch(gen uint64) <-chan fetchOutcome[T] {
	if q.client.flights.InFlight(q.key) {
		q.client.metrics.RecordDedupJoin(context.Background(), q.meta)
	}
	ch := q.client.flights.Do(q.key, q.runFetch)
	out := make(chan fetchOutcome[T], 1)
	go func() {
		res := <-ch
		v, err := q.settle(gen, res)
		out <- fetchOutcome[T]{value: v, err: err}
	}()
	return out
}

// runFetch is the flight body: it runs the fetcher under the retry and
// timeout executor, applies Select, and writes the result to the cache
// before the flight broadcasts it to joiners.
func (q *Query[T]) runFetch(ctx context.Context) (any, error) {
	started := q.client.clock.Now()
	ctx, span := q.client.tracer.StartSpan(ctx, q.meta)

	// outMu guards out against a timed-out attempt whose fetcher ran
	// to completion anyway: its goroutine may still be finishing
	// while a later attempt (or the post-Execute read) runs.
	var (
		outMu sync.Mutex
		out   T
	)
	err := q.exec.Execute(ctx, func(ctx context.Context) error {
		v, ferr := q.cfg.Fetch(ctx)
		if ferr != nil {
			return ferr
		}
		if cerr := ctx.Err(); cerr != nil {
			// This attempt was abandoned; its value must not win
			// over a live attempt.
			return cerr
		}
		outMu.Lock()
		out = v
		outMu.Unlock()
		return nil
	})
	if err == nil && ctx.Err() != nil {
		// The flight was cancelled while the fetcher ran to
		// completion anyway; its result must not reach the cache.
		err = ctx.Err()
	}
	outMu.Lock()
	result := out
	outMu.Unlock()
	if err == nil && q.cfg.Select != nil {
		result = q.cfg.Select(result)
	}

	q.client.metrics.RecordFetch(ctx, q.meta, q.client.clock.Since(started), err)
	q.client.tracer.EndSpan(span, err)

	if err != nil {
		if !resilience.IsAbort(err) {
			q.logger.Error(ctx, "fetch failed", observe.Field{Key: "error", Value: err.Error()})
		}
		return nil, err
	}
	if serr := q.client.store.Set(ctx, q.key, result, q.staleTime, q.cacheTime); serr != nil {
		q.logger.Warn(ctx, "cache write failed", observe.Field{Key: "error", Value: serr.Error()})
	}
	return result, nil
}

// beginFetch bumps the generation and publishes the fetching state:
// Refetching when a previous value is held, Loading otherwise. A miss
// first drops the held value — the cache no longer has it, so the
// fetch loads rather than refreshes.
func (q *Query[T]) beginFetch(miss bool) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gen++
	if miss {
		var zero T
		q.state.Data = zero
		q.state.HasData = false
	}
	if q.state.HasData {
		q.state.Status = StatusRefetching
	} else {
		q.state.Status = StatusLoading
	}
	q.state.Err = nil
	q.state.UpdatedAt = q.client.clock.Now()
	q.publishLocked()
	return q.gen
}

// settle applies a flight result to the query state. Aborted fetches
// roll the status back without firing callbacks; results from a
// superseded generation are returned to their waiter but never touch
// state or callbacks.
func (q *Query[T]) settle(gen uint64, res flight.Result) (T, error) {
	var zero T

	if res.Err != nil && IsAborted(res.Err) {
		q.rollback(gen)
		return zero, ErrAborted
	}

	if res.Err != nil {
		if !q.isCurrent(gen) {
			return zero, res.Err
		}
		// Callbacks run before subscribers observe the settled state.
		if q.cfg.OnError != nil {
			q.cfg.OnError(res.Err)
		}
		if q.cfg.OnSettled != nil {
			q.cfg.OnSettled(zero, res.Err)
		}
		q.mu.Lock()
		if gen == q.gen {
			q.state.Status = StatusError
			q.state.Err = res.Err
			q.state.UpdatedAt = q.client.clock.Now()
			q.publishLocked()
		}
		q.mu.Unlock()
		return zero, res.Err
	}

	v, ok := res.Value.(T)
	if !ok {
		q.mu.Lock()
		if gen == q.gen {
			q.state.Status = StatusError
			q.state.Err = ErrWrongType
			q.state.UpdatedAt = q.client.clock.Now()
			q.publishLocked()
		}
		q.mu.Unlock()
		return zero, ErrWrongType
	}

	if !q.isCurrent(gen) {
		return v, nil
	}
	if q.cfg.OnSuccess != nil {
		q.cfg.OnSuccess(v)
	}
	if q.cfg.OnSettled != nil {
		q.cfg.OnSettled(v, nil)
	}
	q.mu.Lock()
	if gen == q.gen {
		q.state = State[T]{
			Status:    StatusSuccess,
			Data:      v,
			HasData:   true,
			UpdatedAt: q.client.clock.Now(),
		}
		q.publishLocked()
	}
	q.mu.Unlock()
	return v, nil
}

func (q *Query[T]) isCurrent(gen uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return gen == q.gen
}

// rollback restores the pre-fetch status after an aborted fetch, if
// the query is still on the aborted generation.
func (q *Query[T]) rollback(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen || !q.state.IsFetching() {
		return
	}
	switch {
	case q.state.HasData:
		q.state.Status = StatusSuccess
	case q.state.Err != nil:
		q.state.Status = StatusError
	default:
		q.state.Status = StatusIdle
	}
	q.state.UpdatedAt = q.client.clock.Now()
	q.publishLocked()
}

// adoptCached publishes a cache hit as the current state without
// invalidating any in-flight generation.
func (q *Query[T]) adoptCached(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state.Data = v
	q.state.HasData = true
	q.state.Err = nil
	if !q.state.IsFetching() {
		q.state.Status = StatusSuccess
	}
	q.state.UpdatedAt = q.client.clock.Now()
	q.publishLocked()
}

// publishLocked delivers the current state to every subscriber,
// replacing an undelivered older snapshot. Callers hold q.mu.
func (q *Query[T]) publishLocked() {
	for _, ch := range q.subs {
		select {
		case ch <- q.state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- q.state:
			default:
			}
		}
	}
}

var _ triggerTarget = (*Query[any])(nil)
