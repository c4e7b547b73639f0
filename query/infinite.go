package query

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/queryops/cache"
	"github.com/jonwraymond/queryops/observe"
	"github.com/jonwraymond/queryops/resilience"
)

// Page is one fetched page of an infinite query. Param is the cursor
// that produced it.
type Page[T, C any] struct {
	Items []T
	Param C
}

// PageFetcher loads one page for a cursor.
type PageFetcher[T, C any] func(ctx context.Context, param C) (Page[T, C], error)

// PageParamFunc derives the cursor for an adjacent page from an edge
// page and the full page list. Returning false marks the edge as
// exhausted.
type PageParamFunc[T, C any] func(edge Page[T, C], all []Page[T, C]) (C, bool)

// InfiniteConfig describes a cursor-paginated query.
type InfiniteConfig[T, C any] struct {
	// Scope and Params identify the query, as in Config.
	Scope  string
	Params any

	// Fetch loads one page. Required.
	Fetch PageFetcher[T, C]

	// NextPageParam derives the next cursor from the last page.
	// Required; returning false ends forward pagination.
	NextPageParam PageParamFunc[T, C]

	// PreviousPageParam derives the previous cursor from the first
	// page. Optional; when nil, backward pagination is unavailable.
	PreviousPageParam PageParamFunc[T, C]

	// FirstPageParam is the cursor for the first page.
	FirstPageParam C

	// Options tune caching, retries and timeouts. Refresh triggers
	// and polling do not apply to infinite queries.
	Options Options
}

// InfiniteQuery accumulates pages fetched by cursor. Page fetches for
// one query are serialized; pages already fetched survive a failed
// page fetch.
type InfiniteQuery[T, C any] struct {
	client *Client
	cfg    InfiniteConfig[T, C]
	meta   observe.QueryMeta
	exec   *resilience.Executor
	logger observe.Logger

	staleTime time.Duration
	cacheTime time.Duration

	mu        sync.Mutex
	pages     []Page[T, C]
	status    Status
	err       error
	hasNext   bool
	nextParam C
	hasPrev   bool
	prevParam C
	fetching  bool
	gen       uint64
	activeKey string
}

// NewInfinite creates an infinite query bound to the client's cache
// and in-flight registry. Each page is cached under a key derived from
// scope, params and its cursor.
func NewInfinite[T, C any](c *Client, cfg InfiniteConfig[T, C]) (*InfiniteQuery[T, C], error) {
	if c == nil {
		return nil, ErrNilClient
	}
	if cfg.Scope == "" {
		return nil, ErrMissingScope
	}
	if cfg.Fetch == nil || cfg.NextPageParam == nil {
		return nil, ErrMissingFetcher
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	cfg.Options = cfg.Options.withDefaults()

	staleTime, cacheTime := c.policy.EffectiveWindows(cfg.Options.StaleTime, cfg.Options.CacheTime)
	meta := observe.QueryMeta{Scope: cfg.Scope}

	iq := &InfiniteQuery[T, C]{
		client:    c,
		cfg:       cfg,
		meta:      meta,
		logger:    c.logger.WithQuery(meta),
		staleTime: staleTime,
		cacheTime: cacheTime,
		hasNext:   true,
		nextParam: cfg.FirstPageParam,
	}

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: cfg.Options.MaxAttempts,
		BaseDelay:   cfg.Options.RetryDelay,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			c.metrics.RecordRetry(context.Background(), meta, attempt)
		},
	})
	opts := []resilience.ExecutorOption{resilience.WithRetry(retry)}
	if cfg.Options.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(cfg.Options.Timeout))
	}
	iq.exec = resilience.NewExecutor(opts...)

	return iq, nil
}

// Execute fetches the first page if none has been fetched yet, and
// returns the accumulated items.
func (iq *InfiniteQuery[T, C]) Execute(ctx context.Context) ([]T, error) {
	if iq.cfg.Options.Disabled {
		return nil, ErrDisabled
	}
	iq.mu.Lock()
	if len(iq.pages) > 0 {
		items := iq.itemsLocked()
		iq.mu.Unlock()
		return items, nil
	}
	iq.mu.Unlock()

	if _, err := iq.fetchEdge(ctx, true); err != nil {
		return nil, err
	}
	return iq.Items(), nil
}

// FetchNextPage fetches the page after the last one. It returns
// ErrNoNextPage when pagination is exhausted and ErrFetchInFlight when
// another page fetch for this query is still running.
func (iq *InfiniteQuery[T, C]) FetchNextPage(ctx context.Context) (Page[T, C], error) {
	return iq.fetchEdge(ctx, true)
}

// FetchPreviousPage fetches the page before the first one. It returns
// ErrNoPreviousPage when no previous cursor exists.
func (iq *InfiniteQuery[T, C]) FetchPreviousPage(ctx context.Context) (Page[T, C], error) {
	return iq.fetchEdge(ctx, false)
}

func (iq *InfiniteQuery[T, C]) fetchEdge(ctx context.Context, forward bool) (Page[T, C], error) {
	var zero Page[T, C]
	if iq.cfg.Options.Disabled {
		return zero, ErrDisabled
	}

	iq.mu.Lock()
	if iq.fetching {
		iq.mu.Unlock()
		return zero, ErrFetchInFlight
	}
	var param C
	if forward {
		if !iq.hasNext {
			iq.mu.Unlock()
			return zero, ErrNoNextPage
		}
		param = iq.nextParam
	} else {
		if !iq.hasPrev {
			iq.mu.Unlock()
			return zero, ErrNoPreviousPage
		}
		param = iq.prevParam
	}
	iq.fetching = true
	gen := iq.gen
	if len(iq.pages) == 0 {
		iq.status = StatusLoading
	} else {
		iq.status = StatusRefetching
	}
	iq.mu.Unlock()

	page, err := iq.fetchPage(ctx, param)

	iq.mu.Lock()
	defer iq.mu.Unlock()
	iq.fetching = false
	if gen != iq.gen {
		// Reset landed while this page was loading; discard it.
		return zero, ErrAborted
	}
	if err != nil {
		if IsAborted(err) {
			iq.settleStatusLocked()
			return zero, ErrAborted
		}
		iq.status = StatusError
		iq.err = err
		return zero, err
	}

	if forward {
		iq.pages = append(iq.pages, page)
	} else {
		iq.pages = append([]Page[T, C]{page}, iq.pages...)
	}
	iq.status = StatusSuccess
	iq.err = nil
	iq.recomputeEdgesLocked()
	return page, nil
}

// fetchPage resolves one page through the cache and the shared
// in-flight registry.
func (iq *InfiniteQuery[T, C]) fetchPage(ctx context.Context, param C) (Page[T, C], error) {
	var zero Page[T, C]
	key, err := iq.pageKey(param)
	if err != nil {
		return zero, err
	}
	meta := observe.QueryMeta{Key: key, Scope: iq.cfg.Scope}

	if entry, ok := iq.client.store.Get(ctx, key); ok {
		if page, ok := entry.Value.(Page[T, C]); ok &&
			entry.FreshnessAt(iq.client.clock.Now()) == cache.Fresh {
			iq.client.metrics.RecordCacheRead(ctx, meta, "fresh")
			return page, nil
		}
	}
	iq.client.metrics.RecordCacheRead(ctx, meta, "miss")

	iq.mu.Lock()
	iq.activeKey = key
	iq.mu.Unlock()

	if iq.client.flights.InFlight(key) {
		iq.client.metrics.RecordDedupJoin(ctx, meta)
	}
	ch := iq.client.flights.Do(key, func(fctx context.Context) (any, error) {
		started := iq.client.clock.Now()
		fctx, span := iq.client.tracer.StartSpan(fctx, meta)
		var (
			pageMu sync.Mutex
			page   Page[T, C]
		)
		ferr := iq.exec.Execute(fctx, func(fctx context.Context) error {
			p, perr := iq.cfg.Fetch(fctx, param)
			if perr != nil {
				return perr
			}
			if cerr := fctx.Err(); cerr != nil {
				// Abandoned attempt; never let it win over a live one.
				return cerr
			}
			pageMu.Lock()
			page = p
			pageMu.Unlock()
			return nil
		})
		if ferr == nil && fctx.Err() != nil {
			ferr = fctx.Err()
		}
		pageMu.Lock()
		result := page
		pageMu.Unlock()
		iq.client.metrics.RecordFetch(fctx, meta, iq.client.clock.Since(started), ferr)
		iq.client.tracer.EndSpan(span, ferr)
		if ferr != nil {
			return nil, ferr
		}
		if serr := iq.client.store.Set(fctx, key, result, iq.staleTime, iq.cacheTime); serr != nil {
			iq.logger.Warn(fctx, "page cache write failed", observe.Field{Key: "error", Value: serr.Error()})
		}
		return result, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		page, ok := res.Value.(Page[T, C])
		if !ok {
			return zero, ErrWrongType
		}
		return page, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Reset discards all pages and rewinds to the first cursor. An
// in-flight page fetch is aborted and its result discarded.
func (iq *InfiniteQuery[T, C]) Reset() {
	iq.mu.Lock()
	iq.gen++
	iq.pages = nil
	iq.status = StatusIdle
	iq.err = nil
	iq.hasNext = true
	iq.nextParam = iq.cfg.FirstPageParam
	iq.hasPrev = false
	var zero C
	iq.prevParam = zero
	key := iq.activeKey
	iq.activeKey = ""
	iq.mu.Unlock()

	if key != "" {
		iq.client.flights.Cancel(key)
	}
}

// Invalidate removes every accumulated page's cache entry, so the next
// walk refetches each page.
func (iq *InfiniteQuery[T, C]) Invalidate(ctx context.Context) error {
	iq.mu.Lock()
	pages := make([]Page[T, C], len(iq.pages))
	copy(pages, iq.pages)
	iq.mu.Unlock()

	for _, p := range pages {
		key, err := iq.pageKey(p.Param)
		if err != nil {
			return err
		}
		if err := iq.client.store.Invalidate(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Pages returns a copy of the accumulated pages, in cursor order.
func (iq *InfiniteQuery[T, C]) Pages() []Page[T, C] {
	iq.mu.Lock()
	defer iq.mu.Unlock()
	out := make([]Page[T, C], len(iq.pages))
	copy(out, iq.pages)
	return out
}

// Items returns the accumulated items flattened across pages.
func (iq *InfiniteQuery[T, C]) Items() []T {
	iq.mu.Lock()
	defer iq.mu.Unlock()
	return iq.itemsLocked()
}

// HasNextPage reports whether another forward page is available.
func (iq *InfiniteQuery[T, C]) HasNextPage() bool {
	iq.mu.Lock()
	defer iq.mu.Unlock()
	return iq.hasNext
}

// HasPreviousPage reports whether a backward page is available.
func (iq *InfiniteQuery[T, C]) HasPreviousPage() bool {
	iq.mu.Lock()
	defer iq.mu.Unlock()
	return iq.hasPrev
}

// Status returns the current lifecycle phase.
func (iq *InfiniteQuery[T, C]) Status() Status {
	iq.mu.Lock()
	defer iq.mu.Unlock()
	return iq.status
}

// Err returns the terminal error of the last page fetch, if any.
func (iq *InfiniteQuery[T, C]) Err() error {
	iq.mu.Lock()
	defer iq.mu.Unlock()
	return iq.err
}

func (iq *InfiniteQuery[T, C]) itemsLocked() []T {
	var out []T
	for _, p := range iq.pages {
		out = append(out, p.Items...)
	}
	return out
}

func (iq *InfiniteQuery[T, C]) settleStatusLocked() {
	if len(iq.pages) > 0 {
		iq.status = StatusSuccess
	} else if iq.err != nil {
		iq.status = StatusError
	} else {
		iq.status = StatusIdle
	}
}

// recomputeEdgesLocked rederives both cursors after the page list
// changes. Callers hold iq.mu with pages non-empty.
func (iq *InfiniteQuery[T, C]) recomputeEdgesLocked() {
	last := iq.pages[len(iq.pages)-1]
	iq.nextParam, iq.hasNext = iq.cfg.NextPageParam(last, iq.pages)
	if iq.cfg.PreviousPageParam != nil {
		iq.prevParam, iq.hasPrev = iq.cfg.PreviousPageParam(iq.pages[0], iq.pages)
	} else {
		iq.hasPrev = false
	}
}

// pageKey derives the cache key for one page from the query identity
// and the page's cursor.
func (iq *InfiniteQuery[T, C]) pageKey(param C) (string, error) {
	return iq.client.keyer.Key(iq.cfg.Scope, map[string]any{
		"params": iq.cfg.Params,
		"cursor": param,
	})
}
