package query

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/queryops/cache"
	"github.com/jonwraymond/queryops/flight"
	"github.com/jonwraymond/queryops/observe"
)

// ClientConfig configures a Client. Every field is optional; zero
// values fall back to in-memory, non-instrumented defaults.
type ClientConfig struct {
	// Store holds cached query results. Defaults to an in-memory
	// store driven by Clock.
	Store cache.Store

	// Keyer derives cache keys from scope and params. Defaults to
	// cache.DefaultKeyer.
	Keyer cache.Keyer

	// Clock is the time source for freshness decisions and retry
	// backoff. Defaults to the real clock.
	Clock clockwork.Clock

	// Policy supplies fallback freshness windows for queries that do
	// not set their own.
	Policy cache.Policy

	// Observer supplies tracing, metrics and logging. Defaults to a
	// noop observer.
	Observer observe.Observer
}

// Client ties queries to a shared cache, keyer, in-flight registry and
// telemetry. Queries created against the same client deduplicate their
// fetches and share cached results.
type Client struct {
	store   cache.Store
	keyer   cache.Keyer
	clock   clockwork.Clock
	policy  cache.Policy
	flights *flight.Registry

	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer

	mu      sync.Mutex
	targets map[int]triggerTarget
	nextID  int
}

// triggerTarget is anything that reacts to client-wide refresh
// triggers. Queries register themselves while mounted.
type triggerTarget interface {
	onFocus(ctx context.Context)
	onReconnect(ctx context.Context)
}

// NewClient creates a client, filling unset config fields with
// defaults.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Store == nil {
		cfg.Store = cache.NewMemoryStoreWithClock(cfg.Clock)
	}
	if cfg.Keyer == nil {
		cfg.Keyer = cache.NewDefaultKeyer()
	}
	if cfg.Policy == (cache.Policy{}) {
		cfg.Policy = cache.DefaultPolicy()
	}
	if cfg.Observer == nil {
		cfg.Observer = observe.NewNoopObserver()
	}

	metrics, err := observe.NewMetrics(cfg.Observer.Meter())
	if err != nil {
		return nil, err
	}

	return &Client{
		store:   cfg.Store,
		keyer:   cfg.Keyer,
		clock:   cfg.Clock,
		policy:  cfg.Policy,
		flights: flight.NewRegistry(),
		logger:  cfg.Observer.Logger(),
		metrics: metrics,
		tracer:  observe.NewTracer(cfg.Observer.Tracer()),
		targets: make(map[int]triggerTarget),
	}, nil
}

// Invalidate removes the cached entry for the given scope and params.
// The next Execute for that query misses the cache and fetches.
func (c *Client) Invalidate(ctx context.Context, scope string, params any) error {
	key, err := c.keyer.Key(scope, params)
	if err != nil {
		return err
	}
	return c.store.Invalidate(ctx, key)
}

// Clear removes every cached entry.
func (c *Client) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// NotifyFocus signals that the consumer regained focus. Mounted
// queries with RefetchOnFocus refresh if their cached value is stale.
func (c *Client) NotifyFocus(ctx context.Context) {
	for _, t := range c.snapshotTargets() {
		t.onFocus(ctx)
	}
}

// NotifyReconnect signals that connectivity was restored. Mounted
// queries with RefetchOnReconnect refresh if their cached value is
// stale.
func (c *Client) NotifyReconnect(ctx context.Context) {
	for _, t := range c.snapshotTargets() {
		t.onReconnect(ctx)
	}
}

func (c *Client) snapshotTargets() []triggerTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]triggerTarget, 0, len(c.targets))
	for _, t := range c.targets {
		out = append(out, t)
	}
	return out
}

func (c *Client) register(t triggerTarget) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.targets[id] = t
	return id
}

func (c *Client) unregister(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.targets, id)
}
