package flight

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Result is the outcome of a flight, delivered to every joiner.
type Result struct {
	// Value is the flight's result on success.
	Value any

	// Err is the flight's error, if any.
	Err error

	// Shared reports whether the result was delivered to more than
	// one caller.
	Shared bool
}

// StartFunc runs the underlying fetch for a flight. The context is
// owned by the registry and is cancelled when the flight is cancelled.
type StartFunc func(ctx context.Context) (any, error)

// Registry tracks one pending operation per key.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Dedup: at most one StartFunc is running per key at any instant;
//   all concurrent callers for that key receive the same result.
// - Lifecycle: the flight's bookkeeping entry is removed when the
//   StartFunc returns, never later.
type Registry struct {
	group singleflight.Group

	mu     sync.Mutex
	active map[string]*flightEntry
}

type flightEntry struct {
	subscribers int
	ctx         context.Context
	cancel      context.CancelFunc
}

func (r *Registry) newEntry() *flightEntry {
	ctx, cancel := context.WithCancel(context.Background())
	return &flightEntry{subscribers: 1, ctx: ctx, cancel: cancel}
}

// NewRegistry creates a new in-flight registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]*flightEntry),
	}
}

// Do joins the in-flight operation for key, or starts one by invoking
// start. The returned channel delivers exactly one Result.
//
// The context passed to start belongs to the flight, not to any single
// caller: it is cancelled by Cancel, not when one joiner goes away.
func (r *Registry) Do(key string, start StartFunc) <-chan Result {
	r.mu.Lock()
	if e, ok := r.active[key]; ok {
		e.subscribers++
	} else {
		r.active[key] = r.newEntry()
	}
	r.mu.Unlock()

	sfCh := r.group.DoChan(key, func() (any, error) {
		// Resolve the live entry here, not at Do time: the entry
		// observed above may settle before singleflight runs this
		// function, and a settled entry's context is already
		// cancelled.
		r.mu.Lock()
		e, ok := r.active[key]
		if !ok {
			e = r.newEntry()
			r.active[key] = e
		}
		r.mu.Unlock()

		defer r.settle(key, e)
		return start(e.ctx)
	})

	out := make(chan Result, 1)
	go func() {
		res := <-sfCh
		out <- Result{Value: res.Val, Err: res.Err, Shared: res.Shared}
	}()
	return out
}

// settle removes the flight's entry the moment its StartFunc returns.
func (r *Registry) settle(key string, e *flightEntry) {
	r.mu.Lock()
	if cur, ok := r.active[key]; ok && cur == e {
		delete(r.active, key)
		// Forget forces the next Do to start a fresh flight instead
		// of attaching to the completed one. Guarded by the entry
		// check: a cancelled flight must not forget its successor.
		r.group.Forget(key)
	}
	r.mu.Unlock()
	e.cancel()
}

// Cancel cancels the in-flight operation for key, if any. Joiners of
// the cancelled flight observe the operation's context error. A
// subsequent Do starts a fresh flight.
func (r *Registry) Cancel(key string) {
	r.mu.Lock()
	e, ok := r.active[key]
	if ok {
		delete(r.active, key)
		r.group.Forget(key)
	}
	r.mu.Unlock()

	if ok {
		e.cancel()
	}
}

// InFlight reports whether an operation for key is outstanding.
func (r *Registry) InFlight(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key]
	return ok
}

// Subscribers reports how many callers have joined the in-flight
// operation for key. Zero when no operation is outstanding.
func (r *Registry) Subscribers(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.active[key]; ok {
		return e.subscribers
	}
	return 0
}
