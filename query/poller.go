package query

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Poller refetches on a fixed interval. Ticks that arrive while the
// previous tick's work is still running are dropped rather than
// queued.
type Poller struct {
	clock clockwork.Clock

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	busy atomic.Bool
}

// NewPoller returns a poller driven by the given clock.
func NewPoller(clock clockwork.Clock) *Poller {
	return &Poller{clock: clock}
}

// Start begins ticking. Each tick invokes fn unless a previous
// invocation is still running. Start is a no-op if the poller is
// already running or the interval is not positive.
func (p *Poller) Start(interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	p.stop = stop
	p.done = done

	go func() {
		defer close(done)
		ticker := p.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				if !p.busy.CompareAndSwap(false, true) {
					continue
				}
				go func() {
					defer p.busy.Store(false)
					fn()
				}()
			}
		}
	}()
}

// Stop halts ticking and waits for the loop to exit. Stop is
// idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop = nil
	p.done = nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the poller is ticking.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}
