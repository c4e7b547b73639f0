package query

import (
	"errors"
	"time"
)

// ErrInvalidWindows is returned when a cache window configuration is
// contradictory.
var ErrInvalidWindows = errors.New("query: cache time must not be shorter than stale time")

const (
	// DefaultMaxAttempts bounds fetch attempts, matching the retry
	// layer's default.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the base delay between retry attempts.
	DefaultRetryDelay = 100 * time.Millisecond

	// DefaultTimeout bounds a single fetch attempt.
	DefaultTimeout = 30 * time.Second
)

// Options tune a single query's behavior. The zero value is usable:
// windows fall back to the client policy and retry settings to the
// package defaults.
type Options struct {
	// Disabled prevents the query from fetching. Execute returns
	// ErrDisabled and the state stays idle.
	Disabled bool

	// StaleTime is how long a cached value is served without a
	// background refresh. Zero means values are stale immediately.
	StaleTime time.Duration

	// CacheTime is how long a cached value remains usable at all.
	// Zero falls back to the client policy default.
	CacheTime time.Duration

	// MaxAttempts is the total number of fetch attempts, including
	// the first. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// RetryDelay is the base delay between attempts; the n-th retry
	// waits n times this. Zero means DefaultRetryDelay.
	RetryDelay time.Duration

	// Timeout bounds a single fetch attempt. Zero means
	// DefaultTimeout; negative disables the per-attempt timeout.
	Timeout time.Duration

	// RefetchOnMount triggers a refresh when a consumer mounts and
	// the cached value is stale.
	RefetchOnMount bool

	// RefetchOnFocus triggers a refresh on Client.NotifyFocus when
	// the cached value is stale.
	RefetchOnFocus bool

	// RefetchOnReconnect triggers a refresh on
	// Client.NotifyReconnect when the cached value is stale.
	RefetchOnReconnect bool

	// PollInterval, when positive, refetches on a fixed interval
	// while the query is mounted. Ticks that land while a fetch is
	// still running are skipped.
	PollInterval time.Duration
}

// Validate checks the options for contradictions.
func (o Options) Validate() error {
	if o.CacheTime > 0 && o.StaleTime > 0 && o.CacheTime < o.StaleTime {
		return ErrInvalidWindows
	}
	return nil
}

// withDefaults returns a copy with zero retry settings replaced by the
// package defaults.
func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}
