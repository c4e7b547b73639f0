package cache

import "time"

// Policy supplies default freshness windows for queries that do not
// set their own.
type Policy struct {
	// DefaultStaleTime is the stale window to use when none is
	// specified. Zero means results are stale immediately (every read
	// schedules a refresh).
	DefaultStaleTime time.Duration

	// DefaultCacheTime is the eviction window to use when none is
	// specified. If zero, entries are evicted as soon as they go
	// stale.
	DefaultCacheTime time.Duration

	// MaxCacheTime is the maximum allowed eviction window. Override
	// windows are clamped to this. If zero, no maximum is enforced.
	MaxCacheTime time.Duration
}

// DefaultPolicy returns the default freshness policy.
// DefaultStaleTime: 0, DefaultCacheTime: 5 minutes, MaxCacheTime: 0 (unbounded)
func DefaultPolicy() Policy {
	return Policy{
		DefaultStaleTime: 0,
		DefaultCacheTime: 5 * time.Minute,
	}
}

// EffectiveWindows returns the (staleTime, cacheTime) pair to use,
// applying defaults and clamping. The returned cacheTime is never
// smaller than the returned staleTime.
func (p Policy) EffectiveWindows(staleTime, cacheTime time.Duration) (time.Duration, time.Duration) {
	if staleTime <= 0 {
		staleTime = p.DefaultStaleTime
	}
	if cacheTime <= 0 {
		cacheTime = p.DefaultCacheTime
	}

	if p.MaxCacheTime > 0 && cacheTime > p.MaxCacheTime {
		cacheTime = p.MaxCacheTime
	}
	if cacheTime < staleTime {
		cacheTime = staleTime
	}

	return staleTime, cacheTime
}
