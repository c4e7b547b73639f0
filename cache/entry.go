package cache

import "time"

// Freshness classifies an entry relative to its write time.
type Freshness int

const (
	// Fresh means the stale window has not elapsed; the value can be
	// served without a background refresh.
	Fresh Freshness = iota
	// Stale means the stale window has elapsed but the eviction
	// window has not; the value is servable but should be refreshed.
	Stale
	// Evicted means the eviction window has elapsed; the entry is
	// logically absent.
	Evicted
)

// String returns the string representation of the freshness.
func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Evicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Entry is a stored query result with its freshness windows.
//
// Invariant: EvictAfter >= StaleAfter. Set repairs violations by
// raising EvictAfter.
type Entry struct {
	// Value is the stored result.
	Value any

	// WrittenAt is when the entry was last written.
	WrittenAt time.Time

	// StaleAfter is the duration after WrittenAt during which the
	// entry is fresh.
	StaleAfter time.Duration

	// EvictAfter is the duration after WrittenAt after which the
	// entry is treated as absent.
	EvictAfter time.Duration
}

// FreshnessAt classifies the entry at the given instant.
func (e Entry) FreshnessAt(now time.Time) Freshness {
	age := now.Sub(e.WrittenAt)
	if age >= e.EvictAfter {
		return Evicted
	}
	if age >= e.StaleAfter {
		return Stale
	}
	return Fresh
}
