package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilStore   = errors.New("cache: store is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Store is the interface for the shared query result store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; it returns (Entry{}, false) on miss.
// - Eviction: entries past their eviction window are treated as
//   absent by Get and must never be returned.
type Store interface {
	// Get retrieves the entry for key. Returns (Entry{}, false) on
	// miss or when the entry's eviction window has elapsed.
	Get(ctx context.Context, key string) (Entry, bool)

	// Set stores a value with the given freshness windows. The write
	// is unconditional: the last writer wins. cacheTime is raised to
	// staleTime when it is smaller, preserving the entry invariant.
	Set(ctx context.Context, key string, value any, staleTime, cacheTime time.Duration) error

	// Invalidate removes the entry for key. Idempotent.
	Invalidate(ctx context.Context, key string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Len reports the number of entries currently held, including
	// entries that have not yet been lazily evicted.
	Len() int
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
