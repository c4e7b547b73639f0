// Package cache provides the shared query result store.
//
// It provides a Store interface with an in-memory implementation,
// SHA-256-based key derivation, and a two-window freshness model: an
// entry is fresh until its stale window elapses, stale but still
// usable until its eviction window elapses, and absent after that.
package cache
