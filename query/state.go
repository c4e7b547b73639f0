package query

import "time"

// Status is the phase of a query's lifecycle.
type Status int

const (
	// StatusIdle means the query has never executed.
	StatusIdle Status = iota
	// StatusLoading means a fetch is running and no previous value is
	// available.
	StatusLoading
	// StatusSuccess means the last fetch settled with a value.
	StatusSuccess
	// StatusError means the last fetch exhausted its retries.
	StatusError
	// StatusRefetching means a background refresh is running while the
	// last good value remains visible.
	StatusRefetching
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusRefetching:
		return "refetching"
	default:
		return "unknown"
	}
}

// State is a snapshot of a query, published to subscribers on every
// transition.
type State[T any] struct {
	// Status is the current lifecycle phase.
	Status Status

	// Data is the last good value. It survives StatusError and
	// StatusRefetching so consumers can render stale data alongside
	// an error or refresh indicator.
	Data T

	// HasData reports whether Data holds a fetched value. It
	// distinguishes "no data, failed" from "stale data, refresh
	// failed".
	HasData bool

	// Err is the terminal error of the last fetch, if any.
	Err error

	// UpdatedAt is when this snapshot was produced.
	UpdatedAt time.Time
}

// IsLoading reports whether the first fetch is running.
func (s State[T]) IsLoading() bool { return s.Status == StatusLoading }

// IsFetching reports whether any fetch is running.
func (s State[T]) IsFetching() bool {
	return s.Status == StatusLoading || s.Status == StatusRefetching
}

// IsError reports whether the last fetch failed terminally.
func (s State[T]) IsError() bool { return s.Status == StatusError }

// IsSuccess reports whether the last fetch settled with a value.
func (s State[T]) IsSuccess() bool { return s.Status == StatusSuccess }
