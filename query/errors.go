package query

import (
	"errors"

	"github.com/jonwraymond/queryops/resilience"
)

var (
	// ErrNilClient is returned when a query is created without a client.
	ErrNilClient = errors.New("query: client is nil")

	// ErrMissingScope is returned when a query has no scope.
	ErrMissingScope = errors.New("query: scope is required")

	// ErrMissingFetcher is returned when a query has no fetch function.
	ErrMissingFetcher = errors.New("query: fetch function is required")

	// ErrDisabled is returned by Execute and Refetch when the query's
	// Disabled option is set.
	ErrDisabled = errors.New("query: query is disabled")

	// ErrAborted marks a fetch that was cancelled or superseded. An
	// aborted fetch produces no state transition and fires no
	// callbacks.
	ErrAborted = errors.New("query: fetch aborted")

	// ErrWrongType is returned when a shared fetch result does not
	// have the query's value type.
	ErrWrongType = errors.New("query: result has unexpected type")

	// ErrNoNextPage is returned by FetchNextPage when the pagination
	// is exhausted.
	ErrNoNextPage = errors.New("query: no next page")

	// ErrNoPreviousPage is returned by FetchPreviousPage when there is
	// no page before the first.
	ErrNoPreviousPage = errors.New("query: no previous page")

	// ErrFetchInFlight is returned when a page fetch is requested
	// while another page fetch for the same query is still running.
	ErrFetchInFlight = errors.New("query: page fetch already in flight")
)

// IsAborted reports whether err marks a cancelled or superseded fetch.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) || resilience.IsAbort(err)
}
