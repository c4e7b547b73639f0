// Package query coordinates fetching, caching, and refreshing of
// remote data.
//
// A Client owns the shared result store and the in-flight registry; a
// Query binds one cache key to one fetch function and walks a small
// state machine (Idle, Loading, Success, Error, Refetching) as it
// executes. Concurrent executions for the same key collapse into one
// network operation, fresh cache entries short-circuit the network
// entirely, and stale entries are served immediately while a refresh
// runs in the background.
//
// # Usage
//
//	client, _ := query.NewClient(query.ClientConfig{})
//
//	q, _ := query.New(client, query.Config[[]Experiment]{
//	    Scope:  "experiments",
//	    Params: map[string]any{"status": "live"},
//	    Fetch: func(ctx context.Context) ([]Experiment, error) {
//	        return api.ListExperiments(ctx, "live")
//	    },
//	    Options: query.Options{
//	        StaleTime: 30 * time.Second,
//	        CacheTime: 5 * time.Minute,
//	    },
//	})
//
//	experiments, err := q.Execute(ctx)
//
// Subscribe delivers state transitions to UI consumers; Refetch forces
// a fresh fetch that supersedes any in-flight one; Mount/Unmount tie a
// query to polling and to the client's focus/reconnect triggers.
//
// For cursor-based lists, NewInfinite builds an InfiniteQuery that
// accumulates pages in order and exposes FetchNextPage,
// FetchPreviousPage, and Reset.
package query
