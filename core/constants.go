package core

import "time"

// Remote service limits
const (
	// DefaultEndpoint is the public AniList GraphQL endpoint.
	DefaultEndpoint = "https://graphql.anilist.co"

	// ServerRequestsPerMinute is the ceiling the server advertises.
	ServerRequestsPerMinute = 60

	// DefaultRequestsPerMinute is the client's self-imposed rate. It sits
	// below the server ceiling so retries and countdown re-dispatches have
	// headroom before the remote limiter trips.
	DefaultRequestsPerMinute = 28
)

// Store key layout. Keys carry no application prefix; the Redis store
// adds its namespace ("anisync:" by default) when one is configured.
const (
	// StatsStoreKey is where the running sync tally is persisted.
	// Format: JSON-encoded SyncStats.
	StatsStoreKey = "stats:sync"

	// SearchCacheStoreKey is where the search cache snapshot is persisted
	// between process runs.
	SearchCacheStoreKey = "cache:search"

	// DefaultSearchCacheTTL is how long a cached search response stays
	// valid.
	DefaultSearchCacheTTL = 30 * time.Minute
)
