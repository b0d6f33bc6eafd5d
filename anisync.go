// Package anisync is the entry point for the AniList sync library. It
// wires the submodules together and re-exports the types most callers
// need. Users with narrower needs can import specific modules directly:
//   - github.com/ateliersoft/anisync/core - domain model, config, errors
//   - github.com/ateliersoft/anisync/anilist - GraphQL client and pipeline
//   - github.com/ateliersoft/anisync/sync - planner, executor, stats
package anisync

import (
	"context"

	"github.com/ateliersoft/anisync/anilist"
	"github.com/ateliersoft/anisync/core"
	"github.com/ateliersoft/anisync/logger"
	"github.com/ateliersoft/anisync/sync"
	"github.com/ateliersoft/anisync/telemetry"
)

// Re-export core types so most callers only import this package.
type (
	// Configuration types
	Config          = core.Config
	Option          = core.Option
	APIConfig       = core.APIConfig
	RateLimitConfig = core.RateLimitConfig
	RetryConfig     = core.RetryConfig
	CacheConfig     = core.CacheConfig
	StoreConfig     = core.StoreConfig
	LoggingConfig   = core.LoggingConfig
	TelemetryConfig = core.TelemetryConfig
	SyncConfig      = core.SyncConfig

	// Domain types
	KenmeiManga      = core.KenmeiManga
	AniListManga     = core.AniListManga
	MediaTitle       = core.MediaTitle
	MediaListEntry   = core.MediaListEntry
	MediaListStatus  = core.MediaListStatus
	MangaMatch       = core.MangaMatch
	MangaMatchResult = core.MangaMatchResult
	MatchStatus      = core.MatchStatus

	// Plan and report types
	PlannedEntry        = core.PlannedEntry
	PreviousEntryValues = core.PreviousEntryValues
	SyncMetadata        = core.SyncMetadata
	SyncProgress        = core.SyncProgress
	SyncReport          = core.SyncReport
	SyncStats           = core.SyncStats
	SyncResult          = core.SyncResult
	SyncErrorDetail     = core.SyncErrorDetail
	ProgressFunc        = core.ProgressFunc

	// Collaborator interfaces
	Logger    = core.Logger
	Telemetry = core.Telemetry
	Span      = core.Span
	Store     = core.Store

	// Submodule types
	Plan        = sync.Plan
	Executor    = sync.Executor
	StatsSink   = sync.StatsSink
	AniListAPI  = anilist.Client
	SearchCache = anilist.SearchCache
	Pipeline    = anilist.Pipeline
	Viewer      = anilist.Viewer
)

// Re-export list status constants.
const (
	StatusCurrent   = core.StatusCurrent
	StatusPlanning  = core.StatusPlanning
	StatusCompleted = core.StatusCompleted
	StatusDropped   = core.StatusDropped
	StatusPaused    = core.StatusPaused
	StatusRepeating = core.StatusRepeating
)

// Re-export match status constants.
const (
	MatchStatusPending = core.MatchStatusPending
	MatchStatusMatched = core.MatchStatusMatched
	MatchStatusManual  = core.MatchStatusManual
	MatchStatusSkipped = core.MatchStatusSkipped
)

// Re-export core functions.
var (
	NewConfig         = core.NewConfig
	DefaultConfig     = core.DefaultConfig
	DefaultSyncConfig = core.DefaultSyncConfig
	BuildPlan         = sync.BuildPlan
	BuildPlanAt       = sync.BuildPlanAt
	OpenExternal      = anilist.OpenExternal

	// Configuration options
	WithConfigFile        = core.WithConfigFile
	WithEndpoint          = core.WithEndpoint
	WithUserAgent         = core.WithUserAgent
	WithHTTPTimeout       = core.WithHTTPTimeout
	WithRequestsPerMinute = core.WithRequestsPerMinute
	WithRetryAttempts     = core.WithRetryAttempts
	WithCacheTTL          = core.WithCacheTTL
	WithCacheDisabled     = core.WithCacheDisabled
	WithRedisStore        = core.WithRedisStore
	WithLogLevel          = core.WithLogLevel
	WithLogFormat         = core.WithLogFormat
	WithTelemetry         = core.WithTelemetry
	WithSyncConfig        = core.WithSyncConfig

	// Run options
	WithProgress = sync.WithProgress
	WithOrder    = sync.WithOrder
)

// Syncer bundles a configured AniList client, plan executor, and stats
// sink. It is the one-stop object for the full export-to-AniList flow.
type Syncer struct {
	cfg      *core.Config
	logger   *logger.ZerologLogger
	tel      core.Telemetry
	otel     *telemetry.OTELTelemetry
	store    core.Store
	client   *anilist.Client
	executor *sync.Executor
	sink     *sync.StatsSink
}

// New builds a fully wired Syncer from defaults plus options. The
// returned Syncer owns its telemetry and store connections; call Close
// when done.
func New(opts ...Option) (*Syncer, error) {
	cfg, err := core.NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.Logging)

	var tel core.Telemetry = &core.NoOpTelemetry{}
	var otelTel *telemetry.OTELTelemetry
	if cfg.Telemetry.Enabled {
		t, telErr := telemetry.New(context.Background(), cfg.Telemetry)
		if telErr != nil {
			log.Warn("Telemetry initialization failed, continuing without", map[string]interface{}{
				"operation": "syncer_init",
				"error":     telErr.Error(),
			})
		} else {
			tel = t
			otelTel = t
		}
	}

	store, err := newStore(cfg, log)
	if err != nil {
		return nil, err
	}

	client := anilist.NewClient(cfg,
		anilist.WithLogger(log.WithComponent("anilist")),
		anilist.WithTelemetry(tel),
	)

	sink := sync.NewStatsSink(store, log.WithComponent("stats"))
	executor := sync.NewExecutor(client,
		sync.WithLogger(log.WithComponent("executor")),
		sync.WithTelemetry(tel),
		sync.WithStatsSink(sink),
		sync.WithSpacing(cfg.RateLimit.Interval()),
	)

	s := &Syncer{
		cfg:      cfg,
		logger:   log,
		tel:      tel,
		otel:     otelTel,
		store:    store,
		client:   client,
		executor: executor,
		sink:     sink,
	}

	log.Info("Syncer initialized", map[string]interface{}{
		"operation":           "syncer_init",
		"endpoint":            cfg.API.Endpoint,
		"requests_per_minute": cfg.RateLimit.RequestsPerMinute,
		"cache_enabled":       cfg.Cache.Enabled,
		"store_provider":      cfg.Store.Provider,
	})
	return s, nil
}

func newStore(cfg *core.Config, log core.Logger) (core.Store, error) {
	switch cfg.Store.Provider {
	case "redis":
		return core.NewRedisStore(core.RedisStoreOptions{
			RedisURL: cfg.Store.RedisURL,
			Logger:   log,
		})
	default:
		store := core.NewMemoryStoreWithConfig(cfg.Store)
		store.SetLogger(log)
		return store, nil
	}
}

// Config returns the effective configuration.
func (s *Syncer) Config() *core.Config {
	return s.cfg
}

// AniList returns the underlying GraphQL client for direct queries
// (search, viewer, list fetches).
func (s *Syncer) AniList() *anilist.Client {
	return s.client
}

// Plan computes the steps needed to bring the remote list in line with
// the local matches, using the configured sync behavior.
func (s *Syncer) Plan(matches []core.MangaMatchResult, remote map[int]core.MediaListEntry) (*sync.Plan, error) {
	return sync.BuildPlan(matches, remote, s.cfg.Sync)
}

// Sync plans and executes in one call: the remote list is fetched with
// the token, a plan is built against it, and the plan runs to completion.
func (s *Syncer) Sync(ctx context.Context, matches []core.MangaMatchResult, token string, opts ...sync.RunOption) (*core.SyncReport, error) {
	remote, err := s.client.GetUserMangaList(ctx, token)
	if err != nil {
		return nil, err
	}
	plan, err := s.Plan(matches, remote)
	if err != nil {
		return nil, err
	}
	return s.executor.Run(ctx, plan, token, opts...)
}

// Run executes a previously built plan.
func (s *Syncer) Run(ctx context.Context, plan *sync.Plan, token string, opts ...sync.RunOption) (*core.SyncReport, error) {
	return s.executor.Run(ctx, plan, token, opts...)
}

// RetryFailed re-runs the given media ids from an existing plan.
func (s *Syncer) RetryFailed(ctx context.Context, plan *sync.Plan, mediaIDs []int, token string, opts ...sync.RunOption) (*core.SyncReport, error) {
	return s.executor.RetryFailed(ctx, plan, mediaIDs, token, opts...)
}

// Stats returns the persisted running tally across syncs.
func (s *Syncer) Stats(ctx context.Context) (*core.SyncStats, error) {
	return s.sink.Stats(ctx)
}

// SaveSearchCache snapshots the in-memory search cache into the store so
// a later process can warm-start from it.
func (s *Syncer) SaveSearchCache(ctx context.Context) error {
	return s.client.SearchCache().SaveTo(ctx, s.store)
}

// LoadSearchCache restores a previously saved search cache snapshot.
func (s *Syncer) LoadSearchCache(ctx context.Context) error {
	return s.client.SearchCache().LoadFrom(ctx, s.store)
}

// Close releases owned resources: telemetry providers and the store
// connection when it is closeable.
func (s *Syncer) Close(ctx context.Context) error {
	var firstErr error
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
