package sync

import (
	"context"
	"encoding/json"

	"github.com/ateliersoft/anisync/core"
)

// StatsSink keeps the running sync tally in a core.Store under
// core.StatsStoreKey. The tally survives restarts when the store does
// (e.g. Redis).
type StatsSink struct {
	store  core.Store
	logger core.Logger
}

// NewStatsSink builds a sink over the given store. A nil logger falls
// back to the no-op logger.
func NewStatsSink(store core.Store, logger core.Logger) *StatsSink {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &StatsSink{store: store, logger: logger}
}

// Record merges one finished report into the stored tally. A corrupt or
// missing stored value starts a fresh tally rather than failing.
func (s *StatsSink) Record(ctx context.Context, report *core.SyncReport) error {
	if report == nil {
		return nil
	}
	if s.store == nil {
		return &core.SyncError{
			Op:   "StatsSink.Record",
			Kind: "store",
			Err:  core.ErrStoreUnavailable,
		}
	}

	stats, err := s.load(ctx)
	if err != nil {
		return err
	}
	stats.Apply(report)

	payload, err := json.Marshal(stats)
	if err != nil {
		return &core.SyncError{
			Op:      "StatsSink.Record",
			Kind:    "store",
			Message: "encode stats",
			Err:     err,
		}
	}
	if err := s.store.Set(ctx, core.StatsStoreKey, string(payload), 0); err != nil {
		return &core.SyncError{
			Op:      "StatsSink.Record",
			Kind:    "store",
			Message: "persist stats",
			Err:     err,
		}
	}

	s.logger.Debug("Sync stats updated", map[string]interface{}{
		"operation":      "stats_record",
		"total_syncs":    stats.TotalSyncs,
		"entries_synced": stats.EntriesSynced,
		"failed_syncs":   stats.FailedSyncs,
	})
	return nil
}

// Stats returns the current tally. A store with no tally yet yields the
// zero value.
func (s *StatsSink) Stats(ctx context.Context) (*core.SyncStats, error) {
	if s.store == nil {
		return nil, &core.SyncError{
			Op:   "StatsSink.Stats",
			Kind: "store",
			Err:  core.ErrStoreUnavailable,
		}
	}
	return s.load(ctx)
}

// Reset clears the stored tally.
func (s *StatsSink) Reset(ctx context.Context) error {
	if s.store == nil {
		return &core.SyncError{
			Op:   "StatsSink.Reset",
			Kind: "store",
			Err:  core.ErrStoreUnavailable,
		}
	}
	return s.store.Delete(ctx, core.StatsStoreKey)
}

func (s *StatsSink) load(ctx context.Context) (*core.SyncStats, error) {
	raw, err := s.store.Get(ctx, core.StatsStoreKey)
	if err != nil {
		return nil, &core.SyncError{
			Op:      "StatsSink.load",
			Kind:    "store",
			Message: "read stats",
			Err:     err,
		}
	}

	stats := &core.SyncStats{}
	if raw == "" {
		return stats, nil
	}
	if err := json.Unmarshal([]byte(raw), stats); err != nil {
		s.logger.Warn("Stored sync stats are corrupt, starting fresh", map[string]interface{}{
			"operation": "stats_load",
			"error":     err.Error(),
		})
		return &core.SyncStats{}, nil
	}
	return stats, nil
}
