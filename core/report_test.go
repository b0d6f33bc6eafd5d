package core

import (
	"testing"
	"time"
)

// Test the stats merge rules: syncs and entries accumulate, failures
// reflect only the latest run
func TestSyncStats_Apply(t *testing.T) {
	stats := &SyncStats{}

	first := &SyncReport{
		Timestamp:         time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		TotalEntries:      10,
		SuccessfulUpdates: 7,
		FailedUpdates:     3,
	}
	stats.Apply(first)

	if stats.TotalSyncs != 1 {
		t.Errorf("TotalSyncs = %d, want 1", stats.TotalSyncs)
	}
	if stats.EntriesSynced != 7 {
		t.Errorf("EntriesSynced = %d, want 7", stats.EntriesSynced)
	}
	if stats.FailedSyncs != 3 {
		t.Errorf("FailedSyncs = %d, want 3", stats.FailedSyncs)
	}
	if !stats.LastSyncTime.Equal(first.Timestamp) {
		t.Errorf("LastSyncTime = %v, want %v", stats.LastSyncTime, first.Timestamp)
	}

	second := &SyncReport{
		Timestamp:         time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC),
		TotalEntries:      5,
		SuccessfulUpdates: 5,
		FailedUpdates:     0,
	}
	stats.Apply(second)

	if stats.TotalSyncs != 2 {
		t.Errorf("TotalSyncs = %d, want 2", stats.TotalSyncs)
	}
	if stats.EntriesSynced != 12 {
		t.Errorf("EntriesSynced = %d, want 12 (accumulated)", stats.EntriesSynced)
	}
	if stats.FailedSyncs != 0 {
		t.Errorf("FailedSyncs = %d, want 0 (overwritten, not accumulated)", stats.FailedSyncs)
	}
	if !stats.LastSyncTime.Equal(second.Timestamp) {
		t.Errorf("LastSyncTime = %v, want %v", stats.LastSyncTime, second.Timestamp)
	}
}

// Test report success predicate
func TestSyncReport_Success(t *testing.T) {
	clean := &SyncReport{TotalEntries: 3, SuccessfulUpdates: 2, SkippedEntries: 1}
	if !clean.Success() {
		t.Error("report without failures should be Success")
	}

	dirty := &SyncReport{TotalEntries: 3, SuccessfulUpdates: 2, FailedUpdates: 1}
	if dirty.Success() {
		t.Error("report with failures should not be Success")
	}
}

// Test PlannedEntry helpers
func TestPlannedEntry_Helpers(t *testing.T) {
	create := &PlannedEntry{MediaID: 1}
	if create.IsUpdate() {
		t.Error("entry without previous values should not be an update")
	}
	if create.Step() != 0 {
		t.Errorf("Step() without metadata = %d, want 0", create.Step())
	}

	update := &PlannedEntry{
		MediaID:        1,
		PreviousValues: &PreviousEntryValues{Progress: 5},
		SyncMetadata:   &SyncMetadata{UseIncremental: true, Step: 2, TargetProgress: 12},
	}
	if !update.IsUpdate() {
		t.Error("entry with previous values should be an update")
	}
	if update.Step() != 2 {
		t.Errorf("Step() = %d, want 2", update.Step())
	}
}

// Test auto-pause threshold resolution
func TestSyncConfig_AutoPauseThreshold(t *testing.T) {
	tests := []struct {
		name string
		cfg  SyncConfig
		want time.Duration
	}{
		{name: "default when unset", cfg: SyncConfig{}, want: 30 * 24 * time.Hour},
		{name: "standard threshold", cfg: SyncConfig{AutoPauseThresholdDays: 14}, want: 14 * 24 * time.Hour},
		{name: "custom overrides standard", cfg: SyncConfig{AutoPauseThresholdDays: 14, CustomAutoPauseThresholdDays: 60}, want: 60 * 24 * time.Hour},
		{name: "negative falls back to default", cfg: SyncConfig{AutoPauseThresholdDays: -1}, want: 30 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.autoPauseThreshold(); got != tt.want {
				t.Errorf("autoPauseThreshold() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Test library defaults for plan shaping
func TestDefaultSyncConfig(t *testing.T) {
	cfg := DefaultSyncConfig()
	if !cfg.PreserveCompletedStatus {
		t.Error("PreserveCompletedStatus should default to true")
	}
	if !cfg.PrioritizeAniListProgress {
		t.Error("PrioritizeAniListProgress should default to true")
	}
	if cfg.PrioritizeAniListStatus || cfg.PrioritizeAniListScore {
		t.Error("status and score should default to local-wins")
	}
	if cfg.UseIncrementalSync {
		t.Error("incremental sync should default to off")
	}
	if cfg.AutoPauseThresholdDays != 30 {
		t.Errorf("AutoPauseThresholdDays = %d, want 30", cfg.AutoPauseThresholdDays)
	}
}
