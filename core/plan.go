package core

import "time"

// defaultAutoPauseDays is the inactivity window applied when auto-pause
// is enabled but no explicit threshold is configured.
const defaultAutoPauseDays = 30

// SyncConfig carries the tunable bits that shape plan construction.
// The zero value is a valid "local wins everywhere" configuration.
type SyncConfig struct {
	// PreserveCompletedStatus short-circuits planning for entries that
	// are already COMPLETED remotely: nothing is written, the entry is
	// counted as skipped.
	PreserveCompletedStatus bool `json:"preserveCompletedStatus"`

	// PrioritizeAniListStatus keeps the remote status when a remote
	// snapshot exists instead of the computed local status.
	PrioritizeAniListStatus bool `json:"prioritizeAniListStatus"`

	// PrioritizeAniListProgress keeps the larger of remote and local
	// progress when the remote side has any recorded progress.
	PrioritizeAniListProgress bool `json:"prioritizeAniListProgress"`

	// PrioritizeAniListScore keeps a nonzero remote score over the local one.
	PrioritizeAniListScore bool `json:"prioritizeAniListScore"`

	// SetPrivate forces every written entry to private.
	SetPrivate bool `json:"setPrivate"`

	// UseIncrementalSync expands each changed entry into up to three
	// ordered steps instead of one combined write.
	UseIncrementalSync bool `json:"useIncrementalSync"`

	// AutoPauseInactive pauses entries still marked reading whose
	// last_read_at is older than the threshold.
	AutoPauseInactive bool `json:"autoPauseInactive"`

	// AutoPauseThresholdDays is the standard inactivity window in days.
	AutoPauseThresholdDays int `json:"autoPauseThresholdDays,omitempty"`

	// CustomAutoPauseThresholdDays overrides AutoPauseThresholdDays
	// when nonzero.
	CustomAutoPauseThresholdDays int `json:"customAutoPauseThresholdDays,omitempty"`
}

// autoPauseThreshold resolves the effective inactivity window.
func (c SyncConfig) autoPauseThreshold() time.Duration {
	days := c.AutoPauseThresholdDays
	if c.CustomAutoPauseThresholdDays > 0 {
		days = c.CustomAutoPauseThresholdDays
	}
	if days <= 0 {
		days = defaultAutoPauseDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// DefaultSyncConfig returns the configuration used when the caller
// supplies none: completed entries are preserved, remote progress wins
// when it is ahead, and everything else follows the local export.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		PreserveCompletedStatus:   true,
		PrioritizeAniListProgress: true,
		AutoPauseThresholdDays:    defaultAutoPauseDays,
	}
}

// PreviousEntryValues is the remote snapshot captured before planning.
// Its presence on a PlannedEntry is the canonical "update, not create" flag.
type PreviousEntryValues struct {
	Status   MediaListStatus `json:"status,omitempty"`
	Progress int             `json:"progress"`
	Score    float64         `json:"score"`
	Private  bool            `json:"private"`
}

// SyncMetadata carries incremental-step bookkeeping for one planned write.
type SyncMetadata struct {
	// UseIncremental marks the entry as part of a multi-step expansion.
	UseIncremental bool `json:"useIncremental"`
	// TargetProgress is the final progress value the expansion converges on.
	TargetProgress int `json:"targetProgress,omitempty"`
	// Step is this write's position in the expansion: 1 advances progress
	// by one, 2 jumps to the target, 3 writes status/score/privacy.
	Step int `json:"step,omitempty"`
	// ResumeFromStep drops steps below it when a previous run failed
	// mid-sequence.
	ResumeFromStep int `json:"resumeFromStep,omitempty"`
	// RetryCount tracks how many times this entry went through RetryFailed.
	RetryCount int `json:"retryCount,omitempty"`
	// RetryTimestamp records when the last retry was requested.
	RetryTimestamp time.Time `json:"retryTimestamp,omitempty"`
}

// PlannedEntry is one write the planner decided to perform against a
// single media. Desired values are absolute (post-sync) targets; the
// mutation builder derives the minimal variable set from them.
type PlannedEntry struct {
	MediaID int `json:"mediaId"`

	// Display metadata for progress reporting only.
	Title    string `json:"title,omitempty"`
	CoverURL string `json:"coverUrl,omitempty"`

	Status   MediaListStatus `json:"status,omitempty"`
	Progress int             `json:"progress"`
	Score    float64         `json:"score"`
	Private  bool            `json:"private"`

	PreviousValues *PreviousEntryValues `json:"previousValues,omitempty"`
	SyncMetadata   *SyncMetadata        `json:"syncMetadata,omitempty"`
}

// IsUpdate reports whether a remote entry existed when the plan was built.
func (e *PlannedEntry) IsUpdate() bool {
	return e.PreviousValues != nil
}

// Step returns the incremental step number, or 0 for a plain single write.
func (e *PlannedEntry) Step() int {
	if e.SyncMetadata == nil {
		return 0
	}
	return e.SyncMetadata.Step
}
