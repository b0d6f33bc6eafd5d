package core

import "time"

// ProgressEntry is the display metadata for the media currently being synced.
type ProgressEntry struct {
	MediaID  int    `json:"mediaId"`
	Title    string `json:"title,omitempty"`
	CoverURL string `json:"coverUrl,omitempty"`
}

// SyncProgress is a point-in-time snapshot delivered to progress callbacks.
// Total counts unique media ids, not steps; Completed advances once per
// media regardless of how many steps it expanded into.
type SyncProgress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`

	CurrentEntry *ProgressEntry `json:"currentEntry,omitempty"`
	CurrentStep  int            `json:"currentStep,omitempty"`
	TotalSteps   int            `json:"totalSteps,omitempty"`

	// RateLimited flags that the executor is waiting out a rate-limit
	// countdown; RetryAfter is the remaining wait and decreases on every
	// tick delivered during the countdown.
	RateLimited bool          `json:"rateLimited"`
	RetryAfter  time.Duration `json:"retryAfter,omitempty"`
}

// SyncErrorDetail records one failed media with its terminal error message.
type SyncErrorDetail struct {
	MediaID int    `json:"mediaId"`
	Message string `json:"error"`
}

// SyncReport is the terminal summary of one batch run. A cancelled batch
// produces a partial report covering only the media that completed.
type SyncReport struct {
	Timestamp         time.Time         `json:"timestamp"`
	TotalEntries      int               `json:"totalEntries"`
	SuccessfulUpdates int               `json:"successfulUpdates"`
	FailedUpdates     int               `json:"failedUpdates"`
	SkippedEntries    int               `json:"skippedEntries"`
	Errors            []SyncErrorDetail `json:"errors,omitempty"`
}

// Success reports whether every attempted entry synced cleanly.
func (r *SyncReport) Success() bool {
	return r.FailedUpdates == 0
}

// SyncStats is the persisted running tally across batch runs.
type SyncStats struct {
	TotalSyncs    int       `json:"totalSyncs"`
	EntriesSynced int       `json:"entriesSynced"`
	FailedSyncs   int       `json:"failedSyncs"`
	LastSyncTime  time.Time `json:"lastSyncTime"`
}

// Apply merges one finished report into the running tally. Sync and entry
// counts accumulate; FailedSyncs reflects only the latest run.
func (s *SyncStats) Apply(r *SyncReport) {
	s.TotalSyncs++
	s.EntriesSynced += r.SuccessfulUpdates
	s.FailedSyncs = r.FailedUpdates
	s.LastSyncTime = r.Timestamp
}

// SyncResult is the classified outcome of a single remote write.
type SyncResult struct {
	Success bool `json:"success"`
	MediaID int  `json:"mediaId"`
	// EntryID is the remote list entry id extracted on success.
	EntryID int `json:"entryId,omitempty"`
	// RateLimited marks a retryable outcome; RetryAfter carries the wait
	// the server asked for (or the soft-retry hint for 500-class errors).
	RateLimited bool          `json:"rateLimited"`
	RetryAfter  time.Duration `json:"retryAfter,omitempty"`
	Error       error         `json:"-"`
}
