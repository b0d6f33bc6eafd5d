package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ateliersoft/anisync/core"
)

// SyncService is the single remote operation the executor depends on.
// *anilist.Client satisfies it.
type SyncService interface {
	UpdateMangaEntry(ctx context.Context, entry *core.PlannedEntry, token string) *core.SyncResult
}

// Executor drives a plan against the remote service: one media at a
// time, steps in strict ascending order, no step dispatched before the
// previous one succeeded.
type Executor struct {
	client    SyncService
	logger    core.Logger
	telemetry core.Telemetry
	sink      *StatsSink

	// interval mirrors the pipeline's dequeue spacing between successive
	// remote calls. The pipeline is authoritative; the mirror keeps the
	// executor from hot-looping progress callbacks while queued.
	interval time.Duration

	// tick is the countdown cadence for rate-limit waits.
	tick time.Duration
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithLogger attaches a logger to the executor.
func WithLogger(logger core.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTelemetry attaches telemetry to the executor.
func WithTelemetry(t core.Telemetry) ExecutorOption {
	return func(e *Executor) {
		if t != nil {
			e.telemetry = t
		}
	}
}

// WithStatsSink persists each finished report into the sink.
func WithStatsSink(sink *StatsSink) ExecutorOption {
	return func(e *Executor) {
		e.sink = sink
	}
}

// WithSpacing overrides the executor-side call spacing. Tests shorten it.
func WithSpacing(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d >= 0 {
			e.interval = d
		}
	}
}

// WithCountdownTick overrides the rate-limit countdown cadence.
func WithCountdownTick(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.tick = d
		}
	}
}

// NewExecutor creates an executor around the given client.
func NewExecutor(client SyncService, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:    client,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
		interval:  core.DefaultConfig().RateLimit.Interval(),
		tick:      time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOption customizes one batch run.
type RunOption func(*runState)

// WithProgress registers a callback receiving a progress snapshot on
// every state transition and at least once per second during rate-limit
// countdowns.
func WithProgress(fn core.ProgressFunc) RunOption {
	return func(r *runState) {
		r.progressFn = fn
	}
}

// WithOrder processes media in the given order instead of plan order.
// Ids without planned steps are logged and skipped.
func WithOrder(mediaIDs []int) RunOption {
	return func(r *runState) {
		r.order = mediaIDs
	}
}

// runState is the mutable bookkeeping of one batch run. A run is
// single-threaded, so no locking is needed.
type runState struct {
	progressFn   core.ProgressFunc
	order        []int
	progress     core.SyncProgress
	errors       []core.SyncErrorDetail
	lastDispatch time.Time
	cancelled    bool
}

func (r *runState) emit() {
	if r.progressFn != nil {
		r.progressFn(r.progress)
	}
}

type mediaOutcome int

const (
	mediaSuccess mediaOutcome = iota
	mediaFailed
	mediaCancelled
)

// Run executes the plan and returns the report. Cancellation via ctx is
// observed before each media, before each step, and during countdowns;
// a cancelled run returns the partial report together with ctx's error,
// counting only media that ran to a verdict. Steps already applied
// remotely stay applied.
func (e *Executor) Run(ctx context.Context, plan *Plan, token string, opts ...RunOption) (*core.SyncReport, error) {
	if plan == nil {
		return nil, &core.SyncError{
			Op:      "sync.Run",
			Kind:    "plan",
			Message: "nil plan",
			Err:     core.ErrInvalidPlan,
		}
	}

	ctx, span := e.telemetry.StartSpan(ctx, "sync.batch")
	defer span.End()

	batchID := uuid.NewString()
	span.SetAttribute("sync.batch_id", batchID)
	span.SetAttribute("sync.total_media", plan.TotalMedia())

	run := &runState{}
	for _, opt := range opts {
		opt(run)
	}
	run.progress.Total = plan.TotalMedia()

	e.logger.Info("Starting sync batch", map[string]interface{}{
		"operation": "sync_batch_start",
		"batch_id":  batchID,
		"total":     plan.TotalMedia(),
		"planned":   plan.Len(),
		"skipped":   len(plan.Skipped()),
		"has_token": token != "",
	})

	// Policy skips complete immediately; they never reach the wire.
	for _, skip := range plan.Skipped() {
		run.progress.Completed++
		run.progress.Skipped++
		e.logger.Debug("Entry skipped by policy", map[string]interface{}{
			"operation": "sync_entry_skipped",
			"batch_id":  batchID,
			"media_id":  skip.MediaID,
			"reason":    skip.Reason,
		})
		run.emit()
	}

	order := run.order
	if len(order) == 0 {
		order = plan.MediaIDs()
	}

	for _, mediaID := range order {
		if ctx.Err() != nil {
			run.cancelled = true
			break
		}

		steps := plan.Steps(mediaID)
		if len(steps) == 0 {
			e.logger.Warn("Requested media has no planned steps", map[string]interface{}{
				"operation": "sync_entry_missing",
				"batch_id":  batchID,
				"media_id":  mediaID,
			})
			continue
		}
		sortSteps(steps)

		run.progress.CurrentEntry = &core.ProgressEntry{
			MediaID:  mediaID,
			Title:    steps[0].Title,
			CoverURL: steps[0].CoverURL,
		}
		run.progress.TotalSteps = len(steps)
		run.progress.CurrentStep = 0
		run.emit()

		outcome := e.runMedia(ctx, run, batchID, mediaID, steps, token)

		switch outcome {
		case mediaSuccess:
			run.progress.Completed++
			run.progress.Successful++
		case mediaFailed:
			run.progress.Completed++
			run.progress.Failed++
		case mediaCancelled:
			// The interrupted media stays uncounted; the report covers
			// only media that ran to a verdict.
			run.cancelled = true
			e.logger.Info("Sync batch cancelled by user", map[string]interface{}{
				"operation": "sync_batch_cancelled",
				"batch_id":  batchID,
				"media_id":  mediaID,
			})
		}

		run.progress.CurrentEntry = nil
		run.progress.CurrentStep = 0
		run.progress.TotalSteps = 0
		run.emit()

		if run.cancelled {
			break
		}
	}

	report := &core.SyncReport{
		Timestamp:         time.Now(),
		TotalEntries:      run.progress.Total,
		SuccessfulUpdates: run.progress.Successful,
		FailedUpdates:     run.progress.Failed,
		SkippedEntries:    run.progress.Skipped,
		Errors:            run.errors,
	}

	e.logger.Info("Sync batch finished", map[string]interface{}{
		"operation":  "sync_batch_finish",
		"batch_id":   batchID,
		"successful": report.SuccessfulUpdates,
		"failed":     report.FailedUpdates,
		"skipped":    report.SkippedEntries,
		"cancelled":  run.cancelled,
	})
	span.SetAttribute("sync.successful", report.SuccessfulUpdates)
	span.SetAttribute("sync.failed", report.FailedUpdates)
	e.telemetry.RecordMetric("sync.entries_synced", float64(report.SuccessfulUpdates), nil)
	e.telemetry.RecordMetric("sync.entries_failed", float64(report.FailedUpdates), nil)

	e.persistStats(report, batchID)

	if run.cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// RetryFailed re-runs a subset of the plan, typically the media ids a
// previous report listed as failed. Retry bookkeeping is stamped on
// every step before the run.
func (e *Executor) RetryFailed(ctx context.Context, plan *Plan, mediaIDs []int, token string, opts ...RunOption) (*core.SyncReport, error) {
	if plan == nil {
		return nil, &core.SyncError{
			Op:      "sync.RetryFailed",
			Kind:    "plan",
			Message: "nil plan",
			Err:     core.ErrInvalidPlan,
		}
	}

	want := make(map[int]bool, len(mediaIDs))
	for _, id := range mediaIDs {
		want[id] = true
	}

	subset := &Plan{steps: make(map[int][]*core.PlannedEntry)}
	now := time.Now()
	for _, id := range plan.MediaIDs() {
		if !want[id] {
			continue
		}
		steps := plan.Steps(id)
		for _, step := range steps {
			if step.SyncMetadata == nil {
				step.SyncMetadata = &core.SyncMetadata{TargetProgress: step.Progress}
			}
			step.SyncMetadata.RetryCount++
			step.SyncMetadata.RetryTimestamp = now
		}
		subset.add(id, steps)
	}

	return e.Run(ctx, subset, token, opts...)
}

// runMedia applies one media's steps in order. It returns the terminal
// state; on hard failure the remaining steps are abandoned.
func (e *Executor) runMedia(ctx context.Context, run *runState, batchID string, mediaID int, steps []*core.PlannedEntry, token string) mediaOutcome {
	for i := 0; i < len(steps); {
		if ctx.Err() != nil {
			return mediaCancelled
		}

		step := steps[i]
		displayStep := step.Step()
		if displayStep == 0 {
			displayStep = i + 1
		}
		run.progress.CurrentStep = displayStep
		run.emit()

		if !run.lastDispatch.IsZero() {
			if wait := e.interval - time.Since(run.lastDispatch); wait > 0 {
				if err := sleepCtx(ctx, wait); err != nil {
					return mediaCancelled
				}
			}
		}

		result := e.client.UpdateMangaEntry(ctx, step, token)
		run.lastDispatch = time.Now()

		switch {
		case result.Success:
			e.logger.Debug("Step applied", map[string]interface{}{
				"operation": "sync_step_applied",
				"batch_id":  batchID,
				"media_id":  mediaID,
				"step":      displayStep,
				"entry_id":  result.EntryID,
			})
			i++

		case result.RateLimited:
			if err := e.countdown(ctx, run, batchID, result.RetryAfter); err != nil {
				return mediaCancelled
			}
			// Retry the same step without advancing.

		default:
			msg := "unknown sync error"
			if result.Error != nil {
				msg = result.Error.Error()
			}
			run.errors = append(run.errors, core.SyncErrorDetail{
				MediaID: mediaID,
				Message: msg,
			})
			e.logger.Error("Entry sync failed", map[string]interface{}{
				"operation": "sync_entry_failed",
				"batch_id":  batchID,
				"media_id":  mediaID,
				"step":      displayStep,
				"error":     msg,
			})
			return mediaFailed
		}
	}
	return mediaSuccess
}

// countdown waits out a rate-limit window, emitting a progress tick with
// the decreasing remainder on every tick. Cancellation breaks the wait.
func (e *Executor) countdown(ctx context.Context, run *runState, batchID string, wait time.Duration) error {
	if wait <= 0 {
		wait = e.tick
	}

	run.progress.RateLimited = true
	run.progress.RetryAfter = wait
	run.emit()

	e.logger.Warn("Rate limited, waiting before retry", map[string]interface{}{
		"operation":      "sync_rate_limit_wait",
		"batch_id":       batchID,
		"retry_after_ms": wait.Milliseconds(),
	})
	e.telemetry.RecordMetric("sync.rate_limit_waits", 1, nil)

	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			run.progress.RateLimited = false
			run.progress.RetryAfter = 0
			return ctx.Err()
		case now := <-ticker.C:
			remaining := deadline.Sub(now)
			if remaining <= 0 {
				run.progress.RateLimited = false
				run.progress.RetryAfter = 0
				run.emit()
				return nil
			}
			run.progress.RetryAfter = remaining
			run.emit()
		}
	}
}

// persistStats merges the report into the running tally. Failures are
// logged and swallowed; persistence never fails a sync. The write uses
// a detached context so a cancelled batch still records its partial
// results.
func (e *Executor) persistStats(report *core.SyncReport, batchID string) {
	if e.sink == nil {
		return
	}
	statsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.sink.Record(statsCtx, report); err != nil {
		e.logger.Warn("Failed to persist sync stats", map[string]interface{}{
			"operation": "sync_stats_persist",
			"batch_id":  batchID,
			"error":     err.Error(),
		})
	}
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
