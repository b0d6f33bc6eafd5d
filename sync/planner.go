// Package sync plans and executes one-way batch synchronization of a
// local manga library against a remote AniList account. The planner is a
// pure transformation from matched entries to ordered write steps; the
// executor drives those steps through the AniList client one media at a
// time and aggregates the outcome into a report.
package sync

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ateliersoft/anisync/core"
)

// scoreEpsilon is the minimum score difference that counts as a change.
// AniList stores scores at half-point granularity, so anything smaller
// is presentation noise.
const scoreEpsilon = 0.5

// SkippedEntry records a media the planner decided not to touch, carried
// in the plan so the executor can count it in the report.
type SkippedEntry struct {
	MediaID int    `json:"mediaId"`
	Title   string `json:"title,omitempty"`
	Reason  string `json:"reason"`
}

// Plan is the planner's output: per-media ordered write steps plus the
// entries skipped by policy. Media order is the insertion order of the
// input matches, so execution follows the caller's listing.
type Plan struct {
	steps   map[int][]*core.PlannedEntry
	order   []int
	skipped []SkippedEntry
}

// MediaIDs returns the planned media ids in insertion order.
func (p *Plan) MediaIDs() []int {
	ids := make([]int, len(p.order))
	copy(ids, p.order)
	return ids
}

// Steps returns the ordered write steps for one media.
func (p *Plan) Steps(mediaID int) []*core.PlannedEntry {
	return p.steps[mediaID]
}

// Skipped returns the entries excluded by policy.
func (p *Plan) Skipped() []SkippedEntry {
	return p.skipped
}

// Len reports how many media have planned steps.
func (p *Plan) Len() int {
	return len(p.order)
}

// TotalMedia reports the number of media the plan accounts for,
// including policy skips.
func (p *Plan) TotalMedia() int {
	return len(p.order) + len(p.skipped)
}

// ResumeFrom drops the steps below resumeStep for one media, for
// resuming after a run that failed mid-sequence. Remaining steps are
// stamped with the resume point.
func (p *Plan) ResumeFrom(mediaID, resumeStep int) {
	steps := p.steps[mediaID]
	if len(steps) == 0 || resumeStep <= 1 {
		return
	}
	kept := steps[:0]
	for _, step := range steps {
		if step.Step() >= resumeStep {
			if step.SyncMetadata != nil {
				step.SyncMetadata.ResumeFromStep = resumeStep
			}
			kept = append(kept, step)
		}
	}
	if len(kept) == 0 {
		delete(p.steps, mediaID)
		for i, id := range p.order {
			if id == mediaID {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
		return
	}
	p.steps[mediaID] = kept
}

// add appends a media's steps preserving insertion order.
func (p *Plan) add(mediaID int, steps []*core.PlannedEntry) {
	if _, exists := p.steps[mediaID]; !exists {
		p.order = append(p.order, mediaID)
	}
	p.steps[mediaID] = steps
}

// BuildPlan turns matched entries plus the remote snapshot into a plan,
// evaluating time-dependent policy against the current clock. It is
// BuildPlanAt(matches, remote, cfg, time.Now()).
func BuildPlan(matches []core.MangaMatchResult, remote map[int]core.MediaListEntry, cfg core.SyncConfig) (*Plan, error) {
	return BuildPlanAt(matches, remote, cfg, time.Now())
}

// BuildPlanAt turns matched entries plus the remote snapshot into a plan.
// Matches without an accepted candidate are dropped. Entries already
// COMPLETED remotely are skipped when PreserveCompletedStatus is set.
// Everything else is diffed field by field; unchanged media are dropped,
// changed media become a single write or, in incremental mode, up to
// three ordered steps. A media id appearing under two different matches
// is rejected: silently merging them would write one entry's values over
// the other's. Auto-pause inactivity is measured against now, so the
// same inputs always produce the same plan.
func BuildPlanAt(matches []core.MangaMatchResult, remote map[int]core.MediaListEntry, cfg core.SyncConfig, now time.Time) (*Plan, error) {
	plan := &Plan{steps: make(map[int][]*core.PlannedEntry)}
	seen := make(map[int]bool)

	for _, match := range matches {
		if !match.Syncable() {
			continue
		}
		mediaID := match.SelectedMatch.ID
		if mediaID == 0 {
			continue
		}
		if seen[mediaID] {
			return nil, &core.SyncError{
				Op:      "sync.BuildPlan",
				Kind:    "plan",
				MediaID: mediaID,
				Message: fmt.Sprintf("media %d selected by more than one entry", mediaID),
				Err:     core.ErrDuplicateMediaID,
			}
		}
		seen[mediaID] = true

		snap, hasRemote := remote[mediaID]

		if hasRemote && snap.Status == core.StatusCompleted && cfg.PreserveCompletedStatus {
			plan.skipped = append(plan.skipped, SkippedEntry{
				MediaID: mediaID,
				Title:   match.DisplayTitle(),
				Reason:  "already completed on AniList",
			})
			continue
		}

		local := match.KenmeiManga
		desired := composeDesired(local, snap, hasRemote, cfg, now)

		isCreate := !hasRemote
		statusChanged := hasRemote && !cfg.PrioritizeAniListStatus && desired.Status != snap.Status
		progressChanged := hasRemote && progressDiffers(desired.Progress, snap.Progress, cfg)
		scoreChanged := hasRemote && scoreDiffers(local.Score, snap, cfg)
		privacyChanged := hasRemote && cfg.SetPrivate && !snap.Private

		if !isCreate && !statusChanged && !progressChanged && !scoreChanged && !privacyChanged {
			continue
		}

		base := &core.PlannedEntry{
			MediaID:  mediaID,
			Title:    match.DisplayTitle(),
			CoverURL: coverURL(match),
			Status:   desired.Status,
			Progress: desired.Progress,
			Score:    desired.Score,
			Private:  desired.Private,
		}
		if hasRemote {
			base.PreviousValues = &core.PreviousEntryValues{
				Status:   snap.Status,
				Progress: snap.Progress,
				Score:    snap.Score,
				Private:  snap.Private,
			}
		}

		if !cfg.UseIncrementalSync {
			plan.add(mediaID, []*core.PlannedEntry{base})
			continue
		}

		metadataChanged := isCreate || statusChanged || scoreChanged || privacyChanged
		steps := expandSteps(base, metadataChanged)
		if len(steps) == 0 {
			continue
		}
		plan.add(mediaID, steps)
	}

	return plan, nil
}

// desiredValues is the post-sync target for one entry.
type desiredValues struct {
	Status   core.MediaListStatus
	Progress int
	Score    float64
	Private  bool
}

// composeDesired applies the precedence rules between the local entry
// and the remote snapshot.
func composeDesired(local core.KenmeiManga, snap core.MediaListEntry, hasRemote bool, cfg core.SyncConfig, now time.Time) desiredValues {
	d := desiredValues{}

	if cfg.PrioritizeAniListStatus && hasRemote && snap.Status != "" {
		d.Status = snap.Status
	} else {
		d.Status = core.EffectiveStatus(local, cfg, now)
	}

	if cfg.PrioritizeAniListProgress && hasRemote && snap.Progress > 0 {
		d.Progress = snap.Progress
		if local.ChaptersRead > d.Progress {
			d.Progress = local.ChaptersRead
		}
	} else {
		d.Progress = local.ChaptersRead
	}
	if d.Progress < 0 {
		d.Progress = 0
	}

	if hasRemote && cfg.PrioritizeAniListScore && snap.Score > 0 {
		d.Score = snap.Score
	} else {
		d.Score = local.Score
	}
	if d.Score < 0 {
		d.Score = 0
	}

	if hasRemote {
		if cfg.SetPrivate {
			d.Private = true
		} else {
			d.Private = snap.Private
		}
	} else {
		d.Private = cfg.SetPrivate
	}

	return d
}

// progressDiffers applies the progress change predicate: under remote
// priority only forward movement counts; otherwise any difference does.
func progressDiffers(desired, remoteProgress int, cfg core.SyncConfig) bool {
	if cfg.PrioritizeAniListProgress {
		return desired > remoteProgress
	}
	return desired != remoteProgress
}

// scoreDiffers applies the score change predicate against the LOCAL
// score: a preserved-completed or remote-prioritized score never counts,
// an unscored local entry never counts, and an existing remote score
// must differ by at least half a point.
func scoreDiffers(localScore float64, snap core.MediaListEntry, cfg core.SyncConfig) bool {
	if cfg.PreserveCompletedStatus && snap.Status == core.StatusCompleted {
		return false
	}
	if cfg.PrioritizeAniListScore && snap.Score > 0 {
		return false
	}
	if localScore <= 0 {
		return false
	}
	if snap.Score == 0 {
		return true
	}
	return math.Abs(localScore-snap.Score) >= scoreEpsilon
}

// expandSteps applies the incremental expansion table. Step 1 bumps
// progress by one, step 2 jumps to the target, step 3 writes metadata.
// A non-positive progress delta contributes no progress steps.
func expandSteps(base *core.PlannedEntry, metadataChanged bool) []*core.PlannedEntry {
	var delta int
	if base.IsUpdate() {
		delta = base.Progress - base.PreviousValues.Progress
	} else {
		delta = base.Progress
	}

	var stepNumbers []int
	switch {
	case delta == 1:
		stepNumbers = []int{1}
	case delta > 1:
		stepNumbers = []int{1, 2}
	}
	if metadataChanged {
		stepNumbers = append(stepNumbers, 3)
	}
	if len(stepNumbers) == 0 {
		return nil
	}

	steps := make([]*core.PlannedEntry, 0, len(stepNumbers))
	for _, n := range stepNumbers {
		entry := *base
		entry.SyncMetadata = &core.SyncMetadata{
			UseIncremental: true,
			TargetProgress: base.Progress,
			Step:           n,
		}
		steps = append(steps, &entry)
	}
	return steps
}

// coverURL picks the display cover, preferring the AniList artwork.
func coverURL(match core.MangaMatchResult) string {
	if match.SelectedMatch != nil {
		if u := match.SelectedMatch.CoverImage.URL(); u != "" {
			return u
		}
	}
	return match.KenmeiManga.CoverURL
}

// sortSteps orders write steps ascending by step number.
func sortSteps(steps []*core.PlannedEntry) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Step() < steps[j].Step()
	})
}
