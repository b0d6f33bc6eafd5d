package anilist

import (
	"strings"
	"testing"

	"github.com/ateliersoft/anisync/core"
)

// Test variable minimization for plain (non-incremental) writes
func TestBuildUpdateVariables_Minimal(t *testing.T) {
	tests := []struct {
		name  string
		entry *core.PlannedEntry
		want  map[string]interface{}
	}{
		{
			name: "update with only progress changed",
			entry: &core.PlannedEntry{
				MediaID:  100,
				Status:   core.StatusCurrent,
				Progress: 12,
				Score:    8,
				PreviousValues: &core.PreviousEntryValues{
					Status:   core.StatusCurrent,
					Progress: 10,
					Score:    8,
				},
			},
			want: map[string]interface{}{"mediaId": 100, "progress": 12},
		},
		{
			name: "update with only status changed",
			entry: &core.PlannedEntry{
				MediaID:  100,
				Status:   core.StatusCompleted,
				Progress: 40,
				PreviousValues: &core.PreviousEntryValues{
					Status:   core.StatusCurrent,
					Progress: 40,
				},
			},
			want: map[string]interface{}{"mediaId": 100, "status": "COMPLETED"},
		},
		{
			name: "update with nothing changed carries only mediaId",
			entry: &core.PlannedEntry{
				MediaID:  100,
				Status:   core.StatusCurrent,
				Progress: 10,
				Score:    7.5,
				PreviousValues: &core.PreviousEntryValues{
					Status:   core.StatusCurrent,
					Progress: 10,
					Score:    7.5,
				},
			},
			want: map[string]interface{}{"mediaId": 100},
		},
		{
			name: "zero desired score never un-scores the remote entry",
			entry: &core.PlannedEntry{
				MediaID:  100,
				Status:   core.StatusCurrent,
				Progress: 11,
				Score:    0,
				PreviousValues: &core.PreviousEntryValues{
					Status:   core.StatusCurrent,
					Progress: 10,
					Score:    9,
				},
			},
			want: map[string]interface{}{"mediaId": 100, "progress": 11},
		},
		{
			name: "privacy toggle included when changed",
			entry: &core.PlannedEntry{
				MediaID: 100,
				Status:  core.StatusCurrent,
				Private: true,
				PreviousValues: &core.PreviousEntryValues{
					Status:  core.StatusCurrent,
					Private: false,
				},
			},
			want: map[string]interface{}{"mediaId": 100, "private": true},
		},
		{
			name: "create includes status and set fields only",
			entry: &core.PlannedEntry{
				MediaID:  200,
				Status:   core.StatusPlanning,
				Progress: 0,
				Score:    0,
			},
			want: map[string]interface{}{"mediaId": 200, "status": "PLANNING"},
		},
		{
			name: "create with full fields",
			entry: &core.PlannedEntry{
				MediaID:  200,
				Status:   core.StatusCurrent,
				Progress: 5,
				Score:    8.5,
				Private:  true,
			},
			want: map[string]interface{}{
				"mediaId": 200, "status": "CURRENT", "progress": 5,
				"score": 8.5, "private": true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildUpdateVariables(tt.entry, 0)
			assertVars(t, got, tt.want)
		})
	}
}

// Test the per-step variable overrides of incremental sync
func TestBuildUpdateVariables_Steps(t *testing.T) {
	update := &core.PlannedEntry{
		MediaID:  300,
		Status:   core.StatusCompleted,
		Progress: 20,
		Score:    9,
		PreviousValues: &core.PreviousEntryValues{
			Status:   core.StatusCurrent,
			Progress: 15,
			Score:    7,
		},
		SyncMetadata: &core.SyncMetadata{UseIncremental: true, TargetProgress: 20},
	}

	t.Run("step 1 writes previous progress plus one", func(t *testing.T) {
		got := BuildUpdateVariables(update, 1)
		assertVars(t, got, map[string]interface{}{"mediaId": 300, "progress": 16})
	})

	t.Run("step 1 on a create starts at one", func(t *testing.T) {
		create := &core.PlannedEntry{MediaID: 300, Progress: 20,
			SyncMetadata: &core.SyncMetadata{UseIncremental: true, TargetProgress: 20}}
		got := BuildUpdateVariables(create, 1)
		assertVars(t, got, map[string]interface{}{"mediaId": 300, "progress": 1})
	})

	t.Run("step 2 jumps to the target", func(t *testing.T) {
		got := BuildUpdateVariables(update, 2)
		assertVars(t, got, map[string]interface{}{"mediaId": 300, "progress": 20})
	})

	t.Run("step 2 falls back to entry progress without metadata", func(t *testing.T) {
		bare := &core.PlannedEntry{MediaID: 300, Progress: 33}
		got := BuildUpdateVariables(bare, 2)
		assertVars(t, got, map[string]interface{}{"mediaId": 300, "progress": 33})
	})

	t.Run("step 3 writes changed metadata without progress", func(t *testing.T) {
		got := BuildUpdateVariables(update, 3)
		assertVars(t, got, map[string]interface{}{
			"mediaId": 300, "status": "COMPLETED", "score": float64(9),
		})
	})

	t.Run("step 3 skips unchanged metadata", func(t *testing.T) {
		same := &core.PlannedEntry{
			MediaID: 300,
			Status:  core.StatusCurrent,
			Score:   7,
			PreviousValues: &core.PreviousEntryValues{
				Status: core.StatusCurrent,
				Score:  7,
			},
		}
		got := BuildUpdateVariables(same, 3)
		assertVars(t, got, map[string]interface{}{"mediaId": 300})
	})
}

// Test that the mutation text declares exactly the present variables
func TestBuildUpdateMutation(t *testing.T) {
	t.Run("progress-only mutation", func(t *testing.T) {
		doc := BuildUpdateMutation(map[string]interface{}{
			"mediaId":  1,
			"progress": 5,
		})

		if !strings.Contains(doc, "mutation ($mediaId: Int!, $progress: Int)") {
			t.Errorf("declaration block wrong:\n%s", doc)
		}
		if !strings.Contains(doc, "SaveMediaListEntry(mediaId: $mediaId, progress: $progress)") {
			t.Errorf("argument block wrong:\n%s", doc)
		}
		if strings.Contains(doc, "$status") || strings.Contains(doc, "$score") || strings.Contains(doc, "$private") {
			t.Errorf("absent variables must not be declared:\n%s", doc)
		}
	})

	t.Run("full mutation keeps fixed declaration order", func(t *testing.T) {
		doc := BuildUpdateMutation(map[string]interface{}{
			"mediaId": 1, "status": "CURRENT", "progress": 5, "private": true, "score": 8.0,
		})
		want := "mutation ($mediaId: Int!, $status: MediaListStatus, $progress: Int, $private: Boolean, $score: Float)"
		if !strings.Contains(doc, want) {
			t.Errorf("declaration order wrong:\n%s", doc)
		}
	})

	t.Run("selection set always asks for the entry id", func(t *testing.T) {
		doc := BuildUpdateMutation(map[string]interface{}{"mediaId": 1})
		for _, field := range []string{"id", "mediaId", "status", "progress", "private", "score"} {
			if !strings.Contains(doc, field) {
				t.Errorf("selection set missing %s:\n%s", field, doc)
			}
		}
	})

	t.Run("identical variables produce identical text", func(t *testing.T) {
		vars := map[string]interface{}{"mediaId": 1, "score": 7.0, "status": "PAUSED"}
		if BuildUpdateMutation(vars) != BuildUpdateMutation(vars) {
			t.Error("mutation text should be deterministic")
		}
	})
}

// assertVars compares generated variables against the expectation exactly.
func assertVars(t *testing.T, got, want map[string]interface{}) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("variables = %v, want %v (count mismatch)", got, want)
		return
	}
	for k, wv := range want {
		gv, ok := got[k]
		if !ok {
			t.Errorf("missing variable %q in %v", k, got)
			continue
		}
		if gv != wv {
			t.Errorf("variable %q = %v (%T), want %v (%T)", k, gv, gv, wv, wv)
		}
	}
}
