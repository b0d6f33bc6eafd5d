package anilist

import (
	"fmt"
	"math"
	"strings"

	"github.com/ateliersoft/anisync/core"
)

// Variable declaration order and GraphQL types for the generated mutation.
// mediaId is always present and declared required.
var mutationVariableOrder = []struct {
	name    string
	gqlType string
}{
	{"mediaId", "Int!"},
	{"status", "MediaListStatus"},
	{"progress", "Int"},
	{"private", "Boolean"},
	{"score", "Float"},
}

// BuildUpdateVariables derives the minimal variable set for one write.
// For a plain write (step 0) it includes only the fields that actually
// change so untouched remote fields stay untouched. Incremental steps
// override minimization entirely: steps 1 and 2 write progress alone,
// step 3 writes the metadata fields.
func BuildUpdateVariables(entry *core.PlannedEntry, step int) map[string]interface{} {
	vars := map[string]interface{}{
		"mediaId": entry.MediaID,
	}

	switch step {
	case 1:
		// One minimal write to establish an activity heartbeat remotely.
		if entry.IsUpdate() {
			vars["progress"] = entry.PreviousValues.Progress + 1
		} else {
			vars["progress"] = 1
		}

	case 2:
		// Jump from the heartbeat to the true target.
		vars["progress"] = targetProgress(entry)

	case 3:
		// Finalize status, score, and privacy after progress is correct.
		if !entry.IsUpdate() || entry.Status != entry.PreviousValues.Status {
			if entry.Status != "" {
				vars["status"] = string(entry.Status)
			}
		}
		if entry.Score > 0 && (!entry.IsUpdate() || !floatsEqual(entry.Score, entry.PreviousValues.Score)) {
			vars["score"] = entry.Score
		}
		if entry.IsUpdate() {
			if entry.Private != entry.PreviousValues.Private {
				vars["private"] = entry.Private
			}
		} else if entry.Private {
			vars["private"] = true
		}

	default:
		if entry.IsUpdate() {
			prev := entry.PreviousValues
			if entry.Status != "" && entry.Status != prev.Status {
				vars["status"] = string(entry.Status)
			}
			if entry.Progress != prev.Progress {
				vars["progress"] = entry.Progress
			}
			// A zero desired score never un-scores a remote entry.
			if entry.Score > 0 && !floatsEqual(entry.Score, prev.Score) {
				vars["score"] = entry.Score
			}
			if entry.Private != prev.Private {
				vars["private"] = entry.Private
			}
		} else {
			// Creates have no previous values to diff against; every
			// populated field is sent.
			if entry.Status != "" {
				vars["status"] = string(entry.Status)
			}
			if entry.Progress > 0 {
				vars["progress"] = entry.Progress
			}
			if entry.Score > 0 {
				vars["score"] = entry.Score
			}
			if entry.Private {
				vars["private"] = true
			}
		}
	}

	return vars
}

// BuildUpdateMutation generates the SaveMediaListEntry document declaring
// only the variables present in vars, in a fixed order so the output is
// stable for identical inputs.
func BuildUpdateMutation(vars map[string]interface{}) string {
	var decls, args []string
	for _, v := range mutationVariableOrder {
		if _, ok := vars[v.name]; !ok {
			continue
		}
		decls = append(decls, fmt.Sprintf("$%s: %s", v.name, v.gqlType))
		args = append(args, fmt.Sprintf("%s: $%s", v.name, v.name))
	}

	var b strings.Builder
	b.WriteString("mutation (")
	b.WriteString(strings.Join(decls, ", "))
	b.WriteString(") {\n")
	b.WriteString("  SaveMediaListEntry(")
	b.WriteString(strings.Join(args, ", "))
	b.WriteString(") {\n")
	b.WriteString("    id\n")
	b.WriteString("    mediaId\n")
	b.WriteString("    status\n")
	b.WriteString("    progress\n")
	b.WriteString("    private\n")
	b.WriteString("    score\n")
	b.WriteString("  }\n")
	b.WriteString("}")
	return b.String()
}

// targetProgress resolves the final progress a multi-step expansion
// converges on.
func targetProgress(entry *core.PlannedEntry) int {
	if md := entry.SyncMetadata; md != nil && md.TargetProgress > 0 {
		return md.TargetProgress
	}
	return entry.Progress
}

func floatsEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
