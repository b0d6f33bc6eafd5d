package core

import (
	"strings"
	"time"
)

// MediaListStatus is the remote list state of a manga entry.
// The values mirror AniList's MediaListStatus enum and are sent verbatim
// in GraphQL variables.
type MediaListStatus string

const (
	StatusCurrent   MediaListStatus = "CURRENT"
	StatusPlanning  MediaListStatus = "PLANNING"
	StatusCompleted MediaListStatus = "COMPLETED"
	StatusDropped   MediaListStatus = "DROPPED"
	StatusPaused    MediaListStatus = "PAUSED"
	StatusRepeating MediaListStatus = "REPEATING"
)

// Valid reports whether s is one of the six recognized list states.
func (s MediaListStatus) Valid() bool {
	switch s {
	case StatusCurrent, StatusPlanning, StatusCompleted,
		StatusDropped, StatusPaused, StatusRepeating:
		return true
	}
	return false
}

// ParseMediaListStatus converts a raw string into a MediaListStatus.
// Comparison is case-insensitive. Unknown values return ok = false.
func ParseMediaListStatus(raw string) (MediaListStatus, bool) {
	s := MediaListStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if s.Valid() {
		return s, true
	}
	return "", false
}

// Kenmei status vocabulary as it appears in export files.
const (
	KenmeiStatusReading    = "reading"
	KenmeiStatusCompleted  = "completed"
	KenmeiStatusOnHold     = "on_hold"
	KenmeiStatusDropped    = "dropped"
	KenmeiStatusPlanToRead = "plan_to_read"
)

// KenmeiManga is one row of a Kenmei export. Field names follow the
// export's snake_case JSON so a decoded export maps directly onto it.
type KenmeiManga struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	Score        float64   `json:"score"`
	ChaptersRead int       `json:"chapters_read"`
	VolumesRead  int       `json:"volumes_read"`
	Notes        string    `json:"notes,omitempty"`
	LastReadAt   time.Time `json:"last_read_at,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
	URL          string    `json:"url,omitempty"`
	CoverURL     string    `json:"cover_url,omitempty"`
}

// NormalizeKenmeiStatus maps the Kenmei status vocabulary onto AniList's.
// Separators are normalized so "on hold", "on-hold" and "on_hold" all
// resolve the same way. Unrecognized values fall back to PLANNING, the
// least destructive target state.
func NormalizeKenmeiStatus(raw string) MediaListStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	switch s {
	case KenmeiStatusReading:
		return StatusCurrent
	case KenmeiStatusCompleted:
		return StatusCompleted
	case KenmeiStatusOnHold:
		return StatusPaused
	case KenmeiStatusDropped:
		return StatusDropped
	case KenmeiStatusPlanToRead:
		return StatusPlanning
	default:
		if parsed, ok := ParseMediaListStatus(raw); ok {
			return parsed
		}
		return StatusPlanning
	}
}

// EffectiveStatus resolves the status a local entry should have after
// sync, applying the auto-pause policy: an actively-read manga whose
// last_read_at is older than the configured threshold becomes PAUSED.
// The function is pure; callers supply now so planning stays deterministic.
func EffectiveStatus(m KenmeiManga, cfg SyncConfig, now time.Time) MediaListStatus {
	status := NormalizeKenmeiStatus(m.Status)
	if !cfg.AutoPauseInactive || status != StatusCurrent {
		return status
	}
	if m.LastReadAt.IsZero() {
		return status
	}
	threshold := cfg.autoPauseThreshold()
	if now.Sub(m.LastReadAt) >= threshold {
		return StatusPaused
	}
	return status
}

// MediaTitle holds the alternative titles AniList tracks for a media.
type MediaTitle struct {
	Romaji  string `json:"romaji,omitempty"`
	English string `json:"english,omitempty"`
	Native  string `json:"native,omitempty"`
}

// Preferred returns the best display title: English, then romaji, then native.
func (t MediaTitle) Preferred() string {
	if t.English != "" {
		return t.English
	}
	if t.Romaji != "" {
		return t.Romaji
	}
	return t.Native
}

// CoverImage holds the cover art URLs AniList serves per media.
type CoverImage struct {
	Large  string `json:"large,omitempty"`
	Medium string `json:"medium,omitempty"`
}

// URL returns the largest available cover URL.
func (c CoverImage) URL() string {
	if c.Large != "" {
		return c.Large
	}
	return c.Medium
}

// AniListManga is the candidate metadata returned by AniList search
// and lookup queries. Tags match the GraphQL response shape.
type AniListManga struct {
	ID         int        `json:"id"`
	Title      MediaTitle `json:"title"`
	Format     string     `json:"format,omitempty"`
	Status     string     `json:"status,omitempty"`
	Chapters   int        `json:"chapters,omitempty"`
	Volumes    int        `json:"volumes,omitempty"`
	CoverImage CoverImage `json:"coverImage,omitempty"`
}

// MediaListEntry is the remote snapshot of a user's list entry for one
// media. A zero ID means the entry does not exist remotely yet.
type MediaListEntry struct {
	ID       int             `json:"id,omitempty"`
	MediaID  int             `json:"mediaId"`
	Status   MediaListStatus `json:"status,omitempty"`
	Progress int             `json:"progress,omitempty"`
	Score    float64         `json:"score,omitempty"`
	Private  bool            `json:"private,omitempty"`
	Title    *MediaTitle     `json:"title,omitempty"`
}

// MatchStatus describes how a Kenmei entry was paired with an AniList media.
type MatchStatus string

const (
	// MatchStatusMatched means an automatic match was accepted.
	MatchStatusMatched MatchStatus = "matched"
	// MatchStatusManual means the user picked the candidate by hand.
	MatchStatusManual MatchStatus = "manual"
	// MatchStatusPending means no candidate has been accepted yet.
	MatchStatusPending MatchStatus = "pending"
	// MatchStatusSkipped means the user excluded the entry from sync.
	MatchStatusSkipped MatchStatus = "skipped"
)

// MangaMatch is one scored AniList candidate for a Kenmei entry.
type MangaMatch struct {
	Manga      AniListManga `json:"manga"`
	Confidence float64      `json:"confidence"`
}

// MangaMatchResult pairs a Kenmei entry with its AniList candidates.
// Only results with status matched or manual and a non-nil SelectedMatch
// participate in planning.
type MangaMatchResult struct {
	KenmeiManga    KenmeiManga   `json:"kenmeiManga"`
	AniListMatches []MangaMatch  `json:"anilistMatches,omitempty"`
	SelectedMatch  *AniListManga `json:"selectedMatch,omitempty"`
	Status         MatchStatus   `json:"status"`
}

// Syncable reports whether this match should be considered by the planner.
func (r MangaMatchResult) Syncable() bool {
	if r.SelectedMatch == nil {
		return false
	}
	return r.Status == MatchStatusMatched || r.Status == MatchStatusManual
}

// DisplayTitle returns the best human-readable title for progress reporting,
// preferring the AniList title over the raw Kenmei one.
func (r MangaMatchResult) DisplayTitle() string {
	if r.SelectedMatch != nil {
		if t := r.SelectedMatch.Title.Preferred(); t != "" {
			return t
		}
	}
	return r.KenmeiManga.Title
}
