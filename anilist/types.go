package anilist

import (
	"encoding/json"

	"github.com/ateliersoft/anisync/core"
)

// Request is the JSON body of one GraphQL POST.
type Request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// Envelope is the raw GraphQL response. Data stays undecoded so the
// classifier can probe for both data.X and double-wrapped data.data.X
// shapes before committing to a payload type.
type Envelope struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors GraphQLErrors   `json:"errors,omitempty"`
}

// unwrapData returns the effective payload bytes: the data field itself,
// or the inner data field when a transport layer double-wrapped the
// response. Returns nil when neither shape carries an object.
func unwrapData(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	var probe struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && len(probe.Data) > 0 {
		// Only treat it as a wrapper if the inner value is an object.
		if probe.Data[0] == '{' {
			return probe.Data
		}
	}
	return data
}

// PageInfo is the pagination block AniList returns on Page queries.
type PageInfo struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"currentPage"`
	LastPage    int  `json:"lastPage"`
	HasNextPage bool `json:"hasNextPage"`
	PerPage     int  `json:"perPage"`
}

// SearchResult is one page of manga search results.
type SearchResult struct {
	PageInfo PageInfo            `json:"pageInfo"`
	Media    []core.AniListManga `json:"media"`
}

// Viewer identifies the authenticated user.
type Viewer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Payload shapes for the documents in queries.go.

type pagePayload struct {
	Page struct {
		PageInfo PageInfo            `json:"pageInfo"`
		Media    []core.AniListManga `json:"media"`
	} `json:"Page"`
}

type viewerPayload struct {
	Viewer *Viewer `json:"Viewer"`
}

type saveEntryPayload struct {
	SaveMediaListEntry *savedEntry `json:"SaveMediaListEntry"`
}

type savedEntry struct {
	ID       int                  `json:"id"`
	MediaID  int                  `json:"mediaId"`
	Status   core.MediaListStatus `json:"status"`
	Progress int                  `json:"progress"`
	Score    float64              `json:"score"`
	Private  bool                 `json:"private"`
}

type deleteEntryPayload struct {
	DeleteMediaListEntry *struct {
		Deleted bool `json:"deleted"`
	} `json:"DeleteMediaListEntry"`
}

type listCollectionPayload struct {
	MediaListCollection *struct {
		HasNextChunk bool `json:"hasNextChunk"`
		Lists        []struct {
			Name    string          `json:"name"`
			Entries []listEntryWire `json:"entries"`
		} `json:"lists"`
	} `json:"MediaListCollection"`
}

type listEntryWire struct {
	ID       int                  `json:"id"`
	MediaID  int                  `json:"mediaId"`
	Status   core.MediaListStatus `json:"status"`
	Progress int                  `json:"progress"`
	Score    float64              `json:"score"`
	Private  bool                 `json:"private"`
	Media    *struct {
		ID    int              `json:"id"`
		Title *core.MediaTitle `json:"title"`
	} `json:"media"`
}

// toEntry converts a wire entry into the domain snapshot type.
func (w listEntryWire) toEntry() core.MediaListEntry {
	entry := core.MediaListEntry{
		ID:       w.ID,
		MediaID:  w.MediaID,
		Status:   w.Status,
		Progress: w.Progress,
		Score:    w.Score,
		Private:  w.Private,
	}
	if entry.MediaID == 0 && w.Media != nil {
		entry.MediaID = w.Media.ID
	}
	if w.Media != nil && w.Media.Title != nil {
		entry.Title = w.Media.Title
	}
	return entry
}
