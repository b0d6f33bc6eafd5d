// Package anilist implements the AniList GraphQL client used by the sync
// engine: a process-wide FIFO request pipeline that keeps the client under
// the server's rate ceiling, per-class retry with exponential backoff, a
// TTL cache for search queries, and a result classifier that maps raw
// GraphQL envelopes onto sync outcomes.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ateliersoft/anisync/core"
)

const (
	// clientName prefixes the default User-Agent.
	clientName = "anisync"

	// defaultSearchPerPage is the page size for search queries.
	defaultSearchPerPage = 50

	// listPerChunk is the chunk size for MediaListCollection fetches.
	// AniList caps perChunk at 500.
	listPerChunk = 500

	// maxListChunks bounds the chunk loop against a server that never
	// reports the final chunk.
	maxListChunks = 50
)

// Client talks to the AniList GraphQL endpoint. All remote calls flow
// through the pipeline, so constructing several clients against the same
// (default) pipeline still yields one serialized request stream.
type Client struct {
	httpClient   *http.Client
	endpoint     string
	userAgent    string
	pipeline     *Pipeline
	cache        *SearchCache
	cacheEnabled bool
	retry        core.RetryConfig
	logger       core.Logger
	telemetry    core.Telemetry
}

// ClientOption customizes a Client beyond its configuration.
type ClientOption func(*Client)

// WithLogger attaches a logger to the client.
func WithLogger(logger core.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTelemetry attaches telemetry to the client.
func WithTelemetry(t core.Telemetry) ClientOption {
	return func(c *Client) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithPipeline routes the client through an explicit pipeline instead of
// the process default. Tests use this to isolate timing.
func WithPipeline(p *Pipeline) ClientOption {
	return func(c *Client) {
		if p != nil {
			c.pipeline = p
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithSearchCache replaces the client's search cache, for sharing one
// cache across clients or pre-seeding from a snapshot.
func WithSearchCache(cache *SearchCache) ClientOption {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// NewClient creates an AniList client from the configuration. A nil cfg
// uses defaults.
func NewClient(cfg *core.Config, opts ...ClientOption) *Client {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}

	userAgent := cfg.API.UserAgent
	if userAgent == "" {
		userAgent = fmt.Sprintf("%s/%s", clientName, core.Version)
	}

	c := &Client{
		httpClient:   &http.Client{Timeout: cfg.API.Timeout},
		endpoint:     cfg.API.Endpoint,
		userAgent:    userAgent,
		pipeline:     DefaultPipeline(),
		cacheEnabled: cfg.Cache.Enabled,
		retry:        cfg.Retry,
		logger:       &core.NoOpLogger{},
		telemetry:    &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewSearchCache(cfg.Cache.TTL, c.logger)
	}
	return c
}

// Pipeline exposes the pipeline this client dispatches through.
func (c *Client) Pipeline() *Pipeline {
	return c.pipeline
}

// do performs one HTTP POST against the endpoint. Non-2xx responses come
// back as *HTTPError with the body retained for classification; 429s
// carry the parsed Retry-After header.
func (c *Client) do(ctx context.Context, req Request, token, opName string) (*Envelope, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBody),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				httpErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		c.logger.Warn("AniList request failed", map[string]interface{}{
			"operation":   "anilist_request_error",
			"name":        opName,
			"status_code": resp.StatusCode,
			"retry_after": httpErr.RetryAfter.String(),
		})
		return nil, httpErr
	}

	var env Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("malformed response body: %w", err)
	}
	return &env, nil
}

// request enqueues one retry-wrapped call onto the pipeline.
func (c *Client) request(ctx context.Context, opName string, req Request, token string, mode retryMode) (*Envelope, error) {
	return c.pipeline.Enqueue(ctx, opName, func(opCtx context.Context) (*Envelope, error) {
		return c.executeWithRetry(opCtx, req, token, opName, mode)
	})
}

// UpdateMangaEntry writes one planned entry (or one incremental step of
// it) via SaveMediaListEntry. Per-entry failures are reported in the
// returned SyncResult rather than as an error, so the executor can apply
// its countdown and bookkeeping uniformly. A throttled call comes back
// right away as RateLimited with the server's wait; the executor owns
// the countdown and re-dispatches the same step.
func (c *Client) UpdateMangaEntry(ctx context.Context, entry *core.PlannedEntry, token string) *core.SyncResult {
	ctx, span := c.telemetry.StartSpan(ctx, "anilist.update_manga_entry")
	defer span.End()
	span.SetAttribute("anilist.media_id", entry.MediaID)
	span.SetAttribute("anilist.step", entry.Step())

	if token == "" {
		span.RecordError(core.ErrNoToken)
		return &core.SyncResult{MediaID: entry.MediaID, Error: core.ErrNoToken}
	}

	step := entry.Step()
	vars := BuildUpdateVariables(entry, step)
	query := BuildUpdateMutation(vars)

	c.logger.Debug("Dispatching entry update", map[string]interface{}{
		"operation": "update_manga_entry",
		"media_id":  entry.MediaID,
		"step":      step,
		"is_update": entry.IsUpdate(),
		"variables": len(vars),
	})

	env, err := c.request(ctx, "update_manga_entry", Request{Query: query, Variables: vars}, token, surfaceRateLimit)
	result := classifyUpdate(entry.MediaID, env, err)

	if result.Error != nil {
		span.RecordError(result.Error)
		c.logger.Warn("Entry update failed", map[string]interface{}{
			"operation":    "update_manga_entry",
			"media_id":     entry.MediaID,
			"step":         step,
			"rate_limited": result.RateLimited,
			"error":        result.Error.Error(),
		})
	}
	return result
}

// DeleteMangaEntry removes a remote list entry by its entry id.
func (c *Client) DeleteMangaEntry(ctx context.Context, entryID int, token string) (bool, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "anilist.delete_manga_entry")
	defer span.End()
	span.SetAttribute("anilist.entry_id", entryID)

	if entryID == 0 {
		return false, core.ErrMissingEntryID
	}
	if token == "" {
		return false, core.ErrNoToken
	}

	req := Request{
		Query:     deleteMediaListEntryMutation,
		Variables: map[string]interface{}{"id": entryID},
	}
	env, err := c.request(ctx, "delete_manga_entry", req, token, absorbRateLimit)
	deleted, err := classifyDelete(env, err)
	if err != nil {
		span.RecordError(err)
		return false, &core.SyncError{
			Op:   "anilist.DeleteMangaEntry",
			Kind: "api",
			Err:  err,
		}
	}
	return deleted, nil
}

// SearchManga finds manga by title, serving repeated searches from the
// read cache.
func (c *Client) SearchManga(ctx context.Context, search string, page, perPage int, token string) (*SearchResult, error) {
	return c.searchManga(ctx, search, page, perPage, token, false)
}

// SearchMangaBypassCache forces a fresh search even when a cached page
// is available. The fresh response still refreshes the cache.
func (c *Client) SearchMangaBypassCache(ctx context.Context, search string, page, perPage int, token string) (*SearchResult, error) {
	return c.searchManga(ctx, search, page, perPage, token, true)
}

func (c *Client) searchManga(ctx context.Context, search string, page, perPage int, token string, bypass bool) (*SearchResult, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "anilist.search_manga")
	defer span.End()
	span.SetAttribute("anilist.search", search)
	span.SetAttribute("anilist.page", page)

	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultSearchPerPage
	}
	vars := map[string]interface{}{
		"search":  search,
		"page":    page,
		"perPage": perPage,
	}

	if c.cacheEnabled && !bypass {
		if body, ok := c.cache.Get(searchMangaQuery, vars); ok {
			var payload pagePayload
			if err := json.Unmarshal(body, &payload); err == nil {
				span.SetAttribute("anilist.cache_hit", true)
				c.telemetry.RecordMetric("anilist.search_cache_hits", 1, nil)
				return &SearchResult{PageInfo: payload.Page.PageInfo, Media: payload.Page.Media}, nil
			}
			// A cache entry that no longer decodes is dropped and refetched.
			c.cache.InvalidateTerm(search)
		}
	}

	env, err := c.request(ctx, "search_manga", Request{Query: searchMangaQuery, Variables: vars}, token, absorbRateLimit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(env.Errors) > 0 {
		span.RecordError(env.Errors)
		return nil, env.Errors
	}

	data := unwrapData(env.Data)
	var payload pagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("malformed search response: %w", err)
	}

	if c.cacheEnabled {
		c.cache.Put(searchMangaQuery, vars, data)
	}
	return &SearchResult{PageInfo: payload.Page.PageInfo, Media: payload.Page.Media}, nil
}

// ClearSearchCache invalidates cached search responses for one term, or
// the whole cache when term is empty.
func (c *Client) ClearSearchCache(term string) {
	c.cache.InvalidateTerm(term)
}

// SearchCache exposes the cache for snapshot persistence.
func (c *Client) SearchCache() *SearchCache {
	return c.cache
}

// GetMangaByIDs resolves a batch of known media ids, chunked to the
// search page size.
func (c *Client) GetMangaByIDs(ctx context.Context, ids []int, token string) ([]core.AniListManga, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "anilist.get_manga_by_ids")
	defer span.End()
	span.SetAttribute("anilist.id_count", len(ids))

	if len(ids) == 0 {
		return nil, nil
	}

	var all []core.AniListManga
	for start := 0; start < len(ids); start += defaultSearchPerPage {
		end := start + defaultSearchPerPage
		if end > len(ids) {
			end = len(ids)
		}
		vars := map[string]interface{}{
			"ids":     ids[start:end],
			"page":    1,
			"perPage": defaultSearchPerPage,
		}
		env, err := c.request(ctx, "get_manga_by_ids", Request{Query: mangaByIDsQuery, Variables: vars}, token, absorbRateLimit)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if len(env.Errors) > 0 {
			span.RecordError(env.Errors)
			return nil, env.Errors
		}
		var payload pagePayload
		if err := json.Unmarshal(unwrapData(env.Data), &payload); err != nil {
			return nil, fmt.Errorf("malformed lookup response: %w", err)
		}
		all = append(all, payload.Page.Media...)
	}
	return all, nil
}

// GetViewer identifies the user the token belongs to.
func (c *Client) GetViewer(ctx context.Context, token string) (*Viewer, error) {
	if token == "" {
		return nil, core.ErrNoToken
	}

	env, err := c.request(ctx, "get_viewer", Request{Query: viewerQuery}, token, absorbRateLimit)
	if err != nil {
		return nil, err
	}
	if len(env.Errors) > 0 {
		return nil, env.Errors
	}

	var payload viewerPayload
	if err := json.Unmarshal(unwrapData(env.Data), &payload); err != nil {
		return nil, fmt.Errorf("malformed viewer response: %w", err)
	}
	if payload.Viewer == nil {
		return nil, fmt.Errorf("missing Viewer in response")
	}
	return payload.Viewer, nil
}

// GetUserMangaList fetches the viewer's complete manga list, keyed by
// media id, pulling MediaListCollection chunks until the server reports
// the last one.
func (c *Client) GetUserMangaList(ctx context.Context, token string) (map[int]core.MediaListEntry, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "anilist.get_user_manga_list")
	defer span.End()

	viewer, err := c.GetViewer(ctx, token)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("anilist.user_id", viewer.ID)

	entries := make(map[int]core.MediaListEntry)
	for chunk := 1; chunk <= maxListChunks; chunk++ {
		vars := map[string]interface{}{
			"userId":   viewer.ID,
			"chunk":    chunk,
			"perChunk": listPerChunk,
		}
		env, err := c.request(ctx, "get_user_manga_list", Request{Query: userMangaListQuery, Variables: vars}, token, absorbRateLimit)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if len(env.Errors) > 0 {
			span.RecordError(env.Errors)
			return nil, env.Errors
		}

		var payload listCollectionPayload
		if err := json.Unmarshal(unwrapData(env.Data), &payload); err != nil {
			return nil, fmt.Errorf("malformed list response: %w", err)
		}
		if payload.MediaListCollection == nil {
			break
		}
		for _, list := range payload.MediaListCollection.Lists {
			for _, wire := range list.Entries {
				entry := wire.toEntry()
				if entry.MediaID == 0 {
					continue
				}
				if _, seen := entries[entry.MediaID]; !seen {
					entries[entry.MediaID] = entry
				}
			}
		}
		if !payload.MediaListCollection.HasNextChunk {
			break
		}
	}

	c.logger.Info("Fetched user manga list", map[string]interface{}{
		"operation": "get_user_manga_list",
		"user_id":   viewer.ID,
		"entries":   len(entries),
	})
	return entries, nil
}
