package anilist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ateliersoft/anisync/core"
)

const (
	// defaultRetryAfter is assumed when the server throttles without
	// saying how long to wait.
	defaultRetryAfter = 60 * time.Second

	// serverErrorRetryHint is the soft-retry delay attached to 500-class
	// failures so the executor can wait and replay the step.
	serverErrorRetryHint = 3 * time.Second
)

// errNoEntryID is recorded for any update response that carries no entry
// id in either unwrapping shape. The wording lands verbatim in the sync
// report.
var errNoEntryID = errors.New("Update failed: No entry ID returned in response")

// classifyUpdate turns the outcome of one SaveMediaListEntry dispatch
// into a SyncResult. Retryable outcomes (throttling, 500-class errors)
// get RateLimited plus a RetryAfter hint; everything else is a terminal
// success or failure.
func classifyUpdate(mediaID int, env *Envelope, err error) *core.SyncResult {
	result := &core.SyncResult{MediaID: mediaID}

	if err != nil {
		switch {
		case errors.Is(err, core.ErrMaxRetriesExceeded):
			// An exhausted retry budget is terminal no matter what the
			// wrapped message looks like.
			result.Error = err
		case isRateLimitShaped(err):
			result.RateLimited = true
			result.RetryAfter = retryAfterFromTransport(err)
			result.Error = err
		case isServerErrorShaped(err):
			result.RateLimited = true
			result.RetryAfter = serverErrorRetryHint
			result.Error = err
		default:
			result.Error = err
		}
		return result
	}

	if env == nil {
		result.Error = errNoEntryID
		return result
	}

	if len(env.Errors) > 0 {
		for _, ge := range env.Errors {
			if rateLimitPattern.MatchString(ge.Message) {
				result.RateLimited = true
				result.RetryAfter = retryAfterFromError(env.Errors)
				result.Error = env.Errors
				return result
			}
		}
		result.Error = env.Errors
		return result
	}

	var payload saveEntryPayload
	if err := json.Unmarshal(unwrapData(env.Data), &payload); err != nil {
		result.Error = errNoEntryID
		return result
	}
	if payload.SaveMediaListEntry == nil || payload.SaveMediaListEntry.ID == 0 {
		result.Error = errNoEntryID
		return result
	}

	result.Success = true
	result.EntryID = payload.SaveMediaListEntry.ID
	return result
}

// classifyDelete extracts the deleted flag from a DeleteMediaListEntry
// response.
func classifyDelete(env *Envelope, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	if env == nil {
		return false, errors.New("empty response for delete")
	}
	if len(env.Errors) > 0 {
		return false, env.Errors
	}

	var payload deleteEntryPayload
	if err := json.Unmarshal(unwrapData(env.Data), &payload); err != nil {
		return false, fmt.Errorf("malformed delete response: %w", err)
	}
	if payload.DeleteMediaListEntry == nil {
		return false, errors.New("missing DeleteMediaListEntry in response")
	}
	return payload.DeleteMediaListEntry.Deleted, nil
}

// isRateLimitShaped reports whether a transport error represents
// throttling that survived the inner retry loop.
func isRateLimitShaped(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429
	}
	return rateLimitPattern.MatchString(err.Error())
}

// retryAfterFromTransport resolves the countdown for a throttled call:
// the Retry-After header when the server sent one, else a numeric hint
// in the message, else the 60 second default.
func retryAfterFromTransport(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}
	if m := retryAfterPattern.FindStringSubmatch(err.Error()); m != nil {
		if secs, ok := asSeconds(m[1]); ok {
			return secs
		}
	}
	return defaultRetryAfter
}

// isServerErrorShaped detects 500-class failures in all the shapes they
// arrive in: a structured status, the standard reason phrase, or a bare
// "500" buried in a serialized error.
func isServerErrorShaped(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 && httpErr.StatusCode < 600
	}
	msg := err.Error()
	return strings.Contains(msg, "Internal Server Error") ||
		strings.Contains(msg, `"status":500`) ||
		strings.Contains(msg, "500")
}
