package anilist

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// HTTPError represents a non-2xx response from the GraphQL endpoint.
// The body is retained for classification; rate-limited responses carry
// the parsed Retry-After header when the server sent one.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("anilist API error (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("anilist API error (status %d): %s", e.StatusCode, e.Status)
}

// GraphQLError is one entry of a GraphQL errors array.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Status     int                    `json:"status,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// GraphQLErrors joins multiple GraphQL errors into one error value.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		msgs = append(msgs, ge.Message)
	}
	return strings.Join(msgs, "; ")
}

var (
	// rateLimitPattern matches the messages AniList uses when throttling.
	rateLimitPattern = regexp.MustCompile(`(?i)rate limit|too many requests`)

	// retryAfterPattern extracts a "retry in N seconds" hint from an error message.
	retryAfterPattern = regexp.MustCompile(`(?i)(\d+)\s*(second|sec|s)`)
)

// IsRateLimited reports whether err is an HTTP 429 or a GraphQL error
// whose message indicates throttling.
func IsRateLimited(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429
	}
	var gqlErrs GraphQLErrors
	if errors.As(err, &gqlErrs) {
		for _, ge := range gqlErrs {
			if rateLimitPattern.MatchString(ge.Message) {
				return true
			}
		}
	}
	return false
}

// IsServerError reports whether err represents a 5xx response.
func IsServerError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 && httpErr.StatusCode < 600
	}
	return false
}

// retryAfterFromError resolves the wait a throttled caller should observe:
// the structured extensions.retryAfter (seconds) when present, else a
// numeric hint parsed from the message, else the 60 second default.
func retryAfterFromError(errs GraphQLErrors) time.Duration {
	for _, ge := range errs {
		if !rateLimitPattern.MatchString(ge.Message) {
			continue
		}
		if ge.Extensions != nil {
			if v, ok := ge.Extensions["retryAfter"]; ok {
				if secs, ok := asSeconds(v); ok {
					return secs
				}
			}
		}
		if m := retryAfterPattern.FindStringSubmatch(ge.Message); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return time.Duration(n) * time.Second
			}
		}
	}
	return defaultRetryAfter
}

// asSeconds converts the loosely typed extensions.retryAfter value
// (JSON numbers decode as float64, but strings appear in the wild too).
func asSeconds(v interface{}) (time.Duration, bool) {
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return time.Duration(n * float64(time.Second)), true
		}
	case int:
		if n > 0 {
			return time.Duration(n) * time.Second, true
		}
	case string:
		if parsed, err := strconv.ParseFloat(n, 64); err == nil && parsed > 0 {
			return time.Duration(parsed * float64(time.Second)), true
		}
	}
	return 0, false
}
