package anilist

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ateliersoft/anisync/core"
)

// errorClass buckets a failed call into the retry policy that applies.
type errorClass int

const (
	// classFatal errors surface immediately: GraphQL errors, 4xx other
	// than 429, cancelled contexts.
	classFatal errorClass = iota
	// classRateLimit is HTTP 429.
	classRateLimit
	// classServerError is any 5xx.
	classServerError
	// classNetwork is a transport failure before a status was received.
	classNetwork
)

func (c errorClass) String() string {
	switch c {
	case classRateLimit:
		return "rate_limit"
	case classServerError:
		return "server_error"
	case classNetwork:
		return "network"
	default:
		return "fatal"
	}
}

// retryMode selects who owns a rate-limit wait.
type retryMode int

const (
	// absorbRateLimit sleeps through 429s inside the retry loop. Read
	// operations use it: they have no countdown surface to hand the
	// wait to.
	absorbRateLimit retryMode = iota
	// surfaceRateLimit returns the 429 to the caller as soon as the
	// pipeline gate is set. Update operations use it so the executor's
	// countdown owns the wait and re-dispatches the step itself.
	surfaceRateLimit
)

// classifyTransportError decides which retry policy applies to err.
func classifyTransportError(err error) errorClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return classFatal
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 429:
			return classRateLimit
		case httpErr.StatusCode >= 500:
			return classServerError
		default:
			return classFatal
		}
	}
	var gqlErrs GraphQLErrors
	if errors.As(err, &gqlErrs) {
		return classFatal
	}
	return classNetwork
}

// executeWithRetry performs the request with per-class exponential
// backoff. It runs inside a pipeline operation, so the whole retry
// sequence occupies a single queue slot and later operations stay queued
// behind it. Every 429 gates the pipeline via ObserveRetryAfter, the
// final attempt included, so unrelated operations observe the server's
// hint; mode decides whether the 429 is then slept through here or
// returned to the caller.
func (c *Client) executeWithRetry(ctx context.Context, req Request, token, opName string, mode retryMode) (*Envelope, error) {
	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		env, err := c.do(ctx, req, token, opName)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("AniList request succeeded after retry", map[string]interface{}{
					"operation":          "anilist_request_recovery",
					"name":               opName,
					"successful_attempt": attempt + 1,
				})
			}
			return env, nil
		}
		lastErr = err

		class := classifyTransportError(err)
		if class == classFatal {
			return nil, err
		}

		delay := c.backoffFor(class, attempt, err)
		if class == classRateLimit {
			c.pipeline.ObserveRetryAfter(delay)
			if mode == surfaceRateLimit {
				return nil, err
			}
		}
		if attempt == maxAttempts-1 {
			break
		}

		c.logger.Warn("AniList request failed, retrying", map[string]interface{}{
			"operation":      "anilist_request_retry",
			"name":           opName,
			"attempt":        attempt + 1,
			"max_attempts":   maxAttempts,
			"error_class":    class.String(),
			"retry_delay_ms": delay.Milliseconds(),
			"error":          err.Error(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	c.logger.Error("AniList request failed after all retries", map[string]interface{}{
		"operation":      "anilist_request_final_failure",
		"name":           opName,
		"total_attempts": maxAttempts,
		"final_error":    lastErr.Error(),
	})
	return nil, fmt.Errorf("%w after %d attempts: %w", core.ErrMaxRetriesExceeded, maxAttempts, lastErr)
}

// backoffFor computes the wait before the next attempt.
//
// Rate limits honor the server's Retry-After when it sent one, else
// 5s * 2^attempt capped at 60s with jitter. Server errors use
// 3s * 2^attempt capped at 60s with jitter. Network errors use a plain
// deterministic 1s * 2^attempt.
func (c *Client) backoffFor(class errorClass, attempt int, err error) time.Duration {
	cfg := c.retry
	switch class {
	case classRateLimit:
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
			return httpErr.RetryAfter
		}
		return jittered(expBackoff(cfg.RateLimitBaseDelay, attempt, cfg.MaxDelay), cfg.JitterRatio, cfg.MinDelay)
	case classServerError:
		return jittered(expBackoff(cfg.ServerErrorBaseDelay, attempt, cfg.MaxDelay), cfg.JitterRatio, cfg.MinDelay)
	default:
		return expBackoff(cfg.NetworkBaseDelay, attempt, 0)
	}
}

// expBackoff returns base * 2^attempt, capped at max when max is positive.
func expBackoff(base time.Duration, attempt int, max time.Duration) time.Duration {
	// Cap the shift to keep the multiplication from overflowing.
	var shift uint
	if attempt >= 0 && attempt < 31 {
		shift = uint(attempt)
	} else {
		shift = 31
	}
	d := base * time.Duration(1<<shift)
	if max > 0 && d > max {
		return max
	}
	return d
}

// jittered applies ±ratio jitter and enforces the floor.
func jittered(d time.Duration, ratio float64, floor time.Duration) time.Duration {
	if ratio > 0 {
		spread := (2*rand.Float64() - 1) * ratio
		d = time.Duration(float64(d) * (1 + spread))
	}
	if d < floor {
		return floor
	}
	return d
}
