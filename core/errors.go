package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Authentication errors
	ErrNoToken      = errors.New("no access token available")
	ErrTokenExpired = errors.New("access token expired")

	// Rate limiting and retry errors
	ErrRateLimited        = errors.New("rate limited by remote service")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Plan and entry errors
	ErrInvalidPlan      = errors.New("invalid sync plan")
	ErrDuplicateMediaID = errors.New("duplicate media id in plan")
	ErrMissingEntryID   = errors.New("entry id required for deletion")
	ErrEntryNotFound    = errors.New("media list entry not found")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Operation errors
	ErrCancelled      = errors.New("operation cancelled")
	ErrTimeout        = errors.New("operation timeout")
	ErrPipelineClosed = errors.New("request pipeline closed")

	// HTTP/Network errors
	ErrConnectionFailed = errors.New("connection failed")
	ErrRequestFailed    = errors.New("request failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// SyncError provides structured error information with context
// It implements the error interface and supports error wrapping
type SyncError struct {
	Op      string // Operation that failed (e.g., "anilist.UpdateMangaEntry")
	Kind    string // Error kind (e.g., "auth", "network", "plan")
	MediaID int    // Optional AniList media ID involved
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *SyncError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.MediaID != 0 {
			return fmt.Sprintf("%s [media %d]: %v", e.Op, e.MediaID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError creates a new SyncError
func NewSyncError(op, kind string, err error) *SyncError {
	return &SyncError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsRetryable checks if an error is retryable
// Retryable errors are typically transient network or availability issues
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrStoreUnavailable)
}

// IsAuthError checks if an error is authentication-related
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNoToken) ||
		errors.Is(err, ErrTokenExpired)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsPlanError checks if an error relates to plan construction
func IsPlanError(err error) bool {
	return errors.Is(err, ErrInvalidPlan) ||
		errors.Is(err, ErrDuplicateMediaID) ||
		errors.Is(err, ErrMissingEntryID)
}
