package core

import (
	"errors"
	"fmt"
	"testing"
)

// Test SyncError string formatting in its different shapes
func TestSyncError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *SyncError
		want string
	}{
		{
			name: "op with wrapped error",
			err:  &SyncError{Op: "anilist.UpdateMangaEntry", Err: ErrRateLimited},
			want: "anilist.UpdateMangaEntry: rate limited by remote service",
		},
		{
			name: "op with media id",
			err:  &SyncError{Op: "anilist.UpdateMangaEntry", MediaID: 30002, Err: ErrRequestFailed},
			want: "anilist.UpdateMangaEntry [media 30002]: request failed",
		},
		{
			name: "message only",
			err:  &SyncError{Kind: "config", Message: "endpoint missing"},
			want: "endpoint missing",
		},
		{
			name: "wrapped error only",
			err:  &SyncError{Err: ErrNoToken},
			want: "no access token available",
		},
		{
			name: "kind fallback",
			err:  &SyncError{Kind: "store"},
			want: "store error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Test unwrapping through SyncError and multi-level chains
func TestSyncError_Unwrap(t *testing.T) {
	inner := &SyncError{Op: "anilist.request", Kind: "network", Err: ErrConnectionFailed}
	outer := fmt.Errorf("step 2 failed: %w", inner)

	if !errors.Is(outer, ErrConnectionFailed) {
		t.Error("errors.Is should find ErrConnectionFailed through the chain")
	}

	var syncErr *SyncError
	if !errors.As(outer, &syncErr) {
		t.Fatal("errors.As should find *SyncError in the chain")
	}
	if syncErr.Op != "anilist.request" {
		t.Errorf("unwrapped Op = %q, want anilist.request", syncErr.Op)
	}

	// A SyncError with no wrapped error unwraps to nil
	if (&SyncError{Message: "bare"}).Unwrap() != nil {
		t.Error("Unwrap() of bare error should be nil")
	}
}

// Test NewSyncError constructor
func TestNewSyncError(t *testing.T) {
	err := NewSyncError("sync.Run", "plan", ErrInvalidPlan)
	if err.Op != "sync.Run" || err.Kind != "plan" {
		t.Errorf("NewSyncError fields = %q/%q, want sync.Run/plan", err.Op, err.Kind)
	}
	if !errors.Is(err, ErrInvalidPlan) {
		t.Error("NewSyncError should wrap the given error")
	}
}

// Test error category helpers
func TestErrorCategoryHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		check   func(error) bool
		want    bool
		checkFn string
	}{
		{"rate limited is retryable", ErrRateLimited, IsRetryable, true, "IsRetryable"},
		{"timeout is retryable", fmt.Errorf("wrap: %w", ErrTimeout), IsRetryable, true, "IsRetryable"},
		{"connection failure is retryable", ErrConnectionFailed, IsRetryable, true, "IsRetryable"},
		{"store outage is retryable", ErrStoreUnavailable, IsRetryable, true, "IsRetryable"},
		{"no token is not retryable", ErrNoToken, IsRetryable, false, "IsRetryable"},
		{"invalid plan is not retryable", ErrInvalidPlan, IsRetryable, false, "IsRetryable"},

		{"no token is auth", ErrNoToken, IsAuthError, true, "IsAuthError"},
		{"expired token is auth", ErrTokenExpired, IsAuthError, true, "IsAuthError"},
		{"rate limit is not auth", ErrRateLimited, IsAuthError, false, "IsAuthError"},

		{"invalid config", ErrInvalidConfiguration, IsConfigurationError, true, "IsConfigurationError"},
		{"missing config", ErrMissingConfiguration, IsConfigurationError, true, "IsConfigurationError"},
		{"timeout is not config", ErrTimeout, IsConfigurationError, false, "IsConfigurationError"},

		{"invalid plan", ErrInvalidPlan, IsPlanError, true, "IsPlanError"},
		{"duplicate media", ErrDuplicateMediaID, IsPlanError, true, "IsPlanError"},
		{"missing entry id", ErrMissingEntryID, IsPlanError, true, "IsPlanError"},
		{"network is not plan", ErrConnectionFailed, IsPlanError, false, "IsPlanError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("%s(%v) = %v, want %v", tt.checkFn, tt.err, got, tt.want)
			}
		})
	}
}

// Test that helpers see through SyncError wrapping
func TestHelpersThroughWrapping(t *testing.T) {
	wrapped := &SyncError{Op: "anilist.request", Kind: "rate_limit", Err: ErrRateLimited}
	if !IsRetryable(wrapped) {
		t.Error("IsRetryable should see through SyncError wrapping")
	}

	doubly := fmt.Errorf("attempt 3: %w", wrapped)
	if !IsRetryable(doubly) {
		t.Error("IsRetryable should see through nested wrapping")
	}
}
