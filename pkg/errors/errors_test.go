package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingError(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewPublisher("redis", "publish listing", cause)

	assert.Equal(t, "[publisher] redis: publish listing - connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorTypePublisher, err.Type)
	assert.False(t, err.Time.IsZero())

	plain := NewValidation("job", "page count must be at least 1")
	assert.Equal(t, "[validation] job: page count must be at least 1", plain.Error())
	assert.Nil(t, plain.Unwrap())
}

func TestFetchErrorMessage(t *testing.T) {
	err := NewStatus(2, "https://example.com/?page=2", 503)
	assert.Equal(t, "[status] page 2 (https://example.com/?page=2): unexpected status code: 503", err.Error())

	wrapped := fmt.Errorf("session: %w", err)
	var fetchErr *FetchError
	require.True(t, stderrors.As(wrapped, &fetchErr))
	assert.Equal(t, 2, fetchErr.Page)
}

func TestFetchErrorUnwrap(t *testing.T) {
	err := NewCanceled(3, "https://example.com", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ErrorTypeCanceled, err.Type)

	rl := NewRateLimit(1, "https://example.com", 429, 5*time.Minute)
	assert.Contains(t, rl.Error(), "rate limited for 5m0s")
	assert.Equal(t, 429, rl.StatusCode)
}

func TestFetchErrorIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want bool
	}{
		{"network", NewNetwork(1, "u", stderrors.New("timeout")), true},
		{"server error", NewStatus(1, "u", 502), true},
		{"not found", NewStatus(1, "u", 404), false},
		{"parsing", NewParsing(1, "u", stderrors.New("bad html")), false},
		{"rate limited", NewRateLimit(1, "u", 429, time.Minute), false},
		{"canceled", NewCanceled(1, "u", context.Canceled), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.IsRetryable())
		})
	}
}
