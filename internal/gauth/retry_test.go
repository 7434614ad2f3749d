package gauth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestIsQuotaError(t *testing.T) {
	assert.True(t, IsQuotaError(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.True(t, IsQuotaError(&googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}))
	assert.True(t, IsQuotaError(errors.New("daily quota exceeded")))
	assert.False(t, IsQuotaError(&googleapi.Error{Code: 400, Message: "invalid to header"}))
	assert.False(t, IsQuotaError(nil))
}

func instant() *Retrier {
	r := NewRetrier()
	r.Backoff = func(int) time.Duration { return time.Millisecond }
	return r
}

func TestRetrierRetriesQuotaErrors(t *testing.T) {
	calls := 0
	err := instant().Do(context.Background(), "read", func() error {
		calls++
		if calls < 3 {
			return &googleapi.Error{Code: http.StatusTooManyRequests}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrierGivesUp(t *testing.T) {
	calls := 0
	quota := &googleapi.Error{Code: http.StatusTooManyRequests}
	err := instant().Do(context.Background(), "read", func() error {
		calls++
		return quota
	})
	assert.ErrorIs(t, err, quota)
	assert.Equal(t, 3, calls)

	calls = 0
	bad := &googleapi.Error{Code: http.StatusBadRequest}
	err = instant().Do(context.Background(), "read", func() error {
		calls++
		return bad
	})
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls)
}

func TestRetrierStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetrier()
	calls := 0
	err := r.Do(ctx, "send", func() error {
		calls++
		return &googleapi.Error{Code: http.StatusTooManyRequests}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
