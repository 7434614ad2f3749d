package gauth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
)

// Retrier repeats Google API calls that failed on quota
type Retrier struct {
	Attempts int
	Backoff  func(attempt int) time.Duration
}

// NewRetrier makes three attempts, waiting attempt² seconds between them
func NewRetrier() *Retrier {
	return &Retrier{
		Attempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// Do runs fn until it succeeds, fails with a non-quota error or runs out
// of attempts. It returns the last error of fn, or the context error when
// ctx ends while waiting.
func (r *Retrier) Do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsQuotaError(err) || attempt == r.Attempts {
			return err
		}

		wait := r.Backoff(attempt)
		logrus.WithFields(logrus.Fields{"op": op, "attempt": attempt, "wait": wait}).
			Warnf("Rate limited: %v", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// IsQuotaError reports whether err is a Google API rate or quota rejection
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return true
		}
		for _, item := range apiErr.Errors {
			if strings.Contains(strings.ToLower(item.Reason), "ratelimit") {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "rate")
}
