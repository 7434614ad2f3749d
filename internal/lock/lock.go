// Package lock provides the document-scoped mutual exclusion held for the
// whole check-then-act sequence of a notification.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned when the lock could not be acquired in time
var ErrTimeout = errors.New("could not acquire document lock")

// Backend serializes lock holders across processes
type Backend interface {
	// Lock blocks until the lock is held or ctx ends.
	Lock(ctx context.Context) (func(), error)
	// TryLock takes the lock only if it is free.
	TryLock(ctx context.Context) (func(), bool, error)
}

// Document is a mutex with a bounded wait. Holders in one process queue on
// a semaphore; the optional backend extends the lock to other processes
// working on the same spreadsheet.
type Document struct {
	sem     *semaphore.Weighted
	backend Backend
	timeout time.Duration
}

// New creates an in-process lock that waits at most timeout
func New(timeout time.Duration) *Document {
	return NewShared(timeout, nil)
}

// NewShared creates a lock that is also held on backend while taken
func NewShared(timeout time.Duration, backend Backend) *Document {
	return &Document{sem: semaphore.NewWeighted(1), backend: backend, timeout: timeout}
}

// Acquire blocks until the lock is held, the timeout passes or ctx ends.
// The returned func releases the lock.
func (d *Document) Acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w after %s: %v", ErrTimeout, d.timeout, err)
	}
	if d.backend == nil {
		return func() { d.sem.Release(1) }, nil
	}

	unlock, err := d.backend.Lock(ctx)
	if err != nil {
		d.sem.Release(1)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w after %s: %v", ErrTimeout, d.timeout, err)
		}
		return nil, fmt.Errorf("document lock: %w", err)
	}
	return func() {
		unlock()
		d.sem.Release(1)
	}, nil
}

// TryAcquire takes the lock only if it is free
func (d *Document) TryAcquire(ctx context.Context) (func(), bool) {
	if !d.sem.TryAcquire(1) {
		return nil, false
	}
	if d.backend == nil {
		return func() { d.sem.Release(1) }, true
	}

	unlock, ok, err := d.backend.TryLock(ctx)
	if err != nil || !ok {
		d.sem.Release(1)
		return nil, false
	}
	return func() {
		unlock()
		d.sem.Release(1)
	}, true
}
