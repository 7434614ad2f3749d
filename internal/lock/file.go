package lock

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const pollInterval = 25 * time.Millisecond

var _ Backend = (*File)(nil)

// File is an advisory lock on a file shared by every process on the host.
// Each holder opens its own descriptor, so two Documents in one process
// exclude each other as well.
type File struct {
	path string
}

// NewFile creates a lock file for key under dir. An empty dir means the
// system temp directory.
func NewFile(dir, key string) *File {
	if dir == "" {
		dir = os.TempDir()
	}
	return &File{path: filepath.Join(dir, "po-notifier-"+sanitize(key)+".lock")}
}

// Path returns the lock file location
func (f *File) Path() string {
	return f.path
}

// Lock polls for the file lock until it is held or ctx ends
func (f *File) Lock(ctx context.Context) (func(), error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		unlock, ok, err := f.TryLock(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return unlock, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryLock takes the file lock only if no other holder has it
func (f *File) TryLock(ctx context.Context) (func(), bool, error) {
	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, false, err
	}
	ok, err := tryFlock(fh)
	if err != nil || !ok {
		fh.Close()
		return nil, false, err
	}
	return func() {
		unflock(fh)
		fh.Close()
	}, true, nil
}

func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, key)
}
