package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// JobLock is a held per-job file lock.
type JobLock struct {
	lock *flock.Flock
}

// Unlock releases the lock. It is safe to call on a nil lock.
func (l *JobLock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// Path returns the lock file location.
func (l *JobLock) Path() string {
	if l == nil || l.lock == nil {
		return ""
	}
	return l.lock.Path()
}

// lockJob blocks until the lock file for id is held or ctx ends.
func lockJob(ctx context.Context, dir, id string) (*JobLock, error) {
	if err := validateID("lock", id); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, id+".lock"))
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire job lock %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire job lock %s: lock not obtained", id)
	}
	return &JobLock{lock: lock}, nil
}
