package testsupport

import (
	"context"
	"testing"

	"slidenotes/internal/alignment"
	"slidenotes/internal/config"
	"slidenotes/internal/jobs"
)

// MustOpenStore opens the configured jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a job in the created state with the given inputs.
func NewJob(t testing.TB, store jobs.Store, id string, segments []alignment.Segment, slides []alignment.Slide) *jobs.Job {
	t.Helper()

	job := &jobs.Job{ID: id, Status: jobs.StatusCreated}
	if err := store.Create(context.Background(), job, segments, slides); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
