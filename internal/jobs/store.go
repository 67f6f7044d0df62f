package jobs

import (
	"context"
	"fmt"
	"strings"

	"slidenotes/internal/alignment"
	"slidenotes/internal/config"
	"slidenotes/internal/services"
)

// Store persists jobs. Implementations are safe for concurrent use within a
// process; LockJob serializes result writes across processes.
type Store interface {
	// Create persists a new job together with its inputs.
	Create(ctx context.Context, job *Job, segments []alignment.Segment, slides []alignment.Slide) error
	// Get returns the job or a services.ErrNotFound error.
	Get(ctx context.Context, id string) (*Job, error)
	// List returns jobs newest first, optionally filtered by status.
	List(ctx context.Context, statuses ...Status) ([]*Job, error)
	// Update persists status and progress fields of an existing job.
	Update(ctx context.Context, job *Job) error
	// Inputs returns the segments and slides stored with the job.
	Inputs(ctx context.Context, id string) ([]alignment.Segment, []alignment.Slide, error)
	// SaveResult replaces the job's result document.
	SaveResult(ctx context.Context, id string, result *alignment.Result) error
	// LoadResult returns the job's result document or a services.ErrNotFound error.
	LoadResult(ctx context.Context, id string) (*alignment.Result, error)
	// ResetStuck returns in-flight jobs to the status they can resume from.
	ResetStuck(ctx context.Context) (int64, error)
	// LockJob takes the cross-process lock for one job.
	LockJob(ctx context.Context, id string) (*JobLock, error)
	// Location describes where the store keeps its data.
	Location() string
	Close() error
}

// Open builds the store selected by storage.backend.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", "config is nil", nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case config.StorageSQLite, "":
		return OpenRelational(cfg.DatabasePath(), cfg.JobsDir())
	case config.StorageFilesystem:
		return OpenFilesystem(cfg.JobsDir())
	default:
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open",
			fmt.Sprintf("unknown storage backend %q", cfg.Storage.Backend), nil)
	}
}

func jobNotFound(id string) error {
	return services.Wrap(services.ErrNotFound, "storage", "lookup", fmt.Sprintf("job %s not found", id), nil)
}

func resultNotFound(id string) error {
	return services.Wrap(services.ErrNotFound, "storage", "lookup", fmt.Sprintf("job %s has no result yet", id), nil)
}

func validateNewJob(job *Job) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "storage", "create", "job is nil", nil)
	}
	if err := validateID("create", job.ID); err != nil {
		return err
	}
	if job.Status == "" {
		job.Status = StatusCreated
	}
	return nil
}

// validateID rejects ids that are empty or would escape the store directory.
func validateID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return services.Wrap(services.ErrValidation, "storage", op, "job id is required", nil)
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return services.Wrap(services.ErrValidation, "storage", op, fmt.Sprintf("invalid job id %q", id), nil)
	}
	return nil
}

func wantStatus(statuses []Status) func(Status) bool {
	if len(statuses) == 0 {
		return func(Status) bool { return true }
	}
	set := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return func(s Status) bool {
		_, ok := set[s]
		return ok
	}
}
