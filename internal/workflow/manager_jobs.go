package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"slidenotes/internal/alignment"
	"slidenotes/internal/jobs"
	"slidenotes/internal/logging"
	"slidenotes/internal/services"
)

// SubmitRequest carries the inputs for a new job.
type SubmitRequest struct {
	Title    string
	Segments []alignment.Segment
	Slides   []alignment.Slide
}

// Submit validates and persists a new job in the created state. Input errors
// are returned before anything is stored.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*jobs.Job, error) {
	segments, err := alignment.ValidateInputs(req.Segments, req.Slides)
	if err != nil {
		return nil, err
	}
	job := &jobs.Job{
		ID:              NewJobID(m.now()),
		Title:           strings.TrimSpace(req.Title),
		Status:          jobs.StatusCreated,
		ProgressMessage: "Queued",
		CreatedAt:       m.now().UTC(),
	}
	if err := m.store.Create(ctx, job, segments, req.Slides); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	m.logger.Info("job submitted",
		logging.JobID(job.ID),
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.Int("segments", job.SegmentCount),
		logging.Int("slides", job.SlideCount),
	)
	return job.Clone(), nil
}

// Status returns the job's current state. Jobs running in this process report
// their live progress.
func (m *Manager) Status(ctx context.Context, id string) (*jobs.Job, error) {
	m.mu.RLock()
	live, ok := m.live[id]
	if ok {
		live = live.Clone()
	}
	m.mu.RUnlock()
	if ok {
		return live, nil
	}
	return m.store.Get(ctx, id)
}

// List returns jobs newest first, optionally filtered by status.
func (m *Manager) List(ctx context.Context, statuses ...jobs.Status) ([]*jobs.Job, error) {
	list, err := m.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, job := range list {
		if live, ok := m.live[job.ID]; ok {
			list[i] = live.Clone()
		}
	}
	return list, nil
}

// Result returns the job's stored document.
func (m *Manager) Result(ctx context.Context, id string) (*alignment.Result, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := m.store.LoadResult(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, services.Wrap(services.ErrNotFound, "lookup", "result",
				fmt.Sprintf("job %s has no result (status %s)", id, job.Status), nil)
		}
		return nil, err
	}
	return result, nil
}

// Inputs returns the segments and slides stored with a job.
func (m *Manager) Inputs(ctx context.Context, id string) ([]alignment.Segment, []alignment.Slide, error) {
	return m.store.Inputs(ctx, id)
}

// setLive publishes a job's in-flight state, or clears it when job is nil.
func (m *Manager) setLive(id string, job *jobs.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job == nil {
		delete(m.live, id)
		return
	}
	m.live[id] = job.Clone()
}

func (m *Manager) isLive(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.live[id]
	return ok
}
