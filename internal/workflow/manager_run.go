package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slidenotes/internal/jobs"
	"slidenotes/internal/logging"
	"slidenotes/internal/services"
)

const stageAligning = "aligning"

// Run aligns a job synchronously and returns its final state. The stored
// result is only replaced after every batch succeeded (or was skipped).
func (m *Manager) Run(ctx context.Context, id string) (*jobs.Job, error) {
	var out *jobs.Job
	err := m.withJobWrite(ctx, id, func() error {
		var runErr error
		out, runErr = m.runLocked(ctx, id)
		return runErr
	})
	return out, err
}

// Start runs a job in the background. Use Wait to block until background
// runs finish.
func (m *Manager) Start(ctx context.Context, id string) {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if _, err := m.Run(ctx, id); err != nil {
			m.setLastError(err)
		}
	}()
}

// Wait blocks until every run launched by Start has returned.
func (m *Manager) Wait() {
	m.bg.Wait()
}

func (m *Manager) runLocked(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = services.WithStage(services.WithJobID(ctx, id), stageAligning)
	logger := logging.WithContext(ctx, m.logger)
	defer m.setLive(id, nil)

	job.Status = jobs.StatusBatching
	job.ProgressPercent = 0
	job.ProgressMessage = "Merging segments into batches"
	job.ErrorMessage = ""
	job.ErrorKind = ""
	job.FailedBatch = 0
	job.SkippedBatches = 0
	m.persist(ctx, logger, job)

	segments, slides, err := m.store.Inputs(ctx, id)
	if err != nil {
		m.failJob(ctx, logger, job, err)
		return job.Clone(), err
	}

	started := time.Now()
	sampler := logging.NewProgressSampler(10)
	opts := m.alignOptions()
	opts.Progress = func(current, total int) {
		job.BatchCount = total
		job.ProgressPercent = float64(current) / float64(total) * 100
		job.ProgressMessage = fmt.Sprintf("Classified batch %d/%d", current, total)
		m.persist(ctx, logger, job)
		if sampler.ShouldLog(job.ProgressPercent, string(job.Status)) {
			logger.Info("alignment progress",
				logging.String(logging.FieldEventType, "job_progress"),
				logging.Int("batch", current),
				logging.Int(logging.FieldBatchCount, total),
				logging.Int("percent", int(job.ProgressPercent)),
			)
		}
	}

	job.Status = jobs.StatusClassifying
	job.ProgressMessage = "Classifying batches"
	m.persist(ctx, logger, job)

	outcome, err := m.aligner().Align(ctx, segments, slides, opts)
	if err != nil {
		m.failJob(ctx, logger, job, err)
		return job.Clone(), err
	}
	if err := m.store.SaveResult(ctx, id, outcome.Result); err != nil {
		m.failJob(ctx, logger, job, err)
		return job.Clone(), err
	}

	job.Status = jobs.StatusAssembled
	job.BatchCount = outcome.Batches
	job.SkippedBatches = len(outcome.Skipped)
	job.ProgressPercent = 100
	job.ProgressMessage = fmt.Sprintf("Aligned %d segments across %d slides", len(outcome.Mappings), len(outcome.Result.Slides))
	m.persist(ctx, logger, job)
	m.setLastJob(job)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_assembled"),
		logging.Int(logging.FieldBatchCount, outcome.Batches),
		logging.Int("slides", len(outcome.Result.Slides)),
		logging.Int("segments_stored", outcome.Result.SegmentCount()),
		logging.Int("unmapped", unmappedCount(outcome.Result)),
		logging.Duration("elapsed", time.Since(started)),
	}
	if len(outcome.Skipped) > 0 {
		attrs = append(attrs, logging.Int("skipped_batches", len(outcome.Skipped)))
		for _, skipped := range outcome.Skipped {
			logging.WarnWithContext(logger, "batch routed to slide0", "batch_skipped",
				logging.Int(logging.FieldBatchIndex, skipped.Index),
				logging.Int("window_start", skipped.WindowStart),
				logging.Int("window_end", skipped.WindowEnd),
				logging.Hint("re-run the job once the classifier is healthy"),
				logging.Error(skipped.Err),
			)
		}
	}
	logger.Info("alignment complete", logging.Args(attrs...)...)
	return job.Clone(), nil
}

// persist publishes job as live state and writes it through the store.
// Store failures are logged; the run carries on.
func (m *Manager) persist(ctx context.Context, logger *slog.Logger, job *jobs.Job) {
	m.setLive(job.ID, job)
	if err := m.store.Update(context.WithoutCancel(ctx), job); err != nil {
		logging.WarnWithContext(logger, "failed to persist job state", "job_persist_failed",
			logging.String("status", string(job.Status)),
			logging.Hint("check storage access"),
			logging.Error(err),
		)
	}
}

// StartPoller launches the background loop that runs created jobs.
func (m *Manager) StartPoller(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	if n, err := m.store.ResetStuck(ctx); err != nil {
		logging.WarnWithContext(m.logger, "failed to reset interrupted jobs", "job_reset_failed",
			logging.Hint("check storage access"),
			logging.Error(err),
		)
	} else if n > 0 {
		m.logger.Info("reset interrupted jobs",
			logging.String(logging.FieldEventType, "job_reset"),
			logging.Int("count", int(n)),
		)
	}

	go m.poll(runCtx)
	return nil
}

// Stop terminates the poller and waits for the current job to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.bg.Wait()
}

func (m *Manager) poll(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pending, err := m.store.List(ctx, jobs.StatusCreated)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logging.ErrorWithContext(m.logger, "failed to fetch created jobs", "job_fetch_failed",
				logging.Hint("check storage access"),
				logging.Error(err),
			)
			m.waitOrShutdown(ctx)
			continue
		}
		if len(pending) == 0 {
			m.waitOrShutdown(ctx)
			continue
		}

		// List is newest first; run the oldest job first.
		next := pending[len(pending)-1]
		if m.isLive(next.ID) {
			m.waitOrShutdown(ctx)
			continue
		}
		if _, err := m.Run(ctx, next.ID); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.waitOrShutdown(ctx)
		}
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
