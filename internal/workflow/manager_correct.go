package workflow

import (
	"context"
	"fmt"

	"slidenotes/internal/alignment"
	"slidenotes/internal/jobs"
	"slidenotes/internal/logging"
	"slidenotes/internal/services"
)

const stageCorrecting = "correcting"

type correction func(ctx context.Context, result *alignment.Result, slides []alignment.Slide) (*alignment.Result, error)

// PostProcess re-classifies one slide's text against its neighbours and
// stores the corrected document.
func (m *Manager) PostProcess(ctx context.Context, id string, slide int) (*alignment.Result, error) {
	return m.correct(ctx, id, "post-process", func(ctx context.Context, result *alignment.Result, slides []alignment.Slide) (*alignment.Result, error) {
		return m.corrector().PostProcess(ctx, result, slides, slide)
	}, logging.Int("slide", slide))
}

// MoveSegment relocates literal text between slides (target 0 deletes it)
// and stores the corrected document.
func (m *Manager) MoveSegment(ctx context.Context, id string, from, to int, text string) (*alignment.Result, error) {
	return m.correct(ctx, id, "move-segment", func(_ context.Context, result *alignment.Result, _ []alignment.Slide) (*alignment.Result, error) {
		return m.corrector().MoveSegment(result, from, to, text)
	}, logging.Int("from_slide", from), logging.Int("to_slide", to))
}

// correct applies fn to a copy of the stored document and saves it only on
// success. A failed correction leaves the stored document untouched.
func (m *Manager) correct(ctx context.Context, id, op string, fn correction, attrs ...logging.Attr) (*alignment.Result, error) {
	var out *alignment.Result
	err := m.withJobWrite(ctx, id, func() error {
		job, err := m.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !job.Status.HasResult() {
			return services.Wrap(services.ErrValidation, stageCorrecting, op,
				fmt.Sprintf("job %s has no assembled result (status %s)", id, job.Status), nil)
		}
		result, err := m.store.LoadResult(ctx, id)
		if err != nil {
			return err
		}
		_, slides, err := m.store.Inputs(ctx, id)
		if err != nil {
			return err
		}

		ctx := services.WithStage(services.WithJobID(ctx, id), stageCorrecting)
		logger := logging.WithContext(ctx, m.logger)
		defer m.setLive(id, nil)

		job.Status = jobs.StatusCorrecting
		job.ProgressMessage = "Applying " + op
		m.persist(ctx, logger, job)

		corrected, err := fn(ctx, result, slides)
		if err == nil {
			err = m.store.SaveResult(ctx, id, corrected)
		}
		job.Status = jobs.StatusAssembled
		if err != nil {
			job.ProgressMessage = fmt.Sprintf("%s rejected", op)
			m.persist(ctx, logger, job)
			kind := services.Classify(err)
			logging.WarnWithContext(logger, "correction rejected", "correction_failed",
				append(attrs,
					logging.String("operation", op),
					logging.String(logging.FieldErrorKind, string(kind)),
					logging.Hint(failureHint(kind)),
					logging.Error(err),
				)...,
			)
			return err
		}
		job.ProgressMessage = "Applied " + op
		m.persist(ctx, logger, job)
		m.setLastJob(job)
		logger.Info("correction applied", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "correction_applied"),
			logging.String("operation", op),
		)...)...)
		out = corrected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
