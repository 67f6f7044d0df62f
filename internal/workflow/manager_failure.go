package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"slidenotes/internal/alignment"
	"slidenotes/internal/jobs"
	"slidenotes/internal/logging"
	"slidenotes/internal/services"
)

// failJob records a failed run. A cancelled run goes back to created so the
// poller picks it up again.
func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, job *jobs.Job, runErr error) {
	if errors.Is(runErr, context.Canceled) {
		job.Status = jobs.StatusCreated
		job.ProgressPercent = 0
		job.ProgressMessage = "Interrupted; will resume"
		m.persist(ctx, logger, job)
		logger.Info("alignment interrupted", logging.String(logging.FieldEventType, "job_interrupted"))
		return
	}

	kind := services.Classify(runErr)
	job.Status = jobs.StatusFailed
	job.ErrorKind = string(kind)
	job.ErrorMessage = strings.TrimSpace(runErr.Error())
	job.ProgressMessage = "Failed"

	attrs := []logging.Attr{
		logging.String(logging.FieldErrorKind, string(kind)),
		logging.Hint(failureHint(kind)),
		logging.Error(runErr),
	}
	var batchErr *alignment.BatchError
	if errors.As(runErr, &batchErr) {
		job.FailedBatch = batchErr.Index
		job.BatchCount = batchErr.Total
		attrs = append(attrs, logging.Batch(batchErr.Index, batchErr.Total)...)
		attrs = append(attrs,
			logging.Int("window_start", batchErr.WindowStart),
			logging.Int("window_end", batchErr.WindowEnd),
		)
	}
	logging.ErrorWithContext(logger, "alignment failed", "job_failed", attrs...)

	m.persist(ctx, logger, job)
	m.setLastError(runErr)
	m.setLastJob(job)
}

func failureHint(kind services.ErrorKind) string {
	switch kind {
	case services.KindInput:
		return "fix the segment or slide input and submit a new job"
	case services.KindOracle:
		return "check the classifier with 'slidenotes llm health', then re-run the job"
	case services.KindConfiguration:
		return "check the [llm] and [alignment] sections of the config"
	case services.KindLookup:
		return "verify the job id with 'slidenotes jobs'"
	default:
		return "check storage access and re-run the job"
	}
}

func unmappedCount(result *alignment.Result) int {
	if result == nil {
		return 0
	}
	entry, ok := result.Slide(0)
	if !ok {
		return 0
	}
	return len(entry.Segments)
}
