package alignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"slidenotes/internal/logging"
	"slidenotes/internal/services"
)

// FailurePolicy decides what happens when a batch cannot be classified.
type FailurePolicy string

const (
	// FailAbort stops the run on the first failed batch.
	FailAbort FailurePolicy = "abort"
	// FailSkip routes the failed batch's segments to slide0 and continues.
	FailSkip FailurePolicy = "skip"
)

// Options controls one alignment run.
type Options struct {
	SlideWindow   int
	MaxBatchChars int
	MinBatchChars int
	OnFailure     FailurePolicy
	// Progress is called after each batch with (completed, total).
	Progress func(current, total int)
}

// BatchError describes a failed batch with enough context to replay it.
type BatchError struct {
	JobID       string
	Index       int
	Total       int
	Centre      int
	WindowStart int
	WindowEnd   int
	SegmentIDs  []int
	Err         error
}

func (e *BatchError) Error() string {
	job := ""
	if e.JobID != "" {
		job = "job " + e.JobID + ": "
	}
	return fmt.Sprintf("%sbatch %d/%d (slides %d-%d, segments %s) failed: %v",
		job, e.Index, e.Total, e.WindowStart, e.WindowEnd, idRange(e.SegmentIDs), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

func idRange(ids []int) string {
	switch len(ids) {
	case 0:
		return "none"
	case 1:
		return fmt.Sprintf("%d", ids[0])
	default:
		return fmt.Sprintf("%d-%d", ids[0], ids[len(ids)-1])
	}
}

// Outcome is the product of a completed run.
type Outcome struct {
	Result   *Result
	Mappings []Mapping
	Batches  int
	// Skipped lists batches routed to slide0 under FailSkip.
	Skipped []*BatchError
}

// Aligner runs the batch, window, classify, and advance loop.
type Aligner struct {
	adapter *Adapter
	logger  *slog.Logger
}

// NewAligner builds an Aligner over the given adapter.
func NewAligner(adapter *Adapter, logger *slog.Logger) *Aligner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aligner{adapter: adapter, logger: logger}
}

// ValidateInputs checks segment and slide data and returns segments sorted by id.
func ValidateInputs(segments []Segment, slides []Slide) ([]Segment, error) {
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "batching", "validate input", "no segments supplied", nil)
	}
	if len(slides) == 0 {
		return nil, services.Wrap(services.ErrValidation, "batching", "validate input", "no slides supplied", nil)
	}
	sorted := append([]Segment(nil), segments...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i, seg := range sorted {
		if i > 0 && sorted[i-1].ID == seg.ID {
			return nil, services.Wrap(services.ErrValidation, "batching", "validate input",
				fmt.Sprintf("duplicate segment id %d", seg.ID), nil)
		}
		if strings.TrimSpace(seg.Text) == "" {
			return nil, services.Wrap(services.ErrValidation, "batching", "validate input",
				fmt.Sprintf("segment %d has empty text", seg.ID), nil)
		}
	}
	numbers := make(map[int]struct{}, len(slides))
	for _, s := range slides {
		if s.Number < 1 {
			return nil, services.Wrap(services.ErrValidation, "batching", "validate input",
				fmt.Sprintf("slide number must be positive, got %d", s.Number), nil)
		}
		if _, dup := numbers[s.Number]; dup {
			return nil, services.Wrap(services.ErrValidation, "batching", "validate input",
				fmt.Sprintf("duplicate slide number %d", s.Number), nil)
		}
		numbers[s.Number] = struct{}{}
	}
	return sorted, nil
}

// Align maps every segment to a slide. Batches run strictly in order because
// each window depends on the previous batch's outcome. Input errors fail
// before any classifier call.
func (a *Aligner) Align(ctx context.Context, segments []Segment, slides []Slide, opts Options) (*Outcome, error) {
	sorted, err := ValidateInputs(segments, slides)
	if err != nil {
		return nil, err
	}
	if opts.MaxBatchChars <= 0 {
		return nil, services.Wrap(services.ErrValidation, "batching", "validate options", "max batch size must be positive", nil)
	}
	if opts.SlideWindow < 0 {
		return nil, services.Wrap(services.ErrValidation, "batching", "validate options",
			fmt.Sprintf("slide window must not be negative, got %d", opts.SlideWindow), nil)
	}
	policy := opts.OnFailure
	if policy == "" {
		policy = FailAbort
	}

	candidates := CandidateSlides(slides)
	batches := MergeSegments(sorted, opts.MaxBatchChars, opts.MinBatchChars)
	centre := InitialCentre(candidates)
	jobID, _ := services.JobIDFromContext(ctx)
	logger := logging.WithContext(ctx, a.logger)
	logger.Info("alignment started",
		logging.String(logging.FieldEventType, "alignment_started"),
		logging.Int("segments", len(sorted)),
		logging.Int("candidate_slides", len(candidates)),
		logging.Int(logging.FieldBatchCount, len(batches)),
	)

	outcome := &Outcome{Batches: len(batches)}
	all := make([]Mapping, 0, len(sorted))
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		window := SelectWindow(candidates, centre, opts.SlideWindow)
		start, end := WindowBounds(centre, opts.SlideWindow)
		batchCtx := services.WithBatchIndex(ctx, batch.Index)
		batchLogger := logging.WithContext(batchCtx, a.logger)

		var mappings []Mapping
		if len(window) == 0 {
			mappings = unmappedBatch(batch)
		} else {
			mappings, err = a.adapter.Classify(batchCtx, batch, window, ModeWindow)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			batchErr := &BatchError{
				JobID:       jobID,
				Index:       batch.Index,
				Total:       len(batches),
				Centre:      centre,
				WindowStart: start,
				WindowEnd:   end,
				SegmentIDs:  append([]int(nil), batch.SegmentIDs...),
				Err:         err,
			}
			logging.WarnWithContext(batchLogger, "batch classification failed", "batch_failed",
				logging.Int("window_start", start),
				logging.Int("window_end", end),
				logging.String("policy", string(policy)),
				logging.String(logging.FieldErrorKind, string(services.Classify(err))),
				logging.Hint("check classifier health, then re-run the job"),
				logging.Error(err),
			)
			if policy != FailSkip {
				return nil, batchErr
			}
			outcome.Skipped = append(outcome.Skipped, batchErr)
			mappings = unmappedBatch(batch)
			err = nil
		}

		mapped := 0
		for _, m := range mappings {
			if m.Valid() {
				mapped++
			}
		}
		batchLogger.Info("batch classified",
			logging.String(logging.FieldEventType, "batch_classified"),
			logging.Int(logging.FieldBatchCount, len(batches)),
			logging.Int("window_start", start),
			logging.Int("window_end", end),
			logging.Int("batch_chars", batch.Len()),
			logging.Int("mapped", mapped),
			logging.Int("unmapped", len(mappings)-mapped),
		)

		all = append(all, mappings...)
		centre = AdvanceCentre(centre, mappings)
		if opts.Progress != nil {
			opts.Progress(batch.Index, len(batches))
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].SegmentID < all[j].SegmentID })
	result, err := Assemble(all, sorted)
	if err != nil {
		return nil, err
	}
	outcome.Result = result
	outcome.Mappings = all
	return outcome, nil
}

func unmappedBatch(batch Batch) []Mapping {
	out := make([]Mapping, 0, len(batch.SegmentIDs))
	for _, id := range batch.SegmentIDs {
		out = append(out, Mapping{SegmentID: id, SlideID: Unmapped})
	}
	return out
}
