package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an alignment job.
type Status string

const (
	StatusCreated     Status = "created"
	StatusBatching    Status = "batching"
	StatusClassifying Status = "classifying"
	StatusAssembled   Status = "assembled"
	StatusCorrecting  Status = "correcting"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusCreated,
	StatusBatching,
	StatusClassifying,
	StatusAssembled,
	StatusCorrecting,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusBatching:    {},
	StatusClassifying: {},
	StatusCorrecting:  {},
}

// stuckRollback maps an in-flight status to the status a job resumes from
// after the runner died mid-flight.
var stuckRollback = map[Status]Status{
	StatusBatching:    StatusCreated,
	StatusClassifying: StatusCreated,
	StatusCorrecting:  StatusAssembled,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus attempts to map a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsProcessing reports whether the status marks work in flight.
func (s Status) IsProcessing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// HasResult reports whether a job in this status has an assembled document.
func (s Status) HasResult() bool {
	return s == StatusAssembled || s == StatusCorrecting
}

// Job is the persisted state of one alignment run and its corrections.
type Job struct {
	ID              string    `json:"id"`
	Title           string    `json:"title,omitempty"`
	Status          Status    `json:"status"`
	ProgressPercent float64   `json:"progress_percent"`
	ProgressMessage string    `json:"progress_message,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	ErrorKind       string    `json:"error_kind,omitempty"`
	SegmentCount    int       `json:"segment_count"`
	SlideCount      int       `json:"slide_count"`
	BatchCount      int       `json:"batch_count"`
	SkippedBatches  int       `json:"skipped_batches"`
	FailedBatch     int       `json:"failed_batch,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Clone returns a copy safe to hand to callers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	return &out
}
