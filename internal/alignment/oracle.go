package alignment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"slidenotes/internal/logging"
	"slidenotes/internal/services"
	"slidenotes/internal/services/llm"
)

// Oracle is the external semantic classifier. Implementations return the raw
// JSON reply for the given prompts.
type Oracle interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f OracleFunc) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// CoverageError reports a classifier reply that does not map every batch
// segment exactly once.
type CoverageError struct {
	Missing    []int
	Duplicate  []int
	Unexpected []int
}

func (e *CoverageError) Error() string {
	parts := make([]string, 0, 3)
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing segment ids %v", e.Missing))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate segment ids %v", e.Duplicate))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected segment ids %v", e.Unexpected))
	}
	return "incomplete mapping coverage: " + strings.Join(parts, "; ")
}

// Adapter turns a batch plus window into a classifier request and validates
// the reply.
type Adapter struct {
	oracle Oracle
	logger *slog.Logger
}

// NewAdapter wraps an oracle.
func NewAdapter(oracle Oracle, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Adapter{oracle: oracle, logger: logger}
}

// Classify sends one batch and returns one mapping per segment, ordered by
// segment id. Slide ids outside the window (including 0) are demoted to
// Unmapped. Transport failures, malformed replies, and coverage gaps are
// returned as services.ErrExternalTool errors.
func (a *Adapter) Classify(ctx context.Context, batch Batch, window []Slide, mode Mode) ([]Mapping, error) {
	if a == nil || a.oracle == nil {
		return nil, services.Wrap(services.ErrConfiguration, "classify", "adapter", "no classifier configured", nil)
	}
	system, user := BuildPrompts(mode, batch.Text, window)
	content, err := a.oracle.CompleteJSON(ctx, system, user)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "oracle call", "classifier request failed", err)
	}
	mappings, err := ParseMappings(content)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "parse reply", "malformed classifier reply", err)
	}
	if err := ValidateCoverage(batch.SegmentIDs, mappings); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "validate reply", "", err)
	}

	allowed := make(map[int]struct{}, len(window))
	for _, s := range window {
		allowed[s.Number] = struct{}{}
	}
	for i := range mappings {
		if mappings[i].SlideID == Unmapped {
			continue
		}
		if _, ok := allowed[mappings[i].SlideID]; !ok {
			a.logger.Debug("demoting out-of-window slide id",
				logging.Int("segment_id", mappings[i].SegmentID),
				logging.Int("slide_id", mappings[i].SlideID),
			)
			mappings[i].SlideID = Unmapped
		}
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].SegmentID < mappings[j].SegmentID })
	return mappings, nil
}

// ParseMappings decodes {"mappings":[...]} or a bare array.
func ParseMappings(content string) ([]Mapping, error) {
	sanitized := llm.SanitizeJSONPayload(content)
	if sanitized == "" {
		return nil, fmt.Errorf("empty classifier reply")
	}
	if strings.HasPrefix(sanitized, "[") {
		var list []Mapping
		if err := llm.DecodeLLMJSON(sanitized, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var wrapped struct {
		Mappings *[]Mapping `json:"mappings"`
	}
	if err := json.Unmarshal([]byte(sanitized), &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Mappings == nil {
		return nil, fmt.Errorf("reply has no mappings field")
	}
	return *wrapped.Mappings, nil
}

// ValidateCoverage checks that mappings name each expected id exactly once.
func ValidateCoverage(expected []int, mappings []Mapping) error {
	want := make(map[int]struct{}, len(expected))
	for _, id := range expected {
		want[id] = struct{}{}
	}
	seen := make(map[int]int, len(mappings))
	var covErr CoverageError
	for _, m := range mappings {
		seen[m.SegmentID]++
		if _, ok := want[m.SegmentID]; !ok && seen[m.SegmentID] == 1 {
			covErr.Unexpected = append(covErr.Unexpected, m.SegmentID)
		}
		if seen[m.SegmentID] == 2 {
			if _, ok := want[m.SegmentID]; ok {
				covErr.Duplicate = append(covErr.Duplicate, m.SegmentID)
			}
		}
	}
	for _, id := range expected {
		if seen[id] == 0 {
			covErr.Missing = append(covErr.Missing, id)
		}
	}
	if len(covErr.Missing) == 0 && len(covErr.Duplicate) == 0 && len(covErr.Unexpected) == 0 {
		return nil
	}
	sort.Ints(covErr.Missing)
	sort.Ints(covErr.Duplicate)
	sort.Ints(covErr.Unexpected)
	return &covErr
}
