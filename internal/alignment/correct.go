package alignment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"slidenotes/internal/logging"
	"slidenotes/internal/services"
)

// Splitter re-splits a slide's aggregate text into fresh segments.
type Splitter interface {
	Split(text string) []Segment
}

// SplitterFunc adapts a function to the Splitter interface.
type SplitterFunc func(text string) []Segment

func (f SplitterFunc) Split(text string) []Segment { return f(text) }

// Corrector applies post-process and move-segment corrections. Both return a
// new Result and never modify their input.
type Corrector struct {
	adapter  *Adapter
	splitter Splitter
	radius   int
	logger   *slog.Logger
}

// NewCorrector builds a Corrector. radius is the post-process window radius.
func NewCorrector(adapter *Adapter, splitter Splitter, radius int, logger *slog.Logger) *Corrector {
	if radius <= 0 {
		radius = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Corrector{adapter: adapter, splitter: splitter, radius: radius, logger: logger}
}

// PostProcess re-classifies slideNum's aggregate text against the slides
// within radius of it. Fragments that stay are joined back as the slide's
// text; fragments for other slides are grouped per target and spliced
// directionally.
func (c *Corrector) PostProcess(ctx context.Context, result *Result, slides []Slide, slideNum int) (*Result, error) {
	if c.splitter == nil {
		return nil, services.Wrap(services.ErrConfiguration, "correcting", "post-process", "no splitter configured", nil)
	}
	if slideNum < 1 {
		return nil, services.Wrap(services.ErrValidation, "correcting", "post-process",
			fmt.Sprintf("slide number must be positive, got %d", slideNum), nil)
	}
	entry, ok := result.Slide(slideNum)
	if !ok || len(entry.Segments) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "correcting", "post-process",
			fmt.Sprintf("slide %d has no segments", slideNum), nil)
	}
	text := entry.Text()
	fragments := c.splitter.Split(text)
	if len(fragments) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "correcting", "post-process",
			fmt.Sprintf("slide %d has no text to re-classify", slideNum), nil)
	}

	window := SelectWindow(CandidateSlides(slides), slideNum, c.radius)
	if len(window) == 0 {
		return nil, services.Wrap(services.ErrValidation, "correcting", "post-process",
			fmt.Sprintf("no candidate slides around slide %d", slideNum), nil)
	}

	var block strings.Builder
	ids := make([]int, 0, len(fragments))
	byID := make(map[int]string, len(fragments))
	for _, frag := range fragments {
		block.WriteString(RenderSnippet(frag))
		ids = append(ids, frag.ID)
		byID[frag.ID] = frag.Text
	}
	batch := Batch{Index: 1, Text: block.String(), SegmentIDs: ids}

	mappings, err := c.adapter.Classify(services.WithBatchIndex(ctx, 1), batch, window, ModeCentre)
	if err != nil {
		return nil, err
	}

	var remain []string
	moved := make(map[int][]string)
	for _, m := range mappings {
		if !m.Valid() || m.SlideID == slideNum {
			remain = append(remain, byID[m.SegmentID])
			continue
		}
		moved[m.SlideID] = append(moved[m.SlideID], byID[m.SegmentID])
	}

	out := result.Clone()
	out.consolidate(slideNum, joinText(remain...))
	targets := make([]int, 0, len(moved))
	for t := range moved {
		targets = append(targets, t)
	}
	sort.Ints(targets)
	for _, t := range targets {
		out.splice(t, slideNum, joinText(moved[t]...))
	}

	logging.WithContext(ctx, c.logger).Info("post-process applied",
		logging.String(logging.FieldEventType, "post_process_applied"),
		logging.Int("slide", slideNum),
		logging.Int("fragments", len(fragments)),
		logging.Int("remained", len(remain)),
		logging.Int("targets", len(targets)),
	)
	return out, nil
}

// MoveSegment removes the first literal occurrence of text from start's
// aggregate text and splices it into target, or discards it when target is 0.
// Both the stored text and the needle are NFC-normalized before matching.
func (c *Corrector) MoveSegment(result *Result, start, target int, text string) (*Result, error) {
	return MoveSegment(result, start, target, text)
}

// MoveSegment is the stateless form of Corrector.MoveSegment.
func MoveSegment(result *Result, start, target int, text string) (*Result, error) {
	if start < 0 || target < 0 {
		return nil, services.Wrap(services.ErrValidation, "correcting", "move-segment",
			fmt.Sprintf("slide numbers must not be negative (from %d, to %d)", start, target), nil)
	}
	if start == target {
		return nil, services.Wrap(services.ErrValidation, "correcting", "move-segment",
			fmt.Sprintf("source and target are both slide %d", start), nil)
	}
	needle := norm.NFC.String(strings.TrimSpace(text))
	if needle == "" {
		return nil, services.Wrap(services.ErrValidation, "correcting", "move-segment", "text to move is empty", nil)
	}
	entry, ok := result.Slide(start)
	if !ok || len(entry.Segments) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "correcting", "move-segment",
			fmt.Sprintf("slide %d has no segments", start), nil)
	}
	source := norm.NFC.String(entry.Text())
	idx := strings.Index(source, needle)
	if idx < 0 {
		return nil, services.Wrap(services.ErrNotFound, "correcting", "move-segment",
			fmt.Sprintf("text not found in slide %d", start), nil)
	}
	remaining := strings.Join(strings.Fields(source[:idx]+source[idx+len(needle):]), " ")

	out := result.Clone()
	out.consolidate(start, remaining)
	if target != 0 {
		out.splice(target, start, needle)
	}
	return out, nil
}

// consolidate rewrites slide n as a single aggregate segment holding text.
// The aggregate key keeps its annotation fields; other segments are dropped.
func (r *Result) consolidate(n int, text string) {
	entry := r.ensureSlide(n)
	key, ok := entry.AggregateKey()
	if !ok {
		key = n
		entry.Segments[key] = newSegmentEntry()
	}
	keep := entry.Segments[key]
	keep.Text = text
	entry.Segments = map[int]*SegmentEntry{key: keep}
}

// splice adds moved text to target. Text from a later slide goes before the
// target's text, text from an earlier slide goes after it.
func (r *Result) splice(target, origin int, moved string) {
	existing := ""
	if entry, ok := r.Slide(target); ok {
		existing = entry.Text()
	}
	if target < origin {
		r.consolidate(target, joinText(existing, moved))
		return
	}
	r.consolidate(target, joinText(moved, existing))
}

func (r *Result) ensureSlide(n int) *SlideEntry {
	if r.Slides == nil {
		r.Slides = make(map[int]*SlideEntry)
	}
	if entry, ok := r.Slides[n]; ok && entry != nil {
		if entry.Segments == nil {
			entry.Segments = make(map[int]*SegmentEntry)
		}
		return entry
	}
	entry := &SlideEntry{
		Segments: make(map[int]*SegmentEntry),
		Extra:    make(map[string]json.RawMessage, 3),
	}
	for _, field := range SummaryFields[:3] {
		entry.Extra[field] = json.RawMessage(`""`)
	}
	r.Slides[n] = entry
	return entry
}

func newSegmentEntry() *SegmentEntry {
	return &SegmentEntry{Extra: map[string]json.RawMessage{
		"isImportant":   json.RawMessage(`"false"`),
		"reason":        json.RawMessage(`""`),
		"linkedConcept": json.RawMessage(`""`),
		"pageNumber":    json.RawMessage(`""`),
	}}
}
