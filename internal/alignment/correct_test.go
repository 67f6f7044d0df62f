package alignment_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"slidenotes/internal/alignment"
	"slidenotes/internal/services"
)

// wordSplitter yields one fragment per word, numbered from 1.
var wordSplitter = alignment.SplitterFunc(func(text string) []alignment.Segment {
	var out []alignment.Segment
	for i, w := range strings.Fields(text) {
		out = append(out, alignment.Segment{ID: i + 1, Text: w})
	}
	return out
})

func resultOf(t *testing.T, texts map[int]string) *alignment.Result {
	t.Helper()
	result := alignment.NewResult()
	id := 1
	for slide, text := range texts {
		result.Slides[slide] = &alignment.SlideEntry{Segments: map[int]*alignment.SegmentEntry{
			id * 10: {Text: text},
		}}
		id++
	}
	return result
}

func slideText(t *testing.T, result *alignment.Result, n int) string {
	t.Helper()
	entry, ok := result.Slide(n)
	if !ok {
		t.Fatalf("slide %d missing", n)
	}
	return entry.Text()
}

func TestMoveSegmentDirectionalSplice(t *testing.T) {
	// Moving from a later slide appends.
	later := resultOf(t, map[int]string{1: "x y", 2: "z"})
	out, err := alignment.MoveSegment(later, 2, 1, "z")
	if err != nil {
		t.Fatalf("MoveSegment returned error: %v", err)
	}
	if got := slideText(t, out, 1); got != "x y z" {
		t.Fatalf("slide 1 = %q, want %q", got, "x y z")
	}
	if got := slideText(t, out, 2); got != "" {
		t.Fatalf("slide 2 = %q, want empty", got)
	}

	// Moving from an earlier slide prepends.
	earlier := resultOf(t, map[int]string{2: "x y", 1: "z"})
	out, err = alignment.MoveSegment(earlier, 1, 2, "z")
	if err != nil {
		t.Fatalf("MoveSegment returned error: %v", err)
	}
	if got := slideText(t, out, 2); got != "z x y" {
		t.Fatalf("slide 2 = %q, want %q", got, "z x y")
	}
}

func TestMoveSegmentDeletesOneOccurrence(t *testing.T) {
	result := resultOf(t, map[int]string{3: "alpha  beta gamma beta   delta"})
	out, err := alignment.MoveSegment(result, 3, 0, "beta")
	if err != nil {
		t.Fatalf("MoveSegment returned error: %v", err)
	}
	if got := slideText(t, out, 3); got != "alpha gamma beta delta" {
		t.Fatalf("slide 3 = %q", got)
	}
	if _, ok := out.Slide(0); ok {
		t.Fatal("deletion should not create slide0")
	}
	if got := slideText(t, result, 3); got != "alpha  beta gamma beta   delta" {
		t.Fatalf("input result was modified: %q", got)
	}
}

func TestMoveSegmentMatchesNormalizedText(t *testing.T) {
	decomposed := "cafe\u0301 au lait"
	result := resultOf(t, map[int]string{1: decomposed})
	out, err := alignment.MoveSegment(result, 1, 2, "caf\u00e9")
	if err != nil {
		t.Fatalf("MoveSegment returned error: %v", err)
	}
	if got := slideText(t, out, 2); got != "caf\u00e9" {
		t.Fatalf("slide 2 = %q", got)
	}
}

func TestMoveSegmentCreatesTargetWithSummaryFields(t *testing.T) {
	result := resultOf(t, map[int]string{1: "keep move"})
	out, err := alignment.MoveSegment(result, 1, 5, "move")
	if err != nil {
		t.Fatalf("MoveSegment returned error: %v", err)
	}
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `"slide5":{"Concise Summary Notes":"","Bullet Point Notes":"","Keyword Notes":"","Segments":{"segment5":{"text":"move","isImportant":"false"`
	if !strings.Contains(string(data), want) {
		t.Fatalf("new slide entry not initialised as expected:\n%s", data)
	}
}

func TestMoveSegmentErrors(t *testing.T) {
	result := resultOf(t, map[int]string{1: "one two"})
	cases := []struct {
		name          string
		start, target int
		text          string
		want          error
	}{
		{"not found", 1, 2, "three", services.ErrNotFound},
		{"empty source", 4, 2, "one", services.ErrNotFound},
		{"same slide", 1, 1, "one", services.ErrValidation},
		{"empty text", 1, 2, "  ", services.ErrValidation},
		{"negative", -1, 2, "one", services.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := alignment.MoveSegment(result, tc.start, tc.target, tc.text); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPostProcessGroupsFragmentsPerTarget(t *testing.T) {
	result := resultOf(t, map[int]string{
		1: "before",
		2: "a b c d",
		3: "after",
	})
	// a -> 1, b stays, c -> 3, d -> 3
	oracle := newScriptedOracle(map[int]int{1: 1, 2: 2, 3: 3, 4: 3})
	corrector := alignment.NewCorrector(alignment.NewAdapter(oracle, nil), wordSplitter, 1, nil)

	out, err := corrector.PostProcess(context.Background(), result, contentSlides(1, 2, 3, 4, 5), 2)
	if err != nil {
		t.Fatalf("PostProcess returned error: %v", err)
	}
	if got := slideText(t, out, 1); got != "before a" {
		t.Fatalf("slide 1 = %q", got)
	}
	if got := slideText(t, out, 2); got != "b" {
		t.Fatalf("slide 2 = %q", got)
	}
	if got := slideText(t, out, 3); got != "c d after" {
		t.Fatalf("slide 3 = %q", got)
	}
	if oracle.calls != 1 {
		t.Fatalf("expected one classifier call, got %d", oracle.calls)
	}
	if got := oracle.windows[0]; len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("expected window 1..3, got %v", got)
	}
	if !strings.Contains(oracle.prompts[0], "Map every segment to one of the slides") {
		t.Fatalf("post-process should use the centre prompt:\n%s", oracle.prompts[0])
	}
	if got := slideText(t, result, 2); got != "a b c d" {
		t.Fatalf("input result was modified: %q", got)
	}
}

func TestPostProcessKeepsUnmappedFragments(t *testing.T) {
	result := resultOf(t, map[int]string{4: "p q"})
	oracle := newScriptedOracle(map[int]int{1: alignment.Unmapped, 2: 5})
	corrector := alignment.NewCorrector(alignment.NewAdapter(oracle, nil), wordSplitter, 1, nil)
	out, err := corrector.PostProcess(context.Background(), result, contentSlides(3, 4, 5), 4)
	if err != nil {
		t.Fatalf("PostProcess returned error: %v", err)
	}
	if got := slideText(t, out, 4); got != "p" {
		t.Fatalf("slide 4 = %q", got)
	}
	if got := slideText(t, out, 5); got != "q" {
		t.Fatalf("slide 5 = %q", got)
	}
}

func TestPostProcessErrors(t *testing.T) {
	result := resultOf(t, map[int]string{2: "text"})
	oracle := newScriptedOracle(nil)
	corrector := alignment.NewCorrector(alignment.NewAdapter(oracle, nil), wordSplitter, 1, nil)

	if _, err := corrector.PostProcess(context.Background(), result, contentSlides(1, 2), 7); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for empty slide, got %v", err)
	}
	if _, err := corrector.PostProcess(context.Background(), result, contentSlides(1, 2), 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for slide 0, got %v", err)
	}

	oracle.fail[1] = errors.New("upstream 500")
	if _, err := corrector.PostProcess(context.Background(), result, contentSlides(1, 2), 2); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected oracle failure, got %v", err)
	}
	if oracle.calls != 1 {
		t.Fatalf("expected a single classifier call, got %d", oracle.calls)
	}
}
