package alignment_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"unicode/utf8"

	"slidenotes/internal/alignment"
	"slidenotes/internal/services"
)

func TestAlignEndToEnd(t *testing.T) {
	segments := []alignment.Segment{{ID: 1, Text: "A"}, {ID: 2, Text: "B"}, {ID: 3, Text: "C"}}
	slides := []alignment.Slide{
		{Number: 1, Type: alignment.SlideContent, TitleKeywords: []string{"x"}},
		{Number: 2, Type: alignment.SlideContent, TitleKeywords: []string{"y"}},
	}
	oracle := newScriptedOracle(map[int]int{1: 1, 2: 2, 3: alignment.Unmapped})
	aligner := alignment.NewAligner(alignment.NewAdapter(oracle, nil), nil)

	outcome, err := aligner.Align(context.Background(), segments, slides, alignment.Options{
		SlideWindow:   6,
		MaxBatchChars: 1000,
	})
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if outcome.Batches != 1 || oracle.calls != 1 {
		t.Fatalf("expected one batch and one call, got %d batches and %d calls", outcome.Batches, oracle.calls)
	}
	data, err := json.Marshal(outcome.Result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"slide0":{"Segments":{"segment3":{"text":"C"}}},"slide1":{"Segments":{"segment1":{"text":"A"}}},"slide2":{"Segments":{"segment2":{"text":"B"}}}}`
	if string(data) != want {
		t.Fatalf("unexpected result:\n got %s\nwant %s", data, want)
	}
}

func oneSegmentPerBatch(segments []alignment.Segment) int {
	return utf8.RuneCountInString(alignment.RenderSnippet(segments[0]))
}

func TestAlignAdvancesCentre(t *testing.T) {
	segments := []alignment.Segment{{ID: 1, Text: "s1"}, {ID: 2, Text: "s2"}, {ID: 3, Text: "s3"}, {ID: 4, Text: "s4"}}
	slides := append([]alignment.Slide{{Number: 1, Type: alignment.SlideMeta}}, contentSlides(2, 3, 4, 5, 6, 7, 8)...)
	oracle := newScriptedOracle(map[int]int{1: 3, 2: alignment.Unmapped, 3: 4, 4: 5})
	aligner := alignment.NewAligner(alignment.NewAdapter(oracle, nil), nil)

	var progress [][2]int
	outcome, err := aligner.Align(context.Background(), segments, slides, alignment.Options{
		SlideWindow:   2,
		MaxBatchChars: oneSegmentPerBatch(segments),
		Progress:      func(cur, total int) { progress = append(progress, [2]int{cur, total}) },
	})
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if outcome.Batches != 4 {
		t.Fatalf("expected 4 batches, got %d", outcome.Batches)
	}
	// Centre starts at the first candidate (2), then follows max(valid)-1.
	wantWindows := [][]int{
		{2, 3, 4},    // centre 2
		{2, 3, 4},    // centre 2 after slide 3
		{2, 3, 4},    // unchanged after an unmapped batch
		{2, 3, 4, 5}, // centre 3 after slide 4
	}
	if !reflect.DeepEqual(oracle.windows, wantWindows) {
		t.Fatalf("windows = %v, want %v", oracle.windows, wantWindows)
	}
	for _, w := range oracle.windows {
		for _, n := range w {
			if n == 1 {
				t.Fatal("meta slide exposed to the classifier")
			}
		}
	}
	wantProgress := [][2]int{{1, 4}, {2, 4}, {3, 4}, {4, 4}}
	if !reflect.DeepEqual(progress, wantProgress) {
		t.Fatalf("progress = %v, want %v", progress, wantProgress)
	}
	wantMappings := []alignment.Mapping{mp(1, 3), mp(2, -1), mp(3, 4), mp(4, 5)}
	if !reflect.DeepEqual(outcome.Mappings, wantMappings) {
		t.Fatalf("mappings = %v, want %v", outcome.Mappings, wantMappings)
	}
}

func TestAlignAbortReportsBatchContext(t *testing.T) {
	segments := []alignment.Segment{{ID: 1, Text: "s1"}, {ID: 2, Text: "s2"}, {ID: 3, Text: "s3"}}
	oracle := newScriptedOracle(map[int]int{1: 1, 2: 1, 3: 1})
	oracle.fail[2] = errors.New("upstream 502")
	aligner := alignment.NewAligner(alignment.NewAdapter(oracle, nil), nil)

	ctx := services.WithJobID(context.Background(), "job-7")
	_, err := aligner.Align(ctx, segments, contentSlides(1, 2, 3), alignment.Options{
		SlideWindow:   1,
		MaxBatchChars: oneSegmentPerBatch(segments),
	})
	var batchErr *alignment.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if batchErr.JobID != "job-7" || batchErr.Index != 2 || batchErr.Total != 3 {
		t.Fatalf("unexpected batch error context: %+v", batchErr)
	}
	if batchErr.WindowStart != 1 || batchErr.WindowEnd != 1 {
		t.Fatalf("unexpected window %d-%d", batchErr.WindowStart, batchErr.WindowEnd)
	}
	if !reflect.DeepEqual(batchErr.SegmentIDs, []int{2}) {
		t.Fatalf("unexpected segment ids %v", batchErr.SegmentIDs)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected oracle error kind, got %v", err)
	}
	if oracle.calls != 2 {
		t.Fatalf("expected the run to stop after the failed batch, got %d calls", oracle.calls)
	}
}

func TestAlignSkipRoutesFailedBatchToSlideZero(t *testing.T) {
	segments := []alignment.Segment{{ID: 1, Text: "s1"}, {ID: 2, Text: "s2"}, {ID: 3, Text: "s3"}}
	oracle := newScriptedOracle(map[int]int{1: 1, 2: 2, 3: 2})
	oracle.fail[2] = errors.New("timeout")
	aligner := alignment.NewAligner(alignment.NewAdapter(oracle, nil), nil)

	outcome, err := aligner.Align(context.Background(), segments, contentSlides(1, 2), alignment.Options{
		SlideWindow:   3,
		MaxBatchChars: oneSegmentPerBatch(segments),
		OnFailure:     alignment.FailSkip,
	})
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if len(outcome.Skipped) != 1 || outcome.Skipped[0].Index != 2 {
		t.Fatalf("unexpected skipped batches %+v", outcome.Skipped)
	}
	slide0, ok := outcome.Result.Slide(0)
	if !ok || !reflect.DeepEqual(slide0.SegmentIDs(), []int{2}) {
		t.Fatalf("expected segment 2 in slide0, got %+v", slide0)
	}
	if oracle.calls != 3 {
		t.Fatalf("expected all batches attempted, got %d calls", oracle.calls)
	}
}

func TestAlignAllMetaDeckSkipsClassifier(t *testing.T) {
	oracle := newScriptedOracle(nil)
	aligner := alignment.NewAligner(alignment.NewAdapter(oracle, nil), nil)
	slides := []alignment.Slide{{Number: 1, Type: alignment.SlideMeta}, {Number: 2, Type: alignment.SlideMeta}}
	outcome, err := aligner.Align(context.Background(), makeSegments(3, "t"), slides, alignment.Options{SlideWindow: 6, MaxBatchChars: 1000})
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	if oracle.calls != 0 {
		t.Fatalf("classifier should not be called without candidates, got %d calls", oracle.calls)
	}
	if slide0, ok := outcome.Result.Slide(0); !ok || len(slide0.Segments) != 3 {
		t.Fatalf("expected every segment in slide0, got %+v", outcome.Result.Slides)
	}
}

func TestAlignRejectsBadInput(t *testing.T) {
	good := contentSlides(1)
	cases := []struct {
		name     string
		segments []alignment.Segment
		slides   []alignment.Slide
		opts     alignment.Options
	}{
		{"no segments", nil, good, alignment.Options{MaxBatchChars: 100}},
		{"no slides", makeSegments(1, "a"), nil, alignment.Options{MaxBatchChars: 100}},
		{"duplicate segment", []alignment.Segment{{ID: 1, Text: "a"}, {ID: 1, Text: "b"}}, good, alignment.Options{MaxBatchChars: 100}},
		{"empty text", []alignment.Segment{{ID: 1, Text: "  "}}, good, alignment.Options{MaxBatchChars: 100}},
		{"slide zero", makeSegments(1, "a"), []alignment.Slide{{Number: 0}}, alignment.Options{MaxBatchChars: 100}},
		{"duplicate slide", makeSegments(1, "a"), contentSlides(2, 2), alignment.Options{MaxBatchChars: 100}},
		{"zero batch size", makeSegments(1, "a"), good, alignment.Options{}},
		{"negative window", makeSegments(1, "a"), good, alignment.Options{MaxBatchChars: 1000, SlideWindow: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			oracle := newScriptedOracle(nil)
			aligner := alignment.NewAligner(alignment.NewAdapter(oracle, nil), nil)
			_, err := aligner.Align(context.Background(), tc.segments, tc.slides, tc.opts)
			if services.Classify(err) != services.KindInput {
				t.Fatalf("expected input error, got %v", err)
			}
			if oracle.calls != 0 {
				t.Fatalf("classifier called %d times on bad input", oracle.calls)
			}
		})
	}
}

func TestAlignSortsSegments(t *testing.T) {
	segments := []alignment.Segment{{ID: 3, Text: "c"}, {ID: 1, Text: "a"}, {ID: 2, Text: "b"}}
	oracle := newScriptedOracle(map[int]int{1: 1, 2: 1, 3: 1})
	aligner := alignment.NewAligner(alignment.NewAdapter(oracle, nil), nil)
	outcome, err := aligner.Align(context.Background(), segments, contentSlides(1), alignment.Options{SlideWindow: 1, MaxBatchChars: 1000})
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}
	entry, _ := outcome.Result.Slide(1)
	if got := entry.Text(); got != "a b c" {
		t.Fatalf("slide text = %q", got)
	}
}

func TestAlignStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	oracle := newScriptedOracle(nil)
	aligner := alignment.NewAligner(alignment.NewAdapter(oracle, nil), nil)
	_, err := aligner.Align(ctx, makeSegments(2, "a"), contentSlides(1), alignment.Options{MaxBatchChars: 1000})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
