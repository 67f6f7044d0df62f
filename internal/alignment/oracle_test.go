package alignment_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"slidenotes/internal/alignment"
	"slidenotes/internal/services"
)

func TestParseMappingsAcceptsBothShapes(t *testing.T) {
	for _, content := range []string{
		`{"mappings":[{"segment_id":1,"slide_id":2}]}`,
		`[{"segment_id":1,"slide_id":2}]`,
		"```json\n[{\"segment_id\":1,\"slide_id\":2}]\n```",
	} {
		got, err := alignment.ParseMappings(content)
		if err != nil {
			t.Fatalf("ParseMappings(%q) returned error: %v", content, err)
		}
		if len(got) != 1 || got[0] != mp(1, 2) {
			t.Fatalf("ParseMappings(%q) = %+v", content, got)
		}
	}
	if _, err := alignment.ParseMappings(`{"other":[]}`); err == nil {
		t.Fatal("expected error when mappings field is absent")
	}
}

func TestValidateCoverage(t *testing.T) {
	if err := alignment.ValidateCoverage([]int{1, 2}, []alignment.Mapping{mp(2, 1), mp(1, -1)}); err != nil {
		t.Fatalf("expected complete coverage, got %v", err)
	}

	err := alignment.ValidateCoverage([]int{1, 2, 3}, []alignment.Mapping{mp(1, 1), mp(1, 2), mp(9, 1)})
	var covErr *alignment.CoverageError
	if !errors.As(err, &covErr) {
		t.Fatalf("expected CoverageError, got %v", err)
	}
	if len(covErr.Missing) != 2 || covErr.Missing[0] != 2 || covErr.Missing[1] != 3 {
		t.Fatalf("unexpected missing ids %v", covErr.Missing)
	}
	if len(covErr.Duplicate) != 1 || covErr.Duplicate[0] != 1 {
		t.Fatalf("unexpected duplicate ids %v", covErr.Duplicate)
	}
	if len(covErr.Unexpected) != 1 || covErr.Unexpected[0] != 9 {
		t.Fatalf("unexpected unexpected ids %v", covErr.Unexpected)
	}
}

func TestAdapterRejectsMissingCoverage(t *testing.T) {
	oracle := alignment.OracleFunc(func(context.Context, string, string) (string, error) {
		return `{"mappings":[{"segment_id":1,"slide_id":1}]}`, nil
	})
	adapter := alignment.NewAdapter(oracle, nil)
	batch := alignment.Batch{Index: 1, SegmentIDs: []int{1, 2}}
	_, err := adapter.Classify(context.Background(), batch, contentSlides(1), alignment.ModeWindow)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected oracle error, got %v", err)
	}
	var covErr *alignment.CoverageError
	if !errors.As(err, &covErr) || len(covErr.Missing) != 1 || covErr.Missing[0] != 2 {
		t.Fatalf("expected missing segment 2, got %v", err)
	}
}

func TestAdapterDemotesOutOfWindowSlides(t *testing.T) {
	oracle := alignment.OracleFunc(func(context.Context, string, string) (string, error) {
		return `[{"segment_id":2,"slide_id":9},{"segment_id":1,"slide_id":2},{"segment_id":3,"slide_id":0}]`, nil
	})
	adapter := alignment.NewAdapter(oracle, nil)
	batch := alignment.Batch{Index: 1, SegmentIDs: []int{1, 2, 3}}
	got, err := adapter.Classify(context.Background(), batch, contentSlides(1, 2, 3), alignment.ModeWindow)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	want := []alignment.Mapping{mp(1, 2), mp(2, -1), mp(3, -1)}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Classify = %+v, want %+v", got, want)
		}
	}
}

func TestAdapterWrapsTransportFailure(t *testing.T) {
	boom := errors.New("connection refused")
	oracle := alignment.OracleFunc(func(context.Context, string, string) (string, error) {
		return "", boom
	})
	_, err := alignment.NewAdapter(oracle, nil).Classify(context.Background(), alignment.Batch{SegmentIDs: []int{1}}, contentSlides(1), alignment.ModeWindow)
	if !errors.Is(err, boom) || services.Classify(err) != services.KindOracle {
		t.Fatalf("expected wrapped oracle failure, got %v", err)
	}
}

func TestBuildPromptsCarriesRules(t *testing.T) {
	slides := []alignment.Slide{{
		Number:            4,
		Type:              alignment.SlideCode,
		TitleKeywords:     []string{"정렬", "quick sort"},
		SecondaryKeywords: []string{"pivot"},
		Detail:            "partition step",
	}}
	system, user := alignment.BuildPrompts(alignment.ModeWindow, alignment.RenderSnippet(alignment.Segment{ID: 3, Text: "hi"}), slides)
	for _, want := range []string{
		"- Slide 4\n",
		`title_keywords: ["정렬","quick sort"]`,
		`secondary_keywords: ["pivot"]`,
		"detail: partition step",
		"- Segment ID: 3",
		"slide_id to -1",
		"exactly once",
	} {
		if !strings.Contains(user, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, user)
		}
	}
	if !strings.Contains(system, "title_keywords") {
		t.Fatalf("system prompt missing keyword weighting: %s", system)
	}

	_, centre := alignment.BuildPrompts(alignment.ModeCentre, "", slides)
	if strings.Contains(centre, "slide_id to -1") {
		t.Fatalf("centre prompt should require a slide for every segment:\n%s", centre)
	}
}
