package alignment_test

import (
	"testing"

	"slidenotes/internal/alignment"
)

func TestCandidateSlidesDropsMeta(t *testing.T) {
	slides := []alignment.Slide{
		{Number: 3, Type: alignment.SlideContent},
		{Number: 1, Type: alignment.SlideMeta},
		{Number: 2, Type: alignment.SlideCode},
	}
	got := alignment.CandidateSlides(slides)
	if len(got) != 2 || got[0].Number != 2 || got[1].Number != 3 {
		t.Fatalf("unexpected candidates %+v", got)
	}
}

func TestSelectWindow(t *testing.T) {
	slides := contentSlides(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	slides[4].Type = alignment.SlideMeta // slide 5

	tests := []struct {
		name   string
		centre int
		radius int
		want   []int
	}{
		{"clamped at one", 1, 2, []int{1, 2, 3}},
		{"middle skips meta", 5, 1, []int{4, 6}},
		{"zero centre", 0, 1, []int{1}},
		{"past end", 12, 2, []int{10}},
		{"radius zero", 3, 0, []int{3}},
		{"negative radius clamps to zero", 3, -1, []int{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := alignment.SelectWindow(slides, tt.centre, tt.radius)
			if len(got) != len(tt.want) {
				t.Fatalf("SelectWindow(%d,%d) = %v, want %v", tt.centre, tt.radius, numbers(got), tt.want)
			}
			for i := range got {
				if got[i].Number != tt.want[i] {
					t.Fatalf("SelectWindow(%d,%d) = %v, want %v", tt.centre, tt.radius, numbers(got), tt.want)
				}
				if got[i].Number < 1 || got[i].Type == alignment.SlideMeta {
					t.Fatalf("invalid slide in window: %+v", got[i])
				}
			}
		})
	}
}

func TestParseSlideType(t *testing.T) {
	cases := map[string]alignment.SlideType{
		"meta":        alignment.SlideMeta,
		"non_content": alignment.SlideMeta,
		"Code":        alignment.SlideCode,
		"image":       alignment.SlideImage,
		"content":     alignment.SlideContent,
		"diagram":     alignment.SlideContent,
	}
	for in, want := range cases {
		if got := alignment.ParseSlideType(in); got != want {
			t.Fatalf("ParseSlideType(%q) = %q, want %q", in, got, want)
		}
	}
}

func numbers(slides []alignment.Slide) []int {
	out := make([]int, 0, len(slides))
	for _, s := range slides {
		out = append(out, s.Number)
	}
	return out
}
