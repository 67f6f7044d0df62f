package alignment

import "sort"

// CandidateSlides drops meta slides and returns the rest ordered by number.
// It runs once per alignment, before any windowing.
func CandidateSlides(slides []Slide) []Slide {
	out := make([]Slide, 0, len(slides))
	for _, s := range slides {
		if s.Type == SlideMeta {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// WindowBounds returns the inclusive slide range [max(1, centre-radius), centre+radius].
func WindowBounds(centre, radius int) (int, int) {
	start := centre - radius
	if start < 1 {
		start = 1
	}
	return start, centre + radius
}

// SelectWindow returns the candidates whose number falls in WindowBounds,
// preserving order. Meta slides are excluded even if the caller forgot to
// filter them.
func SelectWindow(candidates []Slide, centre, radius int) []Slide {
	if radius < 0 {
		radius = 0
	}
	start, end := WindowBounds(centre, radius)
	out := make([]Slide, 0, 2*radius+1)
	for _, s := range candidates {
		if s.Type == SlideMeta {
			continue
		}
		if s.Number >= start && s.Number <= end {
			out = append(out, s)
		}
	}
	return out
}
