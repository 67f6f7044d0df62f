package alignment

import (
	"fmt"

	"slidenotes/internal/services"
)

// Assemble groups mappings by slide into a Result. Unmapped segments land in
// slide0. Every mapping must name a known segment, at most once.
func Assemble(mappings []Mapping, segments []Segment) (*Result, error) {
	texts := make(map[int]string, len(segments))
	for _, seg := range segments {
		texts[seg.ID] = seg.Text
	}
	result := NewResult()
	seen := make(map[int]struct{}, len(mappings))
	for _, m := range mappings {
		text, ok := texts[m.SegmentID]
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "assemble", "lookup segment",
				fmt.Sprintf("mapping references unknown segment %d", m.SegmentID), nil)
		}
		if _, dup := seen[m.SegmentID]; dup {
			return nil, services.Wrap(services.ErrValidation, "assemble", "lookup segment",
				fmt.Sprintf("segment %d mapped more than once", m.SegmentID), nil)
		}
		seen[m.SegmentID] = struct{}{}

		slide := 0
		if m.Valid() {
			slide = m.SlideID
		}
		entry, ok := result.Slides[slide]
		if !ok {
			entry = &SlideEntry{Segments: make(map[int]*SegmentEntry)}
			result.Slides[slide] = entry
		}
		entry.Segments[m.SegmentID] = &SegmentEntry{Text: text}
	}
	return result, nil
}
