package alignment

import (
	"encoding/json"
	"strings"
)

// SlideType tags a slide with its content category.
type SlideType string

const (
	SlideMeta    SlideType = "meta"
	SlideCode    SlideType = "code"
	SlideImage   SlideType = "image"
	SlideContent SlideType = "content"
)

// ParseSlideType maps a captioning label to a SlideType. "non_content" is an
// alias of meta; unknown labels are treated as content.
func ParseSlideType(value string) SlideType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "meta", "non_content", "non-content":
		return SlideMeta
	case "code":
		return SlideCode
	case "image":
		return SlideImage
	default:
		return SlideContent
	}
}

// Segment is one transcribed fragment of speech.
type Segment struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Slide is one deck page as produced by the captioning step.
type Slide struct {
	Number            int       `json:"slide_number"`
	Type              SlideType `json:"type"`
	TitleKeywords     []string  `json:"title_keywords"`
	SecondaryKeywords []string  `json:"secondary_keywords"`
	Detail            string    `json:"detail,omitempty"`
}

// UnmarshalJSON accepts "slide_number" or "number" and normalizes the type tag.
func (s *Slide) UnmarshalJSON(data []byte) error {
	var raw struct {
		SlideNumber       *int     `json:"slide_number"`
		Number            *int     `json:"number"`
		Type              string   `json:"type"`
		TitleKeywords     []string `json:"title_keywords"`
		SecondaryKeywords []string `json:"secondary_keywords"`
		Detail            string   `json:"detail"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Slide{
		Type:              ParseSlideType(raw.Type),
		TitleKeywords:     raw.TitleKeywords,
		SecondaryKeywords: raw.SecondaryKeywords,
		Detail:            raw.Detail,
	}
	switch {
	case raw.SlideNumber != nil:
		s.Number = *raw.SlideNumber
	case raw.Number != nil:
		s.Number = *raw.Number
	}
	return nil
}

// Unmapped is the slide id a classifier returns when no valid slide matches.
const Unmapped = -1

// Mapping assigns one segment to one slide (or Unmapped).
type Mapping struct {
	SegmentID int `json:"segment_id"`
	SlideID   int `json:"slide_id"`
}

// Valid reports whether the mapping names a real slide.
func (m Mapping) Valid() bool {
	return m.SlideID != Unmapped && m.SlideID > 0
}
