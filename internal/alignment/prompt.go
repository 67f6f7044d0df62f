package alignment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode selects the prompt contract for a classification request.
type Mode int

const (
	// ModeWindow is the sliding-window pass; ambiguous segments may be unmapped.
	ModeWindow Mode = iota
	// ModeCentre is the correction pass over centre-1..centre+1; every segment
	// must land on one of the exposed slides.
	ModeCentre
)

func (m Mode) String() string {
	if m == ModeCentre {
		return "centre"
	}
	return "window"
}

const windowSystemPrompt = "You map lecture speech segments to the most relevant slide. " +
	"Prioritize title_keywords, use secondary_keywords as support, and NEVER match to slides whose type is 'non_content'. " +
	"Every segment must receive exactly one mapping. Return ONLY the JSON mapping."

const centreSystemPrompt = "You map lecture speech segments to the most relevant slide. " +
	"Prioritize title_keywords, use secondary_keywords as support. " +
	"Every segment must be mapped to exactly one slide. No segment may be missing, and a single segment must not be mapped to multiple slides. " +
	"Return ONLY the JSON mapping."

const slideTypeRules = `2. Slide types
   • code    – segment explains source code / algorithm
   • image   – segment describes a picture / chart / diagram
   • content – normal explanatory slide with text or formulas
`

// BuildSlideBlock renders window slides for the prompt.
func BuildSlideBlock(slides []Slide) string {
	lines := make([]string, 0, len(slides))
	for _, s := range slides {
		var b strings.Builder
		fmt.Fprintf(&b, "- Slide %d\n", s.Number)
		fmt.Fprintf(&b, "  - type: %s\n", s.Type)
		fmt.Fprintf(&b, "  - title_keywords: %s\n", keywordsJSON(s.TitleKeywords))
		fmt.Fprintf(&b, "  - secondary_keywords: %s", keywordsJSON(s.SecondaryKeywords))
		if detail := strings.TrimSpace(s.Detail); detail != "" {
			fmt.Fprintf(&b, "\n  - detail: %s", detail)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func keywordsJSON(keywords []string) string {
	if len(keywords) == 0 {
		return "[]"
	}
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(keywords); err != nil {
		return "[]"
	}
	return strings.TrimSpace(b.String())
}

// BuildPrompts returns the system and user prompts for one request.
func BuildPrompts(mode Mode, batchText string, window []Slide) (string, string) {
	var b strings.Builder
	b.WriteString("Slides (each has slide_number, type, title_keywords, secondary_keywords):\n")
	b.WriteString(BuildSlideBlock(window))
	b.WriteString("\n\nSegments:\n")
	b.WriteString(batchText)
	b.WriteString("\nMapping rules\n")
	b.WriteString("1. Match by semantic similarity, giving highest weight to title_keywords; use secondary_keywords for tie-breaking.\n")
	b.WriteString(slideTypeRules)
	if mode == ModeCentre {
		b.WriteString("3. Map every segment to one of the slides listed above.\n")
	} else {
		b.WriteString("   • non_content – cover / outline / goals / ending; never map (use slide_id -1)\n")
		b.WriteString("3. If a segment does not clearly match any listed slide, or only matches a non_content slide, set slide_id to -1.\n")
	}
	b.WriteString("4. Every segment ID above must appear exactly once in the output.\n\n")
	b.WriteString(`Respond with JSON ONLY, e.g.:
{"mappings": [
  {"segment_id": 12, "slide_id": 5},
  {"segment_id": 13, "slide_id": -1}
]}
`)
	system := windowSystemPrompt
	if mode == ModeCentre {
		system = centreSystemPrompt
	}
	return system, b.String()
}
