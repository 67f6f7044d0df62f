package segmenter

import (
	"strings"
	"unicode/utf8"

	"slidenotes/internal/alignment"
)

// Splitter packs sentences into fragments of at most MaxChars runes. A
// trailing fragment shorter than MinChars is merged into the previous one.
type Splitter struct {
	MaxChars int
	MinChars int
}

// New returns a Splitter with the given bounds.
func New(maxChars, minChars int) Splitter {
	return Splitter{MaxChars: maxChars, MinChars: minChars}
}

// Split implements alignment.Splitter.
func (s Splitter) Split(text string) []alignment.Segment {
	return Split(text, s.MaxChars, s.MinChars)
}

// Split breaks text on sentence boundaries and packs the sentences into
// segments numbered from 1. A sentence longer than maxChars is kept whole.
// maxChars <= 0 disables packing limits and yields one segment.
func Split(text string, maxChars, minChars int) []alignment.Segment {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0
	for _, sentence := range sentences {
		n := utf8.RuneCountInString(sentence)
		if currentLen > 0 && maxChars > 0 && currentLen+1+n > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(sentence)
		currentLen += n
	}
	if currentLen > 0 {
		tail := current.String()
		if len(chunks) > 0 && currentLen < minChars {
			chunks[len(chunks)-1] += " " + tail
		} else {
			chunks = append(chunks, tail)
		}
	}

	out := make([]alignment.Segment, 0, len(chunks))
	for i, chunk := range chunks {
		out = append(out, alignment.Segment{ID: i + 1, Text: chunk})
	}
	return out
}

// Sentences splits text after '.', '?', '!' and '。', and at line breaks.
// Runs of terminators stay with their sentence. Whitespace is collapsed.
func Sentences(text string) []string {
	var out []string
	var current strings.Builder
	flush := func() {
		sentence := strings.Join(strings.Fields(current.String()), " ")
		if sentence != "" {
			out = append(out, sentence)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' || r == '\r' {
			flush()
			continue
		}
		current.WriteRune(r)
		if isTerminator(r) && (i+1 == len(runes) || !isTerminator(runes[i+1])) {
			flush()
		}
	}
	flush()
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '?', '!', '。':
		return true
	}
	return false
}
