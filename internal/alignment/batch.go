package alignment

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Batch is a size-bounded run of consecutive segments rendered for one
// classifier request.
type Batch struct {
	// Index is 1-based.
	Index      int
	Text       string
	SegmentIDs []int
}

// Len reports the rendered length in runes.
func (b Batch) Len() int {
	return utf8.RuneCountInString(b.Text)
}

// RenderSnippet formats one segment as it appears inside a batch.
func RenderSnippet(seg Segment) string {
	return fmt.Sprintf("- Segment ID: %d\n  Text: %s\n\n", seg.ID, seg.Text)
}

// MergeSegments groups segments into batches whose rendered length stays
// within maxLen runes. A snippet that alone exceeds maxLen gets its own batch.
// When at least one batch was flushed and the trailing remainder is shorter
// than minLen, the remainder joins the last batch instead.
func MergeSegments(segments []Segment, maxLen, minLen int) []Batch {
	var (
		batches []Batch
		cur     strings.Builder
		curIDs  []int
		curLen  int
	)
	flush := func() {
		batches = append(batches, Batch{
			Index:      len(batches) + 1,
			Text:       cur.String(),
			SegmentIDs: curIDs,
		})
		cur.Reset()
		curIDs = nil
		curLen = 0
	}

	for _, seg := range segments {
		snippet := RenderSnippet(seg)
		n := utf8.RuneCountInString(snippet)
		if len(curIDs) > 0 && curLen+n > maxLen {
			flush()
		}
		cur.WriteString(snippet)
		curIDs = append(curIDs, seg.ID)
		curLen += n
	}

	if len(curIDs) == 0 {
		return batches
	}
	if len(batches) > 0 && curLen < minLen {
		last := &batches[len(batches)-1]
		last.Text += cur.String()
		last.SegmentIDs = append(last.SegmentIDs, curIDs...)
		return batches
	}
	flush()
	return batches
}
