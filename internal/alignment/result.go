package alignment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	slidePrefix   = "slide"
	segmentPrefix = "segment"
	segmentsKey   = "Segments"
	textKey       = "text"
)

// SummaryFields are the per-slide note fields filled in by summary generation.
// Slide entries created by corrections start with them empty.
var SummaryFields = []string{"Concise Summary Notes", "Bullet Point Notes", "Keyword Notes", "Chart/Table Summary"}

// segmentFields are the per-segment annotation fields downstream consumers expect.
var segmentFields = []string{"isImportant", "reason", "linkedConcept", "pageNumber"}

// SlideKey returns the document key for a slide number ("slide0" for unmapped).
func SlideKey(n int) string { return slidePrefix + strconv.Itoa(n) }

// SegmentKey returns the document key for a segment id.
func SegmentKey(id int) string { return segmentPrefix + strconv.Itoa(id) }

// SegmentEntry is one stored text fragment. Extra holds fields this engine
// does not produce, kept verbatim.
type SegmentEntry struct {
	Text  string
	Extra map[string]json.RawMessage
}

// SlideEntry holds a slide's segments keyed by numeric segment id.
//
// A slide's text is one logical stream: the concatenation of its segment
// texts in ascending key order. Corrections consolidate a slide into its
// aggregate key, the lowest-numbered segment.
type SlideEntry struct {
	Segments map[int]*SegmentEntry
	Extra    map[string]json.RawMessage
}

// Result is the slide-keyed alignment document.
type Result struct {
	Slides map[int]*SlideEntry
}

// NewResult returns an empty document.
func NewResult() *Result {
	return &Result{Slides: make(map[int]*SlideEntry)}
}

// SlideNumbers returns slide numbers ascending (0 first when present).
func (r *Result) SlideNumbers() []int {
	if r == nil {
		return nil
	}
	nums := make([]int, 0, len(r.Slides))
	for n := range r.Slides {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Slide returns the entry for slide n.
func (r *Result) Slide(n int) (*SlideEntry, bool) {
	if r == nil {
		return nil, false
	}
	entry, ok := r.Slides[n]
	return entry, ok && entry != nil
}

// SegmentCount reports the number of stored segments across all slides.
func (r *Result) SegmentCount() int {
	total := 0
	for _, n := range r.SlideNumbers() {
		total += len(r.Slides[n].Segments)
	}
	return total
}

// Clone returns a deep copy.
func (r *Result) Clone() *Result {
	out := NewResult()
	if r == nil {
		return out
	}
	for n, entry := range r.Slides {
		if entry == nil {
			continue
		}
		out.Slides[n] = entry.clone()
	}
	return out
}

// SegmentIDs returns the entry's segment ids ascending.
func (e *SlideEntry) SegmentIDs() []int {
	ids := make([]int, 0, len(e.Segments))
	for id := range e.Segments {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Text returns the slide's aggregate text: segment texts in key order,
// space-joined, skipping empty ones.
func (e *SlideEntry) Text() string {
	parts := make([]string, 0, len(e.Segments))
	for _, id := range e.SegmentIDs() {
		parts = append(parts, e.Segments[id].Text)
	}
	return joinText(parts...)
}

// AggregateKey returns the lowest segment id, or false for an empty slide.
func (e *SlideEntry) AggregateKey() (int, bool) {
	ids := e.SegmentIDs()
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

func (e *SlideEntry) clone() *SlideEntry {
	out := &SlideEntry{
		Segments: make(map[int]*SegmentEntry, len(e.Segments)),
		Extra:    cloneRaw(e.Extra),
	}
	for id, seg := range e.Segments {
		if seg == nil {
			continue
		}
		out.Segments[id] = &SegmentEntry{Text: seg.Text, Extra: cloneRaw(seg.Extra)}
	}
	return out
}

func cloneRaw(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// joinText space-joins the non-empty trimmed parts.
func joinText(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// MarshalJSON writes slides ascending with slide0 first and segments
// ascending within each slide. Known summary and annotation fields come first
// in their conventional order, other extra fields follow sorted by key.
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range r.SlideNumbers() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, SlideKey(n)); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := r.Slides[n].writeJSON(&buf); err != nil {
			return nil, fmt.Errorf("%s: %w", SlideKey(n), err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *SlideEntry) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	first := true
	for _, key := range orderedKeys(e.Extra, SummaryFields) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeString(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		buf.Write(e.Extra[key])
	}
	if !first {
		buf.WriteByte(',')
	}
	if err := writeString(buf, segmentsKey); err != nil {
		return err
	}
	buf.WriteString(":{")
	for i, id := range e.SegmentIDs() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, SegmentKey(id)); err != nil {
			return err
		}
		buf.WriteString(":{")
		seg := e.Segments[id]
		if err := writeString(buf, textKey); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeString(buf, seg.Text); err != nil {
			return err
		}
		for _, key := range orderedKeys(seg.Extra, segmentFields) {
			buf.WriteByte(',')
			if err := writeString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			buf.Write(seg.Extra[key])
		}
		buf.WriteByte('}')
	}
	buf.WriteString("}}")
	return nil
}

// orderedKeys lists the preferred keys present in m, then the rest sorted.
func orderedKeys(m map[string]json.RawMessage, preferred []string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	used := make(map[string]struct{}, len(preferred))
	for _, key := range preferred {
		if _, ok := m[key]; ok {
			keys = append(keys, key)
			used[key] = struct{}{}
		}
	}
	rest := make([]string, 0, len(m))
	for key := range m {
		if _, ok := used[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func writeString(buf *bytes.Buffer, value string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// UnmarshalJSON reads a document with "slideN" keys and "segmentM" segment keys.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	slides := make(map[int]*SlideEntry, len(raw))
	for key, body := range raw {
		n, ok := parseNumberedKey(key, slidePrefix)
		if !ok {
			return fmt.Errorf("result: unexpected key %q", key)
		}
		entry, err := decodeSlideEntry(body)
		if err != nil {
			return fmt.Errorf("result: %s: %w", key, err)
		}
		slides[n] = entry
	}
	r.Slides = slides
	return nil
}

func decodeSlideEntry(body json.RawMessage) (*SlideEntry, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	entry := &SlideEntry{Segments: make(map[int]*SegmentEntry)}
	for key, value := range fields {
		if key != segmentsKey {
			if entry.Extra == nil {
				entry.Extra = make(map[string]json.RawMessage)
			}
			entry.Extra[key] = value
			continue
		}
		var segments map[string]json.RawMessage
		if err := json.Unmarshal(value, &segments); err != nil {
			return nil, fmt.Errorf("%s: %w", segmentsKey, err)
		}
		for segKey, segBody := range segments {
			id, ok := parseNumberedKey(segKey, segmentPrefix)
			if !ok {
				return nil, fmt.Errorf("unexpected segment key %q", segKey)
			}
			seg, err := decodeSegmentEntry(segBody)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", segKey, err)
			}
			entry.Segments[id] = seg
		}
	}
	return entry, nil
}

func decodeSegmentEntry(body json.RawMessage) (*SegmentEntry, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	seg := &SegmentEntry{}
	for key, value := range fields {
		if key == textKey {
			if err := json.Unmarshal(value, &seg.Text); err != nil {
				return nil, fmt.Errorf("text: %w", err)
			}
			continue
		}
		if seg.Extra == nil {
			seg.Extra = make(map[string]json.RawMessage)
		}
		seg.Extra[key] = value
	}
	return seg, nil
}

func parseNumberedKey(key, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}
