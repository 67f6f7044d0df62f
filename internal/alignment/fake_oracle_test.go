package alignment_test

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"sync"

	"slidenotes/internal/alignment"
)

var (
	segmentIDPattern = regexp.MustCompile(`- Segment ID: (\d+)`)
	slideNumPattern  = regexp.MustCompile(`(?m)^- Slide (\d+)$`)
)

// scriptedOracle answers from a fixed segment->slide table and records the
// slide numbers exposed in each request.
type scriptedOracle struct {
	mu      sync.Mutex
	table   map[int]int
	fail    map[int]error // keyed by call number, 1-based
	calls   int
	windows [][]int
	prompts []string
}

func newScriptedOracle(table map[int]int) *scriptedOracle {
	return &scriptedOracle{table: table, fail: map[int]error{}}
}

func (o *scriptedOracle) CompleteJSON(_ context.Context, _ string, user string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.prompts = append(o.prompts, user)
	var window []int
	for _, match := range slideNumPattern.FindAllStringSubmatch(user, -1) {
		n, _ := strconv.Atoi(match[1])
		window = append(window, n)
	}
	o.windows = append(o.windows, window)
	if err, ok := o.fail[o.calls]; ok {
		return "", err
	}
	var mappings []alignment.Mapping
	for _, match := range segmentIDPattern.FindAllStringSubmatch(user, -1) {
		id, _ := strconv.Atoi(match[1])
		slide, ok := o.table[id]
		if !ok {
			slide = alignment.Unmapped
		}
		mappings = append(mappings, alignment.Mapping{SegmentID: id, SlideID: slide})
	}
	data, err := json.Marshal(map[string]any{"mappings": mappings})
	return string(data), err
}

func contentSlides(numbers ...int) []alignment.Slide {
	out := make([]alignment.Slide, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, alignment.Slide{
			Number:        n,
			Type:          alignment.SlideContent,
			TitleKeywords: []string{"kw" + strconv.Itoa(n)},
		})
	}
	return out
}
