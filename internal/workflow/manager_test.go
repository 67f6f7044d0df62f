package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"slidenotes/internal/alignment"
	"slidenotes/internal/config"
	"slidenotes/internal/jobs"
	"slidenotes/internal/services"
	"slidenotes/internal/services/llm"
	"slidenotes/internal/services/openaifn"
	"slidenotes/internal/testsupport"
	"slidenotes/internal/workflow"
)

var segmentIDPattern = regexp.MustCompile(`Segment ID: (\d+)`)

// tableOracle maps every segment id found in the prompt through table.
type tableOracle struct {
	mu    sync.Mutex
	table map[int]int
	err   error
	calls int
}

func (o *tableOracle) CompleteJSON(_ context.Context, _ string, user string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return "", o.err
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

func (o *tableOracle) setTable(table map[int]int) {
	o.mu.Lock()
	o.table = table
	o.mu.Unlock()
}

func twoSlides() []alignment.Slide {
	return []alignment.Slide{
		{Number: 1, Type: alignment.SlideContent, TitleKeywords: []string{"x"}},
		{Number: 2, Type: alignment.SlideContent, TitleKeywords: []string{"y"}},
	}
}

func abcSegments() []alignment.Segment {
	return []alignment.Segment{{ID: 1, Text: "A"}, {ID: 2, Text: "B"}, {ID: 3, Text: "C"}}
}

func newManager(t *testing.T, oracle alignment.Oracle, opts ...testsupport.ConfigOption) (*workflow.Manager, jobs.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	words := alignment.SplitterFunc(func(text string) []alignment.Segment {
		var out []alignment.Segment
		for i, word := range strings.Fields(text) {
			out = append(out, alignment.Segment{ID: i + 1, Text: word})
		}
		return out
	})
	return workflow.NewManager(cfg, store, oracle, nil, workflow.WithSplitter(words)), store
}

func submit(t *testing.T, mgr *workflow.Manager, segments []alignment.Segment) *jobs.Job {
	t.Helper()
	job, err := mgr.Submit(context.Background(), workflow.SubmitRequest{Title: "lecture", Segments: segments, Slides: twoSlides()})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	return job
}

func resultJSON(t *testing.T, mgr *workflow.Manager, id string) string {
	t.Helper()
	result, err := mgr.Result(context.Background(), id)
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func slideText(t *testing.T, mgr *workflow.Manager, id string, n int) string {
	t.Helper()
	result, err := mgr.Result(context.Background(), id)
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	entry, ok := result.Slide(n)
	if !ok {
		t.Fatalf("slide %d missing", n)
	}
	return entry.Text()
}

func TestSubmitRejectsInvalidInputs(t *testing.T) {
	oracle := &tableOracle{}
	mgr, store := newManager(t, oracle)

	_, err := mgr.Submit(context.Background(), workflow.SubmitRequest{Slides: twoSlides()})
	if err == nil {
		t.Fatal("expected error for empty segments")
	}
	if kind := services.Classify(err); kind != services.KindInput {
		t.Fatalf("expected input error, got %s (%v)", kind, err)
	}
	list, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected nothing stored, got %d jobs", len(list))
	}
}

func TestRunAssemblesResult(t *testing.T) {
	oracle := &tableOracle{table: map[int]int{1: 1, 2: 2, 3: alignment.Unmapped}}
	mgr, store := newManager(t, oracle)
	job := submit(t, mgr, abcSegments())
	if job.Status != jobs.StatusCreated || job.SegmentCount != 3 || job.SlideCount != 2 {
		t.Fatalf("unexpected submitted job: %+v", job)
	}

	done, err := mgr.Run(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if done.Status != jobs.StatusAssembled || done.ProgressPercent != 100 || done.BatchCount != 1 {
		t.Fatalf("unexpected final job: %+v", done)
	}
	want := `{"slide0":{"Segments":{"segment3":{"text":"C"}}},"slide1":{"Segments":{"segment1":{"text":"A"}}},"slide2":{"Segments":{"segment2":{"text":"B"}}}}`
	if got := resultJSON(t, mgr, job.ID); got != want {
		t.Fatalf("unexpected result:\n got %s\nwant %s", got, want)
	}

	stored, err := store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.Status != jobs.StatusAssembled {
		t.Fatalf("expected stored status assembled, got %s", stored.Status)
	}
	summary := mgr.Summary(context.Background())
	if summary.LastJob == nil || summary.LastJob.ID != job.ID || summary.JobStats[jobs.StatusAssembled] != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Active) != 0 {
		t.Fatalf("expected no active jobs, got %v", summary.Active)
	}
}

func TestRunAbortRecordsFailure(t *testing.T) {
	oracle := &tableOracle{err: errors.New("connection refused")}
	mgr, store := newManager(t, oracle)
	job := submit(t, mgr, abcSegments())

	_, err := mgr.Run(context.Background(), job.ID)
	if err == nil {
		t.Fatal("expected run error")
	}
	var batchErr *alignment.BatchError
	if !errors.As(err, &batchErr) || batchErr.Index != 1 {
		t.Fatalf("expected batch 1 failure, got %v", err)
	}

	stored, err := store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.Status != jobs.StatusFailed || stored.ErrorKind != string(services.KindOracle) || stored.FailedBatch != 1 {
		t.Fatalf("unexpected failed job: %+v", stored)
	}
	if stored.ErrorMessage == "" {
		t.Fatal("expected error message to be recorded")
	}
	if _, err := mgr.Result(context.Background(), job.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected no result after abort, got %v", err)
	}
	if summary := mgr.Summary(context.Background()); summary.LastError == "" {
		t.Fatal("expected last error in summary")
	}
}

func TestRunSkipPolicyRoutesToSlideZero(t *testing.T) {
	oracle := &tableOracle{err: errors.New("upstream unavailable")}
	mgr, _ := newManager(t, oracle, testsupport.WithFailurePolicy(config.FailureSkip))
	job := submit(t, mgr, abcSegments())

	done, err := mgr.Run(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if done.Status != jobs.StatusAssembled || done.SkippedBatches != 1 {
		t.Fatalf("unexpected final job: %+v", done)
	}
	want := `{"slide0":{"Segments":{"segment1":{"text":"A"},"segment2":{"text":"B"},"segment3":{"text":"C"}}}}`
	if got := resultJSON(t, mgr, job.ID); got != want {
		t.Fatalf("unexpected result:\n got %s\nwant %s", got, want)
	}
}

func TestMoveSegmentPersists(t *testing.T) {
	oracle := &tableOracle{table: map[int]int{1: 1, 2: 2, 3: alignment.Unmapped}}
	mgr, store := newManager(t, oracle)
	job := submit(t, mgr, abcSegments())
	if _, err := mgr.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if _, err := mgr.MoveSegment(context.Background(), job.ID, 2, 1, "B"); err != nil {
		t.Fatalf("MoveSegment returned error: %v", err)
	}
	if got := slideText(t, mgr, job.ID, 1); got != "A B" {
		t.Fatalf("slide 1 = %q, want %q", got, "A B")
	}
	if got := slideText(t, mgr, job.ID, 2); got != "" {
		t.Fatalf("slide 2 = %q, want empty", got)
	}

	if _, err := mgr.MoveSegment(context.Background(), job.ID, 0, 0, "C"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for same-slide move, got %v", err)
	}
	if _, err := mgr.MoveSegment(context.Background(), job.ID, 0, 2, "C"); err != nil {
		t.Fatalf("MoveSegment from slide0 returned error: %v", err)
	}
	if got := slideText(t, mgr, job.ID, 2); got != "C" {
		t.Fatalf("slide 2 = %q, want %q", got, "C")
	}

	stored, err := store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.Status != jobs.StatusAssembled {
		t.Fatalf("expected job back in assembled, got %s", stored.Status)
	}
}

func TestConcurrentMovesAreSerialized(t *testing.T) {
	const count = 20
	table := make(map[int]int, count)
	segments := make([]alignment.Segment, 0, count)
	for i := 1; i <= count; i++ {
		table[i] = 2
		segments = append(segments, alignment.Segment{ID: i, Text: fmt.Sprintf("w%02d", i)})
	}
	mgr, _ := newManager(t, &tableOracle{table: table})
	job := submit(t, mgr, segments)
	if _, err := mgr.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, count)
	for _, seg := range segments {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			if _, err := mgr.MoveSegment(context.Background(), job.ID, 2, 1, text); err != nil {
				errs <- fmt.Errorf("move %s: %w", text, err)
			}
		}(seg.Text)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	moved := strings.Fields(slideText(t, mgr, job.ID, 1))
	if len(moved) != count {
		t.Fatalf("slide 1 holds %d words, want %d: %v", len(moved), count, moved)
	}
	seen := make(map[string]bool, count)
	for _, word := range moved {
		seen[word] = true
	}
	for _, seg := range segments {
		if !seen[seg.Text] {
			t.Fatalf("word %s lost; slide 1 = %v", seg.Text, moved)
		}
	}
	if got := strings.TrimSpace(slideText(t, mgr, job.ID, 2)); got != "" {
		t.Fatalf("slide 2 = %q, want empty", got)
	}
}

func TestMoveSegmentNotFoundLeavesDocument(t *testing.T) {
	oracle := &tableOracle{table: map[int]int{1: 1, 2: 2, 3: alignment.Unmapped}}
	mgr, store := newManager(t, oracle)
	job := submit(t, mgr, abcSegments())
	if _, err := mgr.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	before := resultJSON(t, mgr, job.ID)

	_, err := mgr.MoveSegment(context.Background(), job.ID, 1, 2, "missing words")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if after := resultJSON(t, mgr, job.ID); after != before {
		t.Fatalf("document changed on failed move:\nbefore %s\n after %s", before, after)
	}
	stored, err := store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.Status != jobs.StatusAssembled {
		t.Fatalf("expected job back in assembled, got %s", stored.Status)
	}
}

func TestPostProcessPersists(t *testing.T) {
	oracle := &tableOracle{table: map[int]int{1: 1, 2: 2}}
	mgr, _ := newManager(t, oracle)
	job := submit(t, mgr, []alignment.Segment{{ID: 1, Text: "alpha beta"}, {ID: 2, Text: "B"}})
	if _, err := mgr.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// Fragments are numbered per word: "alpha" stays, "beta" moves forward.
	oracle.setTable(map[int]int{1: 1, 2: 2})
	if _, err := mgr.PostProcess(context.Background(), job.ID, 1); err != nil {
		t.Fatalf("PostProcess returned error: %v", err)
	}
	if got := slideText(t, mgr, job.ID, 1); got != "alpha" {
		t.Fatalf("slide 1 = %q, want %q", got, "alpha")
	}
	if got := slideText(t, mgr, job.ID, 2); got != "beta B" {
		t.Fatalf("slide 2 = %q, want %q", got, "beta B")
	}
}

func TestCorrectionsRequireAssembledJob(t *testing.T) {
	oracle := &tableOracle{}
	mgr, _ := newManager(t, oracle)
	job := submit(t, mgr, abcSegments())

	if _, err := mgr.PostProcess(context.Background(), job.ID, 1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error from PostProcess, got %v", err)
	}
	if _, err := mgr.MoveSegment(context.Background(), job.ID, 1, 2, "A"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error from MoveSegment, got %v", err)
	}
	if _, err := mgr.MoveSegment(context.Background(), "nope", 1, 2, "A"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown job, got %v", err)
	}
	if oracle.calls != 0 {
		t.Fatalf("expected no classifier calls, got %d", oracle.calls)
	}
}

func TestNewJobIDFormat(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	id := workflow.NewJobID(now)
	if !regexp.MustCompile(`^20261014_093000_[0-9a-f]{8}$`).MatchString(id) {
		t.Fatalf("unexpected job id %q", id)
	}
	if other := workflow.NewJobID(now); other == id {
		t.Fatalf("expected distinct ids, got %q twice", id)
	}
}

func TestPollerRunsCreatedJobs(t *testing.T) {
	oracle := &tableOracle{table: map[int]int{1: 1, 2: 2, 3: alignment.Unmapped}}
	mgr, _ := newManager(t, oracle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := submit(t, mgr, abcSegments())
	if err := mgr.StartPoller(ctx); err != nil {
		t.Fatalf("StartPoller returned error: %v", err)
	}
	defer mgr.Stop()
	if err := mgr.StartPoller(ctx); err == nil {
		t.Fatal("expected second StartPoller to fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		current, err := mgr.Status(ctx, job.ID)
		if err != nil {
			t.Fatalf("Status returned error: %v", err)
		}
		if current.Status == jobs.StatusAssembled {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job still %s after deadline", current.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !mgr.Summary(ctx).Running {
		t.Fatal("expected poller to report running")
	}
}

func TestPollerResetsStuckJobs(t *testing.T) {
	oracle := &tableOracle{table: map[int]int{1: 1, 2: 2, 3: alignment.Unmapped}}
	mgr, store := newManager(t, oracle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := submit(t, mgr, abcSegments())
	job.Status = jobs.StatusClassifying
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if err := mgr.StartPoller(ctx); err != nil {
		t.Fatalf("StartPoller returned error: %v", err)
	}
	defer mgr.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for {
		current, err := store.Get(ctx, job.ID)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if current.Status == jobs.StatusAssembled {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("stuck job still %s after deadline", current.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestNewClassifierSelectsProvider(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	classifier, err := workflow.NewClassifier(cfg, nil)
	if err != nil {
		t.Fatalf("NewClassifier returned error: %v", err)
	}
	if _, ok := classifier.(*llm.Client); !ok {
		t.Fatalf("expected llm client for openrouter, got %T", classifier)
	}

	cfg.LLM.Provider = config.ProviderOpenAI
	classifier, err = workflow.NewClassifier(cfg, nil)
	if err != nil {
		t.Fatalf("NewClassifier returned error: %v", err)
	}
	if _, ok := classifier.(*openaifn.Client); !ok {
		t.Fatalf("expected function-calling client for openai, got %T", classifier)
	}

	cfg.LLM.Provider = "mystery"
	if _, err := workflow.NewClassifier(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown provider, got %v", err)
	}

	cfg.LLM.Provider = config.ProviderOpenRouter
	cfg.LLM.APIKey = ""
	if _, err := workflow.NewClassifier(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without api key, got %v", err)
	}
}
