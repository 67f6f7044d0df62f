package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"slidenotes/internal/alignment"
	"slidenotes/internal/services"
)

const (
	jobFile      = "job.json"
	segmentsFile = "segments.json"
	slidesFile   = "slides.json"
	resultFile   = "result.json"
)

// FilesystemStore keeps each job in <root>/<id>/ as JSON files. Every write
// goes through a temp file in the same directory followed by a rename.
type FilesystemStore struct {
	root string
	mu   sync.RWMutex
}

// OpenFilesystem prepares root for use.
func OpenFilesystem(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs directory: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

// Close is a no-op.
func (s *FilesystemStore) Close() error { return nil }

// Location returns the jobs directory.
func (s *FilesystemStore) Location() string { return s.root }

func (s *FilesystemStore) jobDir(id string) string {
	return filepath.Join(s.root, id)
}

// Create writes the inputs before job.json so a listed job always has them.
func (s *FilesystemStore) Create(ctx context.Context, job *Job, segments []alignment.Segment, slides []alignment.Slide) error {
	if err := validateNewJob(job); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.jobDir(job.ID)
	if _, err := os.Stat(filepath.Join(dir, jobFile)); err == nil {
		return services.Wrap(services.ErrValidation, "storage", "create", fmt.Sprintf("job %s already exists", job.ID), nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job directory: %w", err)
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.SegmentCount = len(segments)
	job.SlideCount = len(slides)

	if err := writeJSONAtomic(filepath.Join(dir, segmentsFile), segments); err != nil {
		return fmt.Errorf("write segments: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, slidesFile), slides); err != nil {
		return fmt.Errorf("write slides: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, jobFile), job); err != nil {
		return fmt.Errorf("write job: %w", err)
	}
	return nil
}

// Get reads job.json.
func (s *FilesystemStore) Get(ctx context.Context, id string) (*Job, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readJob(id)
}

func (s *FilesystemStore) readJob(id string) (*Job, error) {
	var job Job
	if err := readJSON(filepath.Join(s.jobDir(id), jobFile), &job); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, jobNotFound(id)
		}
		return nil, fmt.Errorf("read job %s: %w", id, err)
	}
	return &job, nil
}

// List scans the jobs directory.
func (s *FilesystemStore) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	keep := wantStatus(statuses)
	var out []*Job
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		job, err := s.readJob(entry.Name())
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if keep(job.Status) {
			out = append(out, job)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Update rewrites job.json, keeping the stored creation time and counts.
func (s *FilesystemStore) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readJob(job.ID)
	if err != nil {
		return err
	}
	job.CreatedAt = current.CreatedAt
	job.SegmentCount = current.SegmentCount
	job.SlideCount = current.SlideCount
	job.UpdatedAt = time.Now().UTC()
	if err := writeJSONAtomic(filepath.Join(s.jobDir(job.ID), jobFile), job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Inputs reads segments.json and slides.json.
func (s *FilesystemStore) Inputs(ctx context.Context, id string) ([]alignment.Segment, []alignment.Slide, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.readJob(id); err != nil {
		return nil, nil, err
	}
	var segments []alignment.Segment
	if err := readJSON(filepath.Join(s.jobDir(id), segmentsFile), &segments); err != nil {
		return nil, nil, fmt.Errorf("read segments: %w", err)
	}
	var slides []alignment.Slide
	if err := readJSON(filepath.Join(s.jobDir(id), slidesFile), &slides); err != nil {
		return nil, nil, fmt.Errorf("read slides: %w", err)
	}
	return segments, slides, nil
}

// SaveResult atomically replaces result.json.
func (s *FilesystemStore) SaveResult(ctx context.Context, id string, result *alignment.Result) error {
	if result == nil {
		return errors.New("result is nil")
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readJob(id); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(s.jobDir(id), resultFile), result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// LoadResult reads result.json.
func (s *FilesystemStore) LoadResult(ctx context.Context, id string) (*alignment.Result, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.readJob(id); err != nil {
		return nil, err
	}
	var result alignment.Result
	if err := readJSON(filepath.Join(s.jobDir(id), resultFile), &result); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, resultNotFound(id)
		}
		return nil, fmt.Errorf("load result: %w", err)
	}
	return &result, nil
}

// ResetStuck rolls in-flight jobs back to a resumable status.
func (s *FilesystemStore) ResetStuck(ctx context.Context) (int64, error) {
	stuck := make([]Status, 0, len(stuckRollback))
	for status := range stuckRollback {
		stuck = append(stuck, status)
	}
	list, err := s.List(ctx, stuck...)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, job := range list {
		job.Status = stuckRollback[job.Status]
		job.ProgressMessage = "Reset after interrupted run"
		if err := s.Update(ctx, job); err != nil {
			return total, err
		}
		total++
	}
	return total, nil
}

// LockJob takes the per-job file lock.
func (s *FilesystemStore) LockJob(ctx context.Context, id string) (*JobLock, error) {
	return lockJob(ensureContext(ctx), s.root, id)
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// writeJSONAtomic writes indented JSON to a temp file next to path and
// renames it into place.
func writeJSONAtomic(path string, value any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = os.Chmod(tmpPath, 0o644)
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
