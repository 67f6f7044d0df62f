package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"slidenotes/internal/alignment"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const jobColumns = "id, title, status, progress_percent, progress_message, error_message, error_kind, segment_count, slide_count, batch_count, skipped_batches, failed_batch, created_at, updated_at"

// RelationalStore keeps jobs in SQLite.
type RelationalStore struct {
	db      *sql.DB
	path    string
	lockDir string
}

// OpenRelational opens or creates the database at path. Job locks live in lockDir.
func OpenRelational(path, lockDir string) (*RelationalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &RelationalStore{db: db, path: path, lockDir: lockDir}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *RelationalStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Location returns the database path.
func (s *RelationalStore) Location() string { return s.path }

func (s *RelationalStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *RelationalStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Create inserts a job row with its inputs.
func (s *RelationalStore) Create(ctx context.Context, job *Job, segments []alignment.Segment, slides []alignment.Slide) error {
	if err := validateNewJob(job); err != nil {
		return err
	}
	segmentsJSON, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	slidesJSON, err := json.Marshal(slides)
	if err != nil {
		return fmt.Errorf("marshal slides: %w", err)
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.SegmentCount = len(segments)
	job.SlideCount = len(slides)

	return s.execWithoutResultRetry(ctx,
		`INSERT INTO jobs (
            id, title, status, progress_percent, progress_message, error_message, error_kind,
            segment_count, slide_count, batch_count, skipped_batches, failed_batch,
            segments_json, slides_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		nullableString(job.Title),
		job.Status,
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		nullableString(job.ErrorKind),
		job.SegmentCount,
		job.SlideCount,
		job.BatchCount,
		job.SkippedBatches,
		job.FailedBatch,
		string(segmentsJSON),
		string(slidesJSON),
		job.CreatedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano),
	)
}

// Get fetches a job by id.
func (s *RelationalStore) Get(ctx context.Context, id string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs newest first.
func (s *RelationalStore) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// Update persists status and progress fields.
func (s *RelationalStore) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
         SET title = ?, status = ?, progress_percent = ?, progress_message = ?,
             error_message = ?, error_kind = ?, batch_count = ?, skipped_batches = ?,
             failed_batch = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(job.Title),
		job.Status,
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		nullableString(job.ErrorKind),
		job.BatchCount,
		job.SkippedBatches,
		job.FailedBatch,
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return jobNotFound(job.ID)
	}
	return nil
}

// Inputs returns the stored segments and slides.
func (s *RelationalStore) Inputs(ctx context.Context, id string) ([]alignment.Segment, []alignment.Slide, error) {
	ctx = ensureContext(ctx)
	var segmentsJSON, slidesJSON string
	err := s.db.QueryRowContext(ctx, `SELECT segments_json, slides_json FROM jobs WHERE id = ?`, id).
		Scan(&segmentsJSON, &slidesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, jobNotFound(id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load inputs: %w", err)
	}
	var segments []alignment.Segment
	if err := json.Unmarshal([]byte(segmentsJSON), &segments); err != nil {
		return nil, nil, fmt.Errorf("decode segments: %w", err)
	}
	var slides []alignment.Slide
	if err := json.Unmarshal([]byte(slidesJSON), &slides); err != nil {
		return nil, nil, fmt.Errorf("decode slides: %w", err)
	}
	return segments, slides, nil
}

// SaveResult replaces the stored result document.
func (s *RelationalStore) SaveResult(ctx context.Context, id string, result *alignment.Result) error {
	if result == nil {
		return errors.New("result is nil")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET result_json = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return jobNotFound(id)
	}
	return nil
}

// LoadResult returns the stored result document.
func (s *RelationalStore) LoadResult(ctx context.Context, id string) (*alignment.Result, error) {
	ctx = ensureContext(ctx)
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM jobs WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, resultNotFound(id)
	}
	var result alignment.Result
	if err := json.Unmarshal([]byte(raw.String), &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}

// ResetStuck rolls in-flight jobs back to a resumable status.
func (s *RelationalStore) ResetStuck(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var total int64
	for _, from := range allStatuses {
		to, ok := stuckRollback[from]
		if !ok {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, progress_message = ?, updated_at = ? WHERE status = ?`,
			to, "Reset after interrupted run", now, from,
		)
		if err != nil {
			return 0, fmt.Errorf("reset %s jobs: %w", from, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reset: %w", err)
	}
	return total, nil
}

// LockJob takes the per-job file lock.
func (s *RelationalStore) LockJob(ctx context.Context, id string) (*JobLock, error) {
	return lockJob(ensureContext(ctx), s.lockDir, id)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *RelationalStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *RelationalStore) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job             Job
		title           sql.NullString
		statusStr       string
		progressMessage sql.NullString
		errorMessage    sql.NullString
		errorKind       sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(
		&job.ID,
		&title,
		&statusStr,
		&job.ProgressPercent,
		&progressMessage,
		&errorMessage,
		&errorKind,
		&job.SegmentCount,
		&job.SlideCount,
		&job.BatchCount,
		&job.SkippedBatches,
		&job.FailedBatch,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Title = title.String
	job.Status = Status(statusStr)
	job.ProgressMessage = progressMessage.String
	job.ErrorMessage = errorMessage.String
	job.ErrorKind = errorKind.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
