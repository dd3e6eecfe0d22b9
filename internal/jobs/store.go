// Package jobs persists translation jobs and runs the pipeline on their
// behalf, moving each job through its lifecycle.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"doc-translator/internal/types"
)

// ErrNotFound is returned when no job matches the key.
var ErrNotFound = errors.New("job not found")

// JobStore persists TranslationJobs keyed by (orderId, fileName).
type JobStore interface {
	Save(ctx context.Context, job *types.TranslationJob) error
	Get(ctx context.Context, orderID, fileName string) (*types.TranslationJob, error)
	ListByOrder(ctx context.Context, orderID string) ([]*types.TranslationJob, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS translation_jobs (
	order_id        TEXT NOT NULL,
	file_name       TEXT NOT NULL,
	file_index      INTEGER NOT NULL DEFAULT 0,
	provider        TEXT NOT NULL DEFAULT '',
	domain          TEXT NOT NULL DEFAULT '',
	model           TEXT NOT NULL DEFAULT '',
	ocr_quality     TEXT NOT NULL DEFAULT '',
	source_language TEXT NOT NULL DEFAULT '',
	target_language TEXT NOT NULL DEFAULT '',
	segments        TEXT NOT NULL DEFAULT '[]',
	status          TEXT NOT NULL,
	progress        INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT NOT NULL DEFAULT '',
	error_category  TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	PRIMARY KEY (order_id, file_name)
)`

const upsertJob = `
INSERT INTO translation_jobs (
	order_id, file_name, file_index, provider, domain, model, ocr_quality,
	source_language, target_language, segments, status, progress,
	last_error, error_category, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (order_id, file_name) DO UPDATE SET
	file_index = excluded.file_index,
	provider = excluded.provider,
	domain = excluded.domain,
	model = excluded.model,
	ocr_quality = excluded.ocr_quality,
	source_language = excluded.source_language,
	target_language = excluded.target_language,
	segments = excluded.segments,
	status = excluded.status,
	progress = excluded.progress,
	last_error = excluded.last_error,
	error_category = excluded.error_category,
	updated_at = excluded.updated_at`

const selectJob = `
SELECT order_id, file_name, file_index, provider, domain, model, ocr_quality,
	source_language, target_language, segments, status, progress,
	last_error, error_category, created_at, updated_at
FROM translation_jobs`

// SQLiteStore is a JobStore backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path. ":memory:" gives a
// private in-memory store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection serialises writers and keeps an in-memory database alive
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save creates or updates job.
func (s *SQLiteStore) Save(ctx context.Context, job *types.TranslationJob) error {
	if job.OrderID == "" || job.FileName == "" {
		return types.NewAppError(types.ErrInvalidInput, "orderId and fileName are required", nil)
	}
	segments := job.Segments
	if segments == nil {
		segments = []types.Segment{}
	}
	segJSON, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}

	_, err = s.db.ExecContext(ctx, upsertJob,
		job.OrderID, job.FileName, job.FileIndex, string(job.Provider), string(job.Domain), job.Model,
		string(job.OCRQuality), job.SourceLanguage, job.TargetLanguage, string(segJSON),
		string(job.Status), job.Progress, job.LastError, string(job.ErrorCategory),
		job.CreatedAt.Format(time.RFC3339Nano), job.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save job %s/%s: %w", job.OrderID, job.FileName, err)
	}
	return nil
}

// Get returns the job for (orderID, fileName) or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, orderID, fileName string) (*types.TranslationJob, error) {
	row := s.db.QueryRowContext(ctx, selectJob+` WHERE order_id = ? AND file_name = ?`, orderID, fileName)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// ListByOrder returns every job of an order sorted by file index.
func (s *SQLiteStore) ListByOrder(ctx context.Context, orderID string) ([]*types.TranslationJob, error) {
	rows, err := s.db.QueryContext(ctx, selectJob+` WHERE order_id = ? ORDER BY file_index, file_name`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*types.TranslationJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*types.TranslationJob, error) {
	var (
		job                       types.TranslationJob
		provider, domain, quality string
		segJSON, status, category string
		createdAt, updatedAt      string
	)
	err := sc.Scan(&job.OrderID, &job.FileName, &job.FileIndex, &provider, &domain, &job.Model, &quality,
		&job.SourceLanguage, &job.TargetLanguage, &segJSON, &status, &job.Progress,
		&job.LastError, &category, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.Provider = types.ProviderKind(provider)
	job.Domain = types.Domain(domain)
	job.OCRQuality = types.OCRQuality(quality)
	job.Status = types.JobStatus(status)
	job.ErrorCategory = types.Category(category)
	if err := json.Unmarshal([]byte(segJSON), &job.Segments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &job, nil
}
