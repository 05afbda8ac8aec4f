package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"go-insight-pipeline/internal/model"
)

// ErrNotFound is returned (wrapped) when a row does not exist. Check it with
// eris.Is.
var ErrNotFound = eris.New("store: not found")

// Store is the sqlite persistence layer for jobs, their snapshot arena,
// operation history, error log, cached results, uploaded blobs and
// enrichment quotas.
type Store struct {
	db           *sql.DB
	defaultQuota int
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultQuota sets the enrichment quota granted to users seen for the
// first time. Negative means unlimited.
func WithDefaultQuota(n int) Option {
	return func(s *Store) { s.defaultQuota = n }
}

// Open opens (or creates) the sqlite database at path and configures WAL mode.
// Call Migrate before first use.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &Store{db: db, defaultQuota: -1}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL DEFAULT '',
	source_path TEXT NOT NULL,
	cache_key   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	data_stack  TEXT NOT NULL DEFAULT '[]',
	summary     TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS job_errors (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id        TEXT NOT NULL,
	attempt       INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	job_id     TEXT NOT NULL,
	version    INTEGER NOT NULL,
	dataset    TEXT NOT NULL,
	duplicates INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (job_id, version)
);

CREATE TABLE IF NOT EXISTS operation_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id     TEXT NOT NULL,
	action     TEXT NOT NULL,
	reason     TEXT NOT NULL,
	details    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS cache_records (
	key        TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS blobs (
	path       TEXT PRIMARY KEY,
	content    BLOB NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS entitlements (
	user_id   TEXT PRIMARY KEY,
	remaining INTEGER NOT NULL,
	used      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_job_errors_job_id ON job_errors(job_id);
CREATE INDEX IF NOT EXISTS idx_operation_log_job_id ON operation_log(job_id);
`

// Migrate creates tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ------------------- Jobs -------------------

// SaveJob inserts or fully replaces a job row.
func (s *Store) SaveJob(ctx context.Context, job model.Job) error {
	stackJSON, err := json.Marshal(nonNilInts(job.DataStack))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal data stack")
	}
	var summaryJSON sql.NullString
	if job.Summary != nil {
		b, err := json.Marshal(job.Summary)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal summary")
		}
		summaryJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, user_id, source_path, cache_key, status, data_stack, summary, retry_count, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			cache_key = excluded.cache_key,
			data_stack = excluded.data_stack,
			summary = excluded.summary,
			retry_count = excluded.retry_count,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		job.ID, job.UserID, job.SourcePath, job.CacheKey, string(job.Status), string(stackJSON),
		summaryJSON, job.RetryCount, job.Error, job.CreatedAt.UTC(), job.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save job %s", job.ID)
}

// GetJob returns a job by id, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, source_path, cache_key, status, data_stack, summary, retry_count, error, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: job %s", id)
	}
	return job, err
}

// ListJobs returns jobs newest first. A non-positive limit returns all.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, source_path, cache_key, status, data_stack, summary, retry_count, error, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.Job, error) {
	var (
		j           model.Job
		status      string
		stackJSON   string
		summaryJSON sql.NullString
	)
	err := row.Scan(&j.ID, &j.UserID, &j.SourcePath, &j.CacheKey, &status, &stackJSON,
		&summaryJSON, &j.RetryCount, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	j.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(stackJSON), &j.DataStack); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal data stack")
	}
	if summaryJSON.Valid {
		j.Summary = &model.DataSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), j.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &j, nil
}

// ------------------- Job errors -------------------

// JobError is one failed attempt recorded against a job.
type JobError struct {
	JobID     string    `json:"jobId"`
	Attempt   int       `json:"attempt"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// SaveJobError records an error for a job. A nil error is ignored.
func (s *Store) SaveJobError(ctx context.Context, jobID string, attempt int, err error) error {
	if err == nil {
		return nil
	}
	_, e := s.db.ExecContext(ctx,
		`INSERT INTO job_errors (job_id, attempt, error_message, created_at) VALUES (?, ?, ?, ?)`,
		jobID, attempt, err.Error(), time.Now().UTC())
	return eris.Wrapf(e, "sqlite: save job error %s", jobID)
}

// GetJobErrors returns a job's errors oldest first.
func (s *Store) GetJobErrors(ctx context.Context, jobID string) ([]JobError, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, attempt, error_message, created_at FROM job_errors WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get job errors")
	}
	defer rows.Close()

	out := make([]JobError, 0)
	for rows.Next() {
		var e JobError
		if err := rows.Scan(&e.JobID, &e.Attempt, &e.Message, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job error")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate job errors")
}

// ------------------- Snapshots -------------------

// SaveSnapshot persists one dataset version of a job. Saving an existing
// version replaces it: after a restart, versions above the job's stack top
// were undone and get reused.
func (s *Store) SaveSnapshot(ctx context.Context, jobID string, snap model.Snapshot) error {
	b, err := json.Marshal(snap.Dataset)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (job_id, version, dataset, duplicates, created_at) VALUES (?, ?, ?, ?, ?)`,
		jobID, snap.Version, string(b), snap.DuplicateCount, time.Now().UTC())
	return eris.Wrapf(err, "sqlite: save snapshot %s@%d", jobID, snap.Version)
}

// GetSnapshot loads one dataset version, or ErrNotFound.
func (s *Store) GetSnapshot(ctx context.Context, jobID string, version int) (*model.Snapshot, error) {
	var raw string
	snap := model.Snapshot{Version: version}
	err := s.db.QueryRowContext(ctx,
		`SELECT dataset, duplicates FROM snapshots WHERE job_id = ? AND version = ?`, jobID, version).
		Scan(&raw, &snap.DuplicateCount)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: snapshot %s@%d", jobID, version)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get snapshot")
	}
	if err := json.Unmarshal([]byte(raw), &snap.Dataset); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	return &snap, nil
}

// ------------------- Operation log -------------------

// AppendOperations appends audit entries for a job. Entries are never updated.
func (s *Store) AppendOperations(ctx context.Context, jobID string, ops ...model.OperationLog) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append operations")
	}
	defer tx.Rollback()

	for _, op := range ops {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO operation_log (job_id, action, reason, details, created_at) VALUES (?, ?, ?, ?, ?)`,
			jobID, op.Action, op.Reason, op.Details, op.Timestamp.UTC()); err != nil {
			return eris.Wrap(err, "sqlite: insert operation")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit append operations")
}

// GetOperations returns a job's history in append order.
func (s *Store) GetOperations(ctx context.Context, jobID string) ([]model.OperationLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, reason, details, created_at FROM operation_log WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get operations")
	}
	defer rows.Close()

	out := make([]model.OperationLog, 0)
	for rows.Next() {
		var op model.OperationLog
		if err := rows.Scan(&op.Action, &op.Reason, &op.Details, &op.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan operation")
		}
		out = append(out, op)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate operations")
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
