package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// JobRecord is the persisted state of one processing job.
type JobRecord struct {
	JobID         string    `json:"job_id"`
	RequestName   string    `json:"request_name"`
	SourceType    string    `json:"source_type"`
	SessionID     string    `json:"session_id"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	LocalPath     string    `json:"local_path,omitempty"`
	HierarchyPath string    `json:"hierarchy_path,omitempty"`
	GDriveURL     string    `json:"gdrive_url,omitempty"`
	Duration      float64   `json:"duration"`
	WordCount     int       `json:"word_count"`
	SpeakerCount  int       `json:"speaker_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id TEXT PRIMARY KEY,
	request_name TEXT NOT NULL,
	source_type TEXT NOT NULL,
	session_id TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	local_path TEXT NOT NULL DEFAULT '',
	hierarchy_path TEXT NOT NULL DEFAULT '',
	gdrive_url TEXT NOT NULL DEFAULT '',
	duration REAL NOT NULL DEFAULT 0,
	word_count INTEGER NOT NULL DEFAULT 0,
	speaker_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_request_name ON jobs(request_name);

CREATE TABLE IF NOT EXISTS unknown_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	file TEXT NOT NULL,
	start_sec REAL NOT NULL,
	end_sec REAL NOT NULL,
	embedding TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_unknown_session ON unknown_samples(session_id);
`

// NewMetadataDB opens (or creates) the database at dbPath.
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; workers share this handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// CreateJob inserts a new job row.
func (mdb *MetadataDB) CreateJob(ctx context.Context, rec JobRecord) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	_, err := mdb.db.ExecContext(ctx, `
	INSERT INTO jobs (job_id, request_name, source_type, session_id, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID, rec.RequestName, rec.SourceType, rec.SessionID, rec.Status, rec.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", rec.JobID, err)
	}
	return nil
}

// UpdateJobStatus records a status transition and its error message, if any.
func (mdb *MetadataDB) UpdateJobStatus(ctx context.Context, jobID, status, errMsg string) error {
	res, err := mdb.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE job_id = ?`,
		status, errMsg, time.Now(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	return expectRow(res, jobID)
}

// CompleteJob stores the outputs of a finished job.
func (mdb *MetadataDB) CompleteJob(ctx context.Context, rec JobRecord) error {
	res, err := mdb.db.ExecContext(ctx, `
	UPDATE jobs SET status = ?, error = '', local_path = ?, hierarchy_path = ?, gdrive_url = ?,
		duration = ?, word_count = ?, speaker_count = ?, updated_at = ?
	WHERE job_id = ?`,
		rec.Status, rec.LocalPath, rec.HierarchyPath, rec.GDriveURL,
		rec.Duration, rec.WordCount, rec.SpeakerCount, time.Now(), rec.JobID)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", rec.JobID, err)
	}
	return expectRow(res, rec.JobID)
}

const jobColumns = `job_id, request_name, source_type, session_id, status, error, local_path,
	hierarchy_path, gdrive_url, duration, word_count, speaker_count, created_at, updated_at`

// GetJob retrieves a job by ID.
func (mdb *MetadataDB) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	row := mdb.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return rec, nil
}

// ListJobs returns the most recent jobs first.
func (mdb *MetadataDB) ListJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	rows, err := mdb.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []JobRecord{}
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *rec)
	}
	return jobs, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*JobRecord, error) {
	var rec JobRecord
	err := s.Scan(&rec.JobID, &rec.RequestName, &rec.SourceType, &rec.SessionID, &rec.Status,
		&rec.Error, &rec.LocalPath, &rec.HierarchyPath, &rec.GDriveURL,
		&rec.Duration, &rec.WordCount, &rec.SpeakerCount, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func expectRow(res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}
