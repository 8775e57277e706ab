package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/sheetsync/internal/model"
)

// Jobs is the durable retry queue backed by the retry_jobs table.
type Jobs struct {
	s   *Store
	now func() time.Time
}

// Jobs returns the store's durable queue. now stamps updates; nil uses
// time.Now.
func (s *Store) Jobs(now func() time.Time) *Jobs {
	if now == nil {
		now = time.Now
	}
	return &Jobs{s: s, now: now}
}

// Enqueue stores a pending job.
func (j *Jobs) Enqueue(ctx context.Context, job model.RetryJob) error {
	ids, err := marshalIDs(job.RecordIDs)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	tags, err := marshalTags(job.Tags)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	created := job.CreatedAt
	if created.IsZero() {
		created = j.now()
	}
	_, err = j.s.exec(ctx, j.s.db, `
		INSERT INTO retry_jobs
		(id, model_class, record_ids, attempt, tags, ready_at, status, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
	`,
		job.ID,
		job.RecordType,
		ids,
		job.Attempt,
		tags,
		formatTime(job.ReadyAt),
		string(model.JobPending),
		formatTime(created),
		formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Claim marks up to limit due jobs running and returns them, oldest
// ready time first.
func (j *Jobs) Claim(ctx context.Context, now time.Time, limit int) ([]model.RetryJob, error) {
	tx, err := j.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	rows, err := j.s.query(ctx, tx, `
		SELECT `+jobColumns+`
		FROM retry_jobs
		WHERE status = ? AND ready_at <= ?
		ORDER BY ready_at ASC, id ASC
		LIMIT ?
	`, string(model.JobPending), formatTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	var jobs []model.RetryJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, job)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim jobs: iterate: %w", err)
	}

	claimed := jobs[:0]
	for _, job := range jobs {
		res, err := j.s.exec(ctx, tx, `
			UPDATE retry_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?
		`, string(model.JobRunning), formatTime(now), job.ID, string(model.JobPending))
		if err != nil {
			return nil, fmt.Errorf("claim job %s: %w", job.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			job.Status = model.JobRunning
			claimed = append(claimed, job)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim jobs: commit: %w", err)
	}
	return claimed, nil
}

// Ack marks a claimed job done.
func (j *Jobs) Ack(ctx context.Context, id string) error {
	return j.finish(ctx, id, model.JobDone, "")
}

// Nack marks a claimed job failed with reason. The retry itself records a
// failed run, which schedules the next attempt if any remain.
func (j *Jobs) Nack(ctx context.Context, id string, reason string) error {
	return j.finish(ctx, id, model.JobFailed, reason)
}

func (j *Jobs) finish(ctx context.Context, id string, status model.JobStatus, reason string) error {
	res, err := j.s.exec(ctx, j.s.db, `
		UPDATE retry_jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ? AND status = ?
	`, string(status), nullString(reason), formatTime(j.now()), id, string(model.JobRunning))
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finish job %s: %w", id, ErrNotFound)
	}
	return nil
}

// List returns the jobs of a record type, newest first. An empty recordType
// lists every job.
func (j *Jobs) List(ctx context.Context, recordType string) ([]model.RetryJob, error) {
	rows, err := j.s.query(ctx, j.s.db, `
		SELECT `+jobColumns+`
		FROM retry_jobs
		WHERE ? = '' OR model_class = ?
		ORDER BY created_at DESC, id DESC
	`, recordType, recordType)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []model.RetryJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: iterate: %w", err)
	}
	return jobs, nil
}

const jobColumns = `id, model_class, record_ids, attempt, tags, ready_at, status, last_error, created_at`

func scanJob(row rowScanner) (model.RetryJob, error) {
	var job model.RetryJob
	var ids, tags, readyAt, status, createdAt string
	var lastErr sql.NullString
	if err := row.Scan(&job.ID, &job.RecordType, &ids, &job.Attempt, &tags, &readyAt, &status, &lastErr, &createdAt); err != nil {
		return model.RetryJob{}, fmt.Errorf("scan job: %w", err)
	}
	var err error
	if job.RecordIDs, err = unmarshalIDs(ids); err != nil {
		return model.RetryJob{}, err
	}
	if job.Tags, err = unmarshalTags(tags); err != nil {
		return model.RetryJob{}, err
	}
	if job.ReadyAt, err = parseTime(readyAt); err != nil {
		return model.RetryJob{}, err
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.RetryJob{}, err
	}
	job.Status = model.JobStatus(status)
	job.LastError = lastErr.String
	return job, nil
}
