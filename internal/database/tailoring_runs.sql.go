package database

import (
	"context"

	"github.com/google/uuid"
)

const createRun = `-- name: CreateRun :one
INSERT INTO tailoring_runs (
id, status, resume_object_key, resume_filename, resume_mime, job_source, job_count, jobs_object_key, jobs_filename)
VALUES ($1, 'queued', $2, $3, $4, $5, $6, $7, $8)
RETURNING id, status, resume_object_key, resume_filename, resume_mime, job_source, job_count, jobs_object_key, jobs_filename, message, records_added, records_tailored, records_failed, created_at, updated_at
`

type CreateRunParams struct {
	ID              uuid.UUID
	ResumeObjectKey string
	ResumeFilename  string
	ResumeMime      string
	JobSource       string
	JobCount        int32
	JobsObjectKey   string
	JobsFilename    string
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (TailoringRun, error) {
	row := q.db.QueryRowContext(ctx, createRun,
		arg.ID,
		arg.ResumeObjectKey,
		arg.ResumeFilename,
		arg.ResumeMime,
		arg.JobSource,
		arg.JobCount,
		arg.JobsObjectKey,
		arg.JobsFilename,
	)
	var i TailoringRun
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.ResumeObjectKey,
		&i.ResumeFilename,
		&i.ResumeMime,
		&i.JobSource,
		&i.JobCount,
		&i.JobsObjectKey,
		&i.JobsFilename,
		&i.Message,
		&i.RecordsAdded,
		&i.RecordsTailored,
		&i.RecordsFailed,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getRun = `-- name: GetRun :one
SELECT id, status, resume_object_key, resume_filename, resume_mime, job_source, job_count, jobs_object_key, jobs_filename, message, records_added, records_tailored, records_failed, created_at, updated_at FROM tailoring_runs WHERE id=$1
`

func (q *Queries) GetRun(ctx context.Context, id uuid.UUID) (TailoringRun, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var i TailoringRun
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.ResumeObjectKey,
		&i.ResumeFilename,
		&i.ResumeMime,
		&i.JobSource,
		&i.JobCount,
		&i.JobsObjectKey,
		&i.JobsFilename,
		&i.Message,
		&i.RecordsAdded,
		&i.RecordsTailored,
		&i.RecordsFailed,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listRuns = `-- name: ListRuns :many
SELECT id, status, resume_object_key, resume_filename, resume_mime, job_source, job_count, jobs_object_key, jobs_filename, message, records_added, records_tailored, records_failed, created_at, updated_at FROM tailoring_runs
ORDER BY created_at DESC
LIMIT $1
`

func (q *Queries) ListRuns(ctx context.Context, limit int32) ([]TailoringRun, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TailoringRun
	for rows.Next() {
		var i TailoringRun
		if err := rows.Scan(
			&i.ID,
			&i.Status,
			&i.ResumeObjectKey,
			&i.ResumeFilename,
			&i.ResumeMime,
			&i.JobSource,
			&i.JobCount,
			&i.JobsObjectKey,
			&i.JobsFilename,
			&i.Message,
			&i.RecordsAdded,
			&i.RecordsTailored,
			&i.RecordsFailed,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateRunStatus = `-- name: UpdateRunStatus :exec
UPDATE tailoring_runs
SET status=$1, message=$2, updated_at=CURRENT_TIMESTAMP
WHERE id=$3
`

type UpdateRunStatusParams struct {
	Status  string
	Message string
	ID      uuid.UUID
}

func (q *Queries) UpdateRunStatus(ctx context.Context, arg UpdateRunStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateRunStatus, arg.Status, arg.Message, arg.ID)
	return err
}

const updateRunCounters = `-- name: UpdateRunCounters :exec
UPDATE tailoring_runs
SET records_added=$1, records_tailored=$2, records_failed=$3, updated_at=CURRENT_TIMESTAMP
WHERE id=$4
`

type UpdateRunCountersParams struct {
	RecordsAdded    int32
	RecordsTailored int32
	RecordsFailed   int32
	ID              uuid.UUID
}

func (q *Queries) UpdateRunCounters(ctx context.Context, arg UpdateRunCountersParams) error {
	_, err := q.db.ExecContext(ctx, updateRunCounters,
		arg.RecordsAdded,
		arg.RecordsTailored,
		arg.RecordsFailed,
		arg.ID,
	)
	return err
}
