package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const createJobRecord = `-- name: CreateJobRecord :one
INSERT INTO job_records (
id, job_title, company_name, job_location, job_salary, job_url, job_description, status, run_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'new', $8)
RETURNING id, job_title, company_name, job_location, job_salary, job_url, job_description, tailored_resume, ats_before, ats_after, changes, review_feedback, status, error, created_at, resume_generated_at, run_id
`

type CreateJobRecordParams struct {
	ID             uuid.UUID
	JobTitle       string
	CompanyName    string
	JobLocation    string
	JobSalary      string
	JobUrl         string
	JobDescription string
	RunID          uuid.NullUUID
}

func (q *Queries) CreateJobRecord(ctx context.Context, arg CreateJobRecordParams) (JobRecord, error) {
	row := q.db.QueryRowContext(ctx, createJobRecord,
		arg.ID,
		arg.JobTitle,
		arg.CompanyName,
		arg.JobLocation,
		arg.JobSalary,
		arg.JobUrl,
		arg.JobDescription,
		arg.RunID,
	)
	var i JobRecord
	err := row.Scan(
		&i.ID,
		&i.JobTitle,
		&i.CompanyName,
		&i.JobLocation,
		&i.JobSalary,
		&i.JobUrl,
		&i.JobDescription,
		&i.TailoredResume,
		&i.AtsBefore,
		&i.AtsAfter,
		&i.Changes,
		&i.ReviewFeedback,
		&i.Status,
		&i.Error,
		&i.CreatedAt,
		&i.ResumeGeneratedAt,
		&i.RunID,
	)
	return i, err
}

const getJobRecord = `-- name: GetJobRecord :one
SELECT id, job_title, company_name, job_location, job_salary, job_url, job_description, tailored_resume, ats_before, ats_after, changes, review_feedback, status, error, created_at, resume_generated_at, run_id FROM job_records WHERE id=$1
`

func (q *Queries) GetJobRecord(ctx context.Context, id uuid.UUID) (JobRecord, error) {
	row := q.db.QueryRowContext(ctx, getJobRecord, id)
	var i JobRecord
	err := row.Scan(
		&i.ID,
		&i.JobTitle,
		&i.CompanyName,
		&i.JobLocation,
		&i.JobSalary,
		&i.JobUrl,
		&i.JobDescription,
		&i.TailoredResume,
		&i.AtsBefore,
		&i.AtsAfter,
		&i.Changes,
		&i.ReviewFeedback,
		&i.Status,
		&i.Error,
		&i.CreatedAt,
		&i.ResumeGeneratedAt,
		&i.RunID,
	)
	return i, err
}

const listJobRecords = `-- name: ListJobRecords :many
SELECT id, job_title, company_name, job_location, job_salary, job_url, job_description, tailored_resume, ats_before, ats_after, changes, review_feedback, status, error, created_at, resume_generated_at, run_id FROM job_records
ORDER BY created_at DESC
`

func (q *Queries) ListJobRecords(ctx context.Context) ([]JobRecord, error) {
	rows, err := q.db.QueryContext(ctx, listJobRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []JobRecord
	for rows.Next() {
		var i JobRecord
		if err := rows.Scan(
			&i.ID,
			&i.JobTitle,
			&i.CompanyName,
			&i.JobLocation,
			&i.JobSalary,
			&i.JobUrl,
			&i.JobDescription,
			&i.TailoredResume,
			&i.AtsBefore,
			&i.AtsAfter,
			&i.Changes,
			&i.ReviewFeedback,
			&i.Status,
			&i.Error,
			&i.CreatedAt,
			&i.ResumeGeneratedAt,
			&i.RunID,
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

const listJobRecordsByStatus = `-- name: ListJobRecordsByStatus :many
SELECT id, job_title, company_name, job_location, job_salary, job_url, job_description, tailored_resume, ats_before, ats_after, changes, review_feedback, status, error, created_at, resume_generated_at, run_id FROM job_records
WHERE status=$1
ORDER BY created_at ASC
`

func (q *Queries) ListJobRecordsByStatus(ctx context.Context, status string) ([]JobRecord, error) {
	rows, err := q.db.QueryContext(ctx, listJobRecordsByStatus, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []JobRecord
	for rows.Next() {
		var i JobRecord
		if err := rows.Scan(
			&i.ID,
			&i.JobTitle,
			&i.CompanyName,
			&i.JobLocation,
			&i.JobSalary,
			&i.JobUrl,
			&i.JobDescription,
			&i.TailoredResume,
			&i.AtsBefore,
			&i.AtsAfter,
			&i.Changes,
			&i.ReviewFeedback,
			&i.Status,
			&i.Error,
			&i.CreatedAt,
			&i.ResumeGeneratedAt,
			&i.RunID,
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

const updateJobRecordTailoring = `-- name: UpdateJobRecordTailoring :exec
UPDATE job_records
SET tailored_resume=$1,
    ats_before=$2,
    ats_after=$3,
    changes=$4,
    review_feedback=$5,
    status='resume_generated',
    error='',
    resume_generated_at=$6
WHERE id=$7
`

type UpdateJobRecordTailoringParams struct {
	TailoredResume    string
	AtsBefore         float64
	AtsAfter          float64
	Changes           string
	ReviewFeedback    string
	ResumeGeneratedAt sql.NullTime
	ID                uuid.UUID
}

func (q *Queries) UpdateJobRecordTailoring(ctx context.Context, arg UpdateJobRecordTailoringParams) error {
	_, err := q.db.ExecContext(ctx, updateJobRecordTailoring,
		arg.TailoredResume,
		arg.AtsBefore,
		arg.AtsAfter,
		arg.Changes,
		arg.ReviewFeedback,
		arg.ResumeGeneratedAt,
		arg.ID,
	)
	return err
}

const updateJobRecordStatus = `-- name: UpdateJobRecordStatus :exec
UPDATE job_records
SET status=$1, error=$2
WHERE id=$3
`

type UpdateJobRecordStatusParams struct {
	Status string
	Error  string
	ID     uuid.UUID
}

func (q *Queries) UpdateJobRecordStatus(ctx context.Context, arg UpdateJobRecordStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateJobRecordStatus, arg.Status, arg.Error, arg.ID)
	return err
}

const claimJobRecord = `-- name: ClaimJobRecord :one
UPDATE job_records
SET status='processing', error=''
WHERE id=$1 AND status='new'
RETURNING id, job_title, company_name, job_location, job_salary, job_url, job_description, tailored_resume, ats_before, ats_after, changes, review_feedback, status, error, created_at, resume_generated_at, run_id
`

func (q *Queries) ClaimJobRecord(ctx context.Context, id uuid.UUID) (JobRecord, error) {
	row := q.db.QueryRowContext(ctx, claimJobRecord, id)
	var i JobRecord
	err := row.Scan(
		&i.ID,
		&i.JobTitle,
		&i.CompanyName,
		&i.JobLocation,
		&i.JobSalary,
		&i.JobUrl,
		&i.JobDescription,
		&i.TailoredResume,
		&i.AtsBefore,
		&i.AtsAfter,
		&i.Changes,
		&i.ReviewFeedback,
		&i.Status,
		&i.Error,
		&i.CreatedAt,
		&i.ResumeGeneratedAt,
		&i.RunID,
	)
	return i, err
}

const deleteJobRecord = `-- name: DeleteJobRecord :exec
DELETE FROM job_records WHERE id=$1
`

func (q *Queries) DeleteJobRecord(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteJobRecord, id)
	return err
}
