package main

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// record statuses
const (
	StatusNew             = "new"
	StatusProcessing      = "processing"
	StatusResumeGenerated = "resume_generated"
	StatusFailed          = "failed"
)

// run statuses
const (
	RunQueued     = "queued"
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// job sources for a run
const (
	JobSourceNone        = "none"
	JobSourceLinks       = "links"
	JobSourceSpreadsheet = "spreadsheet"
)

type R2Config struct {
	AccountID string
	Bucket    string
	AccessKey string
	SecretKey string
}

type WorkerConfig struct {
	DB          RecordStore
	Objects     ObjectStore
	Publisher   RunPublisher
	Tailor      Tailorer
	Intake      *JobIntake
	RABBITMQUrl string
	Logger      *zap.Logger
}

// JobProfile is one job posting, as scraped, imported or typed in.
type JobProfile struct {
	JobTitle       string `json:"job_title"`
	CompanyName    string `json:"company_name"`
	JobLocation    string `json:"job_location"`
	JobSalary      string `json:"job_salary,omitempty"`
	JobDescription string `json:"job_description"`
	JobURL         string `json:"job_url,omitempty"`
}

// TailoredResume is the structured output of the tailoring pipeline.
type TailoredResume struct {
	Before         float64 `json:"Before"`
	After          float64 `json:"After"`
	Changes        string  `json:"Changes"`
	TailoredResume string  `json:"TailoredResume"`
	Review         string  `json:"Review,omitempty"`
}

type TailorRunMessage struct {
	RunID uuid.UUID `json:"run_id"`
}

type RunUpdate struct {
	RunID     uuid.UUID  `json:"run_id"`
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	RecordID  *uuid.UUID `json:"record_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// JobRecordView is the JSON shape of a job record on the dashboard API.
type JobRecordView struct {
	RecordID            uuid.UUID  `json:"record_id"`
	JobTitle            string     `json:"job_title"`
	CompanyName         string     `json:"company_name"`
	JobLocation         string     `json:"job_location"`
	JobSalary           string     `json:"job_salary,omitempty"`
	JobURL              string     `json:"job_url,omitempty"`
	JobDescription      string     `json:"job_description"`
	TailoredResume      string     `json:"tailored_resume"`
	AtsBefore           float64    `json:"ats_before"`
	AtsAfter            float64    `json:"ats_after"`
	Changes             string     `json:"changes"`
	ReviewFeedback      string     `json:"review_feedback,omitempty"`
	Status              string     `json:"status"`
	Error               string     `json:"error,omitempty"`
	CreatedDate         time.Time  `json:"created_date"`
	ResumeGeneratedDate *time.Time `json:"resume_generated_date,omitempty"`
	RunID               *uuid.UUID `json:"run_id,omitempty"`
}

type RunView struct {
	ID              uuid.UUID `json:"id"`
	Status          string    `json:"status"`
	ResumeFilename  string    `json:"resume_filename"`
	JobSource       string    `json:"job_source"`
	JobCount        int32     `json:"job_count"`
	JobsFilename    string    `json:"jobs_filename,omitempty"`
	Message         string    `json:"message"`
	RecordsAdded    int32     `json:"records_added"`
	RecordsTailored int32     `json:"records_tailored"`
	RecordsFailed   int32     `json:"records_failed"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
