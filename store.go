package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/muhammadolammi/resumetailor/internal/database"
	"github.com/streadway/amqp"
)

var ErrRecordNotFound = errors.New("record not found")

// RecordStore is the table-shaped backing store for job records and runs.
// *database.Queries satisfies it.
type RecordStore interface {
	CreateJobRecord(ctx context.Context, arg database.CreateJobRecordParams) (database.JobRecord, error)
	GetJobRecord(ctx context.Context, id uuid.UUID) (database.JobRecord, error)
	ListJobRecords(ctx context.Context) ([]database.JobRecord, error)
	ListJobRecordsByStatus(ctx context.Context, status string) ([]database.JobRecord, error)
	UpdateJobRecordTailoring(ctx context.Context, arg database.UpdateJobRecordTailoringParams) error
	UpdateJobRecordStatus(ctx context.Context, arg database.UpdateJobRecordStatusParams) error
	// ClaimJobRecord moves a record from new to processing and returns
	// sql.ErrNoRows when it is not new anymore.
	ClaimJobRecord(ctx context.Context, id uuid.UUID) (database.JobRecord, error)
	DeleteJobRecord(ctx context.Context, id uuid.UUID) error

	CreateRun(ctx context.Context, arg database.CreateRunParams) (database.TailoringRun, error)
	GetRun(ctx context.Context, id uuid.UUID) (database.TailoringRun, error)
	ListRuns(ctx context.Context, limit int32) ([]database.TailoringRun, error)
	UpdateRunStatus(ctx context.Context, arg database.UpdateRunStatusParams) error
	UpdateRunCounters(ctx context.Context, arg database.UpdateRunCountersParams) error
}

// formatJobTitle renders "<title> at <company> in <location>", skipping the
// empty parts.
func formatJobTitle(p JobProfile) string {
	title := strings.TrimSpace(p.JobTitle)
	if company := strings.TrimSpace(p.CompanyName); company != "" {
		title += " at " + company
	}
	if location := strings.TrimSpace(p.JobLocation); location != "" {
		title += " in " + location
	}
	return title
}

// addNewRecord stores a job profile as a fresh "new" record.
func addNewRecord(ctx context.Context, db RecordStore, profile JobProfile, runID uuid.NullUUID) (database.JobRecord, error) {
	if strings.TrimSpace(profile.JobTitle) == "" {
		return database.JobRecord{}, errors.New("job title is required")
	}
	if strings.TrimSpace(profile.JobDescription) == "" {
		return database.JobRecord{}, errors.New("job description is required")
	}
	return db.CreateJobRecord(ctx, database.CreateJobRecordParams{
		ID:             uuid.New(),
		JobTitle:       formatJobTitle(profile),
		CompanyName:    strings.TrimSpace(profile.CompanyName),
		JobLocation:    strings.TrimSpace(profile.JobLocation),
		JobSalary:      strings.TrimSpace(profile.JobSalary),
		JobUrl:         strings.TrimSpace(profile.JobURL),
		JobDescription: strings.TrimSpace(profile.JobDescription),
		RunID:          runID,
	})
}

func getRecord(ctx context.Context, db RecordStore, id uuid.UUID) (database.JobRecord, error) {
	record, err := db.GetJobRecord(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return record, ErrRecordNotFound
	}
	return record, err
}

func getRun(ctx context.Context, db RecordStore, id uuid.UUID) (database.TailoringRun, error) {
	run, err := db.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return run, ErrRecordNotFound
	}
	return run, err
}

func recordView(r database.JobRecord) JobRecordView {
	v := JobRecordView{
		RecordID:       r.ID,
		JobTitle:       r.JobTitle,
		CompanyName:    r.CompanyName,
		JobLocation:    r.JobLocation,
		JobSalary:      r.JobSalary,
		JobURL:         r.JobUrl,
		JobDescription: r.JobDescription,
		TailoredResume: r.TailoredResume,
		AtsBefore:      r.AtsBefore,
		AtsAfter:       r.AtsAfter,
		Changes:        r.Changes,
		ReviewFeedback: r.ReviewFeedback,
		Status:         r.Status,
		Error:          r.Error,
		CreatedDate:    r.CreatedAt,
	}
	if r.ResumeGeneratedAt.Valid {
		t := r.ResumeGeneratedAt.Time
		v.ResumeGeneratedDate = &t
	}
	if r.RunID.Valid {
		id := r.RunID.UUID
		v.RunID = &id
	}
	return v
}

func runView(r database.TailoringRun) RunView {
	return RunView{
		ID:              r.ID,
		Status:          r.Status,
		ResumeFilename:  r.ResumeFilename,
		JobSource:       r.JobSource,
		JobCount:        r.JobCount,
		JobsFilename:    r.JobsFilename,
		Message:         r.Message,
		RecordsAdded:    r.RecordsAdded,
		RecordsTailored: r.RecordsTailored,
		RecordsFailed:   r.RecordsFailed,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// --- Object storage ---

type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
}

type r2Store struct {
	client *s3.Client
	bucket string
}

func newR2Store(awsConfig aws.Config, r2 R2Config) *r2Store {
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r2.AccountID))
	})
	return &r2Store{client: client, bucket: r2.Bucket}
}

func (s *r2Store) Upload(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func (s *r2Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, out.Body); err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return buf.Bytes(), nil
}

func runObjectKey(runID uuid.UUID, name, ext string) string {
	return fmt.Sprintf("runs/%s/%s%s", runID, name, strings.ToLower(ext))
}

// --- Messaging ---

const (
	runsQueue         = "tailor_runs"
	runUpdateExchange = "run_updates"
)

type RunPublisher interface {
	PublishRun(ctx context.Context, msg TailorRunMessage) error
	PublishRunUpdate(update RunUpdate) error
}

type rabbitPublisher struct {
	conn *amqp.Connection
}

func declareTopology(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(
		runsQueue, // queue name
		true,      // durable (survives broker restarts)
		false,     // auto-delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.ExchangeDeclare(
		runUpdateExchange, // name
		"topic",           // kind
		true,              // durable
		false,             // auto-delete
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

func (p *rabbitPublisher) PublishRun(ctx context.Context, msg TailorRunMessage) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := declareTopology(ch); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ch.Publish(
		"",        // default exchange
		runsQueue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *rabbitPublisher) PublishRunUpdate(update RunUpdate) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}
	body, err := json.Marshal(update)
	if err != nil {
		return err
	}
	routingKey := fmt.Sprintf("run.%s", update.RunID)

	return ch.Publish(
		runUpdateExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}
