package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/muhammadolammi/resumetailor/internal/database"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const processCompleteMessage = "Process complete!"

type runCounters struct {
	added, tailored, failed int32
}

func (wc *WorkerConfig) publish(runID uuid.UUID, status, message string, recordID *uuid.UUID) {
	err := wc.Publisher.PublishRunUpdate(RunUpdate{
		RunID:     runID,
		Status:    status,
		Message:   message,
		RecordID:  recordID,
		Timestamp: time.Now(),
	})
	if err != nil {
		wc.Logger.Warn("failed to publish update", zap.String("run_id", runID.String()), zap.Error(err))
	}
}

func (wc *WorkerConfig) setRunStatus(ctx context.Context, runID uuid.UUID, status, message string) {
	_, err := retry(ctx, 3, func() (any, error) {
		return nil, wc.DB.UpdateRunStatus(ctx, database.UpdateRunStatusParams{
			Status:  status,
			Message: message,
			ID:      runID,
		})
	})
	if err != nil {
		wc.Logger.Error("failed to update run status", zap.String("run_id", runID.String()), zap.String("status", status), zap.Error(err))
	}
	wc.publish(runID, status, message, nil)
}

func (wc *WorkerConfig) saveCounters(ctx context.Context, runID uuid.UUID, c runCounters) {
	err := wc.DB.UpdateRunCounters(ctx, database.UpdateRunCountersParams{
		RecordsAdded:    c.added,
		RecordsTailored: c.tailored,
		RecordsFailed:   c.failed,
		ID:              runID,
	})
	if err != nil {
		wc.Logger.Warn("failed to update run counters", zap.String("run_id", runID.String()), zap.Error(err))
	}
}

// handleRunMessage decodes one queue message and processes the run it names.
// A run cut short by shutdown is put back to queued and the returned error
// satisfies isInterrupted.
func (wc *WorkerConfig) handleRunMessage(ctx context.Context, body []byte) error {
	var msg TailorRunMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		if msg.RunID != uuid.Nil {
			wc.setRunStatus(ctx, msg.RunID, RunFailed, "invalid run message")
		}
		return fmt.Errorf("error unmarshalling message body: %w", err)
	}
	if msg.RunID == uuid.Nil {
		return errors.New("run message without run_id")
	}

	run, err := getRun(ctx, wc.DB, msg.RunID)
	if err != nil {
		return fmt.Errorf("error getting run %s: %w", msg.RunID, err)
	}
	if run.Status == RunCompleted {
		wc.Logger.Info("run already completed, skipping", zap.String("run_id", run.ID.String()))
		return nil
	}

	if err := wc.processRun(ctx, run); err != nil {
		if isInterrupted(err) {
			wc.setRunStatus(context.WithoutCancel(ctx), run.ID, RunQueued, "Interrupted, waiting for a worker")
			return err
		}
		wc.setRunStatus(context.WithoutCancel(ctx), run.ID, RunFailed, err.Error())
		return err
	}
	return nil
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// processRun loads the resume, ingests the run's jobs and tailors every new
// record. Only a missing or unreadable resume fails the whole run.
func (wc *WorkerConfig) processRun(ctx context.Context, run database.TailoringRun) error {
	log := wc.Logger.With(zap.String("run_id", run.ID.String()))
	wc.setRunStatus(ctx, run.ID, RunProcessing, "Loading resume")

	resumeBytes, err := retry(ctx, 3, func() ([]byte, error) {
		return wc.Objects.Download(ctx, run.ResumeObjectKey)
	})
	if err != nil {
		return fmt.Errorf("resume download error: %w", err)
	}
	resumeText, err := ExtractResumeText(run.ResumeMime, run.ResumeFilename, resumeBytes)
	if err != nil {
		return fmt.Errorf("resume text extraction error: %w", err)
	}

	// a redelivered run keeps its counters and does not ingest twice
	counters := runCounters{added: run.RecordsAdded, tailored: run.RecordsTailored, failed: run.RecordsFailed}
	if run.RecordsAdded == 0 {
		profiles := wc.ingestJobs(ctx, run)
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, profile := range profiles {
			record, err := addNewRecord(ctx, wc.DB, profile, uuid.NullUUID{UUID: run.ID, Valid: true})
			if err != nil {
				log.Warn("failed to add job record", zap.String("job_title", profile.JobTitle), zap.Error(err))
				continue
			}
			counters.added++
			wc.publish(run.ID, RunProcessing, "Added job: "+record.JobTitle, &record.ID)
		}
		wc.saveCounters(ctx, run.ID, counters)
	}

	records, err := wc.DB.ListJobRecordsByStatus(ctx, StatusNew)
	if err != nil {
		return fmt.Errorf("error listing new records: %w", err)
	}
	log.Info("tailoring records", zap.Int("count", len(records)))

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch wc.tailorRecord(ctx, run.ID, record, resumeText) {
		case recordTailored:
			counters.tailored++
		case recordFailed:
			counters.failed++
		case recordSkipped:
			continue
		case recordInterrupted:
			return fmt.Errorf("tailoring %s: %w", record.ID, ctx.Err())
		}
		wc.saveCounters(ctx, run.ID, counters)
	}

	wc.setRunStatus(ctx, run.ID, RunCompleted, processCompleteMessage)
	log.Info("run completed",
		zap.Int32("added", counters.added),
		zap.Int32("tailored", counters.tailored),
		zap.Int32("failed", counters.failed),
	)
	return nil
}

// ingestJobs never fails the run; a bad jobs file only means no new jobs.
func (wc *WorkerConfig) ingestJobs(ctx context.Context, run database.TailoringRun) []JobProfile {
	if run.JobSource == JobSourceNone || run.JobsObjectKey == "" {
		return nil
	}
	log := wc.Logger.With(zap.String("run_id", run.ID.String()), zap.String("job_source", run.JobSource))
	if wc.Intake == nil {
		log.Warn("no job intake configured")
		return nil
	}

	data, err := retry(ctx, 3, func() ([]byte, error) {
		return wc.Objects.Download(ctx, run.JobsObjectKey)
	})
	if err != nil {
		log.Warn("failed to download jobs file", zap.Error(err))
		return nil
	}

	switch run.JobSource {
	case JobSourceLinks:
		wc.publish(run.ID, RunProcessing, "Fetching job pages", nil)
		return wc.Intake.FromLinks(ctx, data, int(run.JobCount))
	case JobSourceSpreadsheet:
		name := run.JobsFilename
		if name == "" {
			name = filepath.Base(run.JobsObjectKey)
		}
		profiles, err := wc.Intake.FromSpreadsheet(name, data, int(run.JobCount))
		if err != nil {
			log.Warn("failed to read jobs spreadsheet", zap.Error(err))
			return nil
		}
		return profiles
	default:
		log.Warn("unknown job source")
		return nil
	}
}

type recordOutcome int

const (
	recordTailored recordOutcome = iota
	recordFailed
	// claimed by another run, or already gone
	recordSkipped
	// shutdown; the record is back to new
	recordInterrupted
)

// tailorRecord claims one new record, runs the pipeline for it and stores the
// outcome.
func (wc *WorkerConfig) tailorRecord(ctx context.Context, runID uuid.UUID, record database.JobRecord, resumeText string) recordOutcome {
	log := wc.Logger.With(zap.String("run_id", runID.String()), zap.String("record_id", record.ID.String()))

	record, err := wc.DB.ClaimJobRecord(ctx, record.ID)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("record no longer new, skipping")
		return recordSkipped
	}
	if err != nil {
		log.Warn("failed to claim record", zap.Error(err))
		return recordSkipped
	}
	wc.publish(runID, RunProcessing, "Tailoring resume for "+record.JobTitle, &record.ID)

	result, err := wc.Tailor.Tailor(ctx, resumeText, jobText(record.JobTitle, record.JobDescription))
	if err == nil {
		_, err = retry(ctx, 3, func() (any, error) {
			return nil, wc.DB.UpdateJobRecordTailoring(ctx, database.UpdateJobRecordTailoringParams{
				TailoredResume:    result.TailoredResume,
				AtsBefore:         result.Before,
				AtsAfter:          result.After,
				Changes:           result.Changes,
				ReviewFeedback:    result.Review,
				ResumeGeneratedAt: sql.NullTime{Time: time.Now(), Valid: true},
				ID:                record.ID,
			})
		})
		if err == nil {
			wc.publish(runID, RunProcessing, "Resume generated for "+record.JobTitle, &record.ID)
			return recordTailored
		}
		err = fmt.Errorf("failed to save tailored resume: %w", err)
	}

	if ctx.Err() != nil {
		log.Info("tailoring interrupted, returning record to new")
		wc.setRecordStatus(context.WithoutCancel(ctx), record.ID, StatusNew, "")
		return recordInterrupted
	}
	log.Warn("tailoring failed", zap.Error(err))
	wc.setRecordStatus(context.WithoutCancel(ctx), record.ID, StatusFailed, err.Error())
	wc.publish(runID, RunProcessing, "Failed to tailor resume for "+record.JobTitle, &record.ID)
	return recordFailed
}

func (wc *WorkerConfig) setRecordStatus(ctx context.Context, id uuid.UUID, status, message string) {
	err := wc.DB.UpdateJobRecordStatus(ctx, database.UpdateJobRecordStatusParams{
		Status: status,
		Error:  message,
		ID:     id,
	})
	if err != nil {
		wc.Logger.Error("failed to update record status", zap.String("record_id", id.String()), zap.String("status", status), zap.Error(err))
	}
}

func worker(ctx context.Context, id int, wc *WorkerConfig, wg *sync.WaitGroup) {
	defer wg.Done()
	log := wc.Logger.With(zap.Int("worker", id+1))

	conn, err := amqp.Dial(wc.RABBITMQUrl)
	if err != nil {
		log.Error("error dialling rabbitmq", zap.Error(err))
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Error("error connecting to rabbitmq channel", zap.Error(err))
		return
	}
	defer ch.Close()

	if err := declareTopology(ch); err != nil {
		log.Error("failed to declare topology", zap.Error(err))
		return
	}
	if err := ch.Qos(1, 0, false); err != nil {
		log.Error("failed to set qos", zap.Error(err))
		return
	}

	msgs, err := ch.Consume(
		runsQueue, // queue name
		"",        // consumer tag
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		log.Error("error consuming rabbitmq message", zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				return
			}
			log.Info("processing run message")
			err := wc.handleRunMessage(ctx, msg.Body)
			if err != nil && isInterrupted(err) {
				log.Info("run interrupted, requeueing", zap.Error(err))
				if err := msg.Nack(false, true); err != nil {
					log.Warn("failed to nack message", zap.Error(err))
				}
				return
			}
			if err != nil {
				log.Error("run failed", zap.Error(err))
			}
			// failures are recorded on the run, redelivery would only repeat them
			if err := msg.Ack(false); err != nil {
				log.Warn("failed to ack message", zap.Error(err))
			}
		}
	}
}

// StartConsumerWorkerPool blocks until every worker has stopped.
func (wc *WorkerConfig) StartConsumerWorkerPool(ctx context.Context, numWorkers int) {
	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for i := range numWorkers {
		wc.Logger.Info("worker started", zap.Int("worker", i+1))
		go worker(ctx, i, wc, &wg)
	}
	wg.Wait()
}
