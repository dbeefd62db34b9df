package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/muhammadolammi/resumetailor/internal/database"
)

// memStore is an in-memory RecordStore.
type memStore struct {
	mu      sync.Mutex
	clock   time.Time
	records map[uuid.UUID]database.JobRecord
	runs    map[uuid.UUID]database.TailoringRun
}

func newMemStore() *memStore {
	return &memStore{
		clock:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		records: map[uuid.UUID]database.JobRecord{},
		runs:    map[uuid.UUID]database.TailoringRun{},
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) CreateJobRecord(_ context.Context, arg database.CreateJobRecordParams) (database.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := database.JobRecord{
		ID:             arg.ID,
		JobTitle:       arg.JobTitle,
		CompanyName:    arg.CompanyName,
		JobLocation:    arg.JobLocation,
		JobSalary:      arg.JobSalary,
		JobUrl:         arg.JobUrl,
		JobDescription: arg.JobDescription,
		Status:         StatusNew,
		CreatedAt:      m.tick(),
		RunID:          arg.RunID,
	}
	m.records[r.ID] = r
	return r, nil
}

func (m *memStore) GetJobRecord(_ context.Context, id uuid.UUID) (database.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return r, sql.ErrNoRows
	}
	return r, nil
}

func (m *memStore) sorted(desc bool, keep func(database.JobRecord) bool) []database.JobRecord {
	var out []database.JobRecord
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *memStore) ListJobRecords(context.Context) ([]database.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(true, func(database.JobRecord) bool { return true }), nil
}

func (m *memStore) ListJobRecordsByStatus(_ context.Context, status string) ([]database.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(false, func(r database.JobRecord) bool { return r.Status == status }), nil
}

func (m *memStore) UpdateJobRecordTailoring(_ context.Context, arg database.UpdateJobRecordTailoringParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[arg.ID]
	if !ok {
		return sql.ErrNoRows
	}
	r.TailoredResume = arg.TailoredResume
	r.AtsBefore = arg.AtsBefore
	r.AtsAfter = arg.AtsAfter
	r.Changes = arg.Changes
	r.ReviewFeedback = arg.ReviewFeedback
	r.ResumeGeneratedAt = arg.ResumeGeneratedAt
	r.Status = StatusResumeGenerated
	r.Error = ""
	m.records[r.ID] = r
	return nil
}

func (m *memStore) UpdateJobRecordStatus(_ context.Context, arg database.UpdateJobRecordStatusParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[arg.ID]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = arg.Status
	r.Error = arg.Error
	m.records[r.ID] = r
	return nil
}

func (m *memStore) ClaimJobRecord(_ context.Context, id uuid.UUID) (database.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Status != StatusNew {
		return database.JobRecord{}, sql.ErrNoRows
	}
	r.Status = StatusProcessing
	r.Error = ""
	m.records[id] = r
	return r, nil
}

func (m *memStore) DeleteJobRecord(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memStore) CreateRun(_ context.Context, arg database.CreateRunParams) (database.TailoringRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	run := database.TailoringRun{
		ID:              arg.ID,
		Status:          RunQueued,
		ResumeObjectKey: arg.ResumeObjectKey,
		ResumeFilename:  arg.ResumeFilename,
		ResumeMime:      arg.ResumeMime,
		JobSource:       arg.JobSource,
		JobCount:        arg.JobCount,
		JobsObjectKey:   arg.JobsObjectKey,
		JobsFilename:    arg.JobsFilename,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *memStore) GetRun(_ context.Context, id uuid.UUID) (database.TailoringRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return run, sql.ErrNoRows
	}
	return run, nil
}

func (m *memStore) ListRuns(_ context.Context, limit int32) ([]database.TailoringRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.TailoringRun
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpdateRunStatus(_ context.Context, arg database.UpdateRunStatusParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[arg.ID]
	if !ok {
		return sql.ErrNoRows
	}
	run.Status = arg.Status
	run.Message = arg.Message
	run.UpdatedAt = m.tick()
	m.runs[run.ID] = run
	return nil
}

func (m *memStore) UpdateRunCounters(_ context.Context, arg database.UpdateRunCountersParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[arg.ID]
	if !ok {
		return sql.ErrNoRows
	}
	run.RecordsAdded = arg.RecordsAdded
	run.RecordsTailored = arg.RecordsTailored
	run.RecordsFailed = arg.RecordsFailed
	m.runs[run.ID] = run
	return nil
}

// memObjects is an in-memory ObjectStore.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (o *memObjects) Upload(_ context.Context, key, contentType string, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = append([]byte(nil), data...)
	o.types[key] = contentType
	return nil
}

func (o *memObjects) Download(_ context.Context, key string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return data, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	runs    []TailorRunMessage
	updates []RunUpdate
	runErr  error
}

func (p *fakePublisher) PublishRun(_ context.Context, msg TailorRunMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runErr != nil {
		return p.runErr
	}
	p.runs = append(p.runs, msg)
	return nil
}

func (p *fakePublisher) PublishRunUpdate(update RunUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
	return nil
}

func (p *fakePublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, u := range p.updates {
		if u.RecordID == nil {
			out = append(out, u.Status)
		}
	}
	return out
}

// fakeTailor fails for any job whose text contains failOn. It records the
// resume each job was tailored with.
type fakeTailor struct {
	mu     sync.Mutex
	failOn string
	delay  time.Duration
	jobs   []string
	resume string
	byJob  map[string][]string
}

func (t *fakeTailor) Tailor(_ context.Context, resumeText, jobText string) (*TailoredResume, error) {
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = append(t.jobs, jobText)
	t.resume = resumeText
	if t.byJob == nil {
		t.byJob = map[string][]string{}
	}
	t.byJob[jobText] = append(t.byJob[jobText], resumeText)
	if t.failOn != "" && containsFold(jobText, t.failOn) {
		return nil, errors.New("agent stream error: model overloaded")
	}
	return &TailoredResume{
		Before:         55,
		After:          82,
		Changes:        "Rewrote summary, Added Go keywords",
		TailoredResume: "# JANE DOE\n\n## SKILLS\n\n- Go\n- Kubernetes",
		Review:         "- Looks good",
	}, nil
}

// cancelingTailor stops the worker mid-run, the way SIGTERM does.
type cancelingTailor struct {
	cancel context.CancelFunc
}

func (t cancelingTailor) Tailor(ctx context.Context, _, _ string) (*TailoredResume, error) {
	t.cancel()
	return nil, ctx.Err()
}

// saveFailingStore fails every tailoring save.
type saveFailingStore struct {
	*memStore
	err error
}

func (s saveFailingStore) UpdateJobRecordTailoring(context.Context, database.UpdateJobRecordTailoringParams) error {
	return s.err
}

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("unexpected status 404")
	}
	return html, nil
}

// fakeExtractor reads the title from the first Markdown heading.
type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, _ string, markdown string) (JobProfile, error) {
	title, rest, _ := cutHeading(markdown)
	return JobProfile{
		JobTitle:       title,
		CompanyName:    "Acme",
		JobLocation:    "Remote",
		JobDescription: rest,
	}, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func cutHeading(markdown string) (title, rest string, ok bool) {
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			_, rest, ok = strings.Cut(markdown, line)
			return title, strings.TrimSpace(rest), ok
		}
	}
	return "", markdown, false
}
