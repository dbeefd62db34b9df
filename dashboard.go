package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/muhammadolammi/resumetailor/internal/database"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	maxUploadBytes  = 10 << 20
	defaultJobCount = 3
	recentRuns      = 10
)

// Server is the review dashboard and its JSON API.
type Server struct {
	DB        RecordStore
	Objects   ObjectStore
	Publisher RunPublisher
	Logger    *zap.Logger

	Username string
	Password string

	Now func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var templateFuncs = template.FuncMap{
	"fmtTime": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		case *time.Time:
			if t == nil || t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		}
		return ""
	},
	"score": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
	"changes": func(s string) []string {
		var out []string
		for _, c := range strings.Split(s, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
		return out
	},
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
}

func (s *Server) Router() (*gin.Engine, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	router := gin.New()
	router.MaxMultipartMemory = 16 << 20
	router.SetHTMLTemplate(tmpl)
	router.Use(RequestID(), RequestLogger(s.Logger), Recover(s.Logger), BasicAuth(s.Username, s.Password))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/", s.handleIndex)
	router.GET("/records/:id", s.handleRecord)
	router.GET("/records/:id/download", s.handleDownload)
	router.POST("/records", s.handleCreateRecord)
	router.POST("/records/:id/retailor", s.handleRetailor)
	router.POST("/records/:id/delete", s.handleDelete)
	router.POST("/runs", s.handleCreateRun)
	router.GET("/runs/:id", s.handleRun)
	router.GET("/download/all", s.handleDownloadAll)

	api := router.Group("/api")
	api.GET("/records", s.handleAPIListRecords)
	api.POST("/records", s.handleAPICreateRecord)
	api.GET("/records/:id", s.handleAPIGetRecord)
	api.GET("/runs/:id", s.handleAPIGetRun)

	router.NoRoute(func(c *gin.Context) {
		respondError(c, ErrNotFound("no such page"))
	})
	return router, nil
}

func (s *Server) Run(ctx context.Context, port string) error {
	router, err := s.Router()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting dashboard", zap.String("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func paramID(c *gin.Context) (uuid.UUID, *ApiError) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, ErrBadRequest("invalid id")
	}
	return id, nil
}

func storeError(err error, what string) *ApiError {
	if errors.Is(err, ErrRecordNotFound) {
		return ErrNotFound(what + " not found")
	}
	return ErrInternalServer(err.Error())
}

func (s *Server) loadRecord(c *gin.Context) (database.JobRecord, bool) {
	id, apiErr := paramID(c)
	if apiErr != nil {
		respondError(c, apiErr)
		return database.JobRecord{}, false
	}
	record, err := getRecord(c.Request.Context(), s.DB, id)
	if err != nil {
		respondError(c, storeError(err, "record"))
		return database.JobRecord{}, false
	}
	return record, true
}

// --- Pages ---

func (s *Server) handleIndex(c *gin.Context) {
	ctx := c.Request.Context()
	records, err := s.DB.ListJobRecords(ctx)
	if err != nil {
		respondError(c, ErrInternalServer(err.Error()))
		return
	}
	runs, err := s.DB.ListRuns(ctx, recentRuns)
	if err != nil {
		respondError(c, ErrInternalServer(err.Error()))
		return
	}

	views := make([]JobRecordView, 0, len(records))
	generated := 0
	for _, r := range records {
		views = append(views, recordView(r))
		if r.TailoredResume != "" {
			generated++
		}
	}
	runViews := make([]RunView, 0, len(runs))
	for _, r := range runs {
		runViews = append(runViews, runView(r))
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":           "Resume Tailor",
		"Records":         views,
		"Runs":            runViews,
		"Generated":       generated,
		"DefaultJobCount": defaultJobCount,
	})
}

func (s *Server) handleRecord(c *gin.Context) {
	record, ok := s.loadRecord(c)
	if !ok {
		return
	}
	var preview template.HTML
	if record.TailoredResume != "" {
		html, err := RenderHTML(record.TailoredResume)
		if err != nil {
			s.Logger.Warn("failed to render preview", zap.String("record_id", record.ID.String()), zap.Error(err))
		} else {
			preview = template.HTML(html)
		}
	}
	c.HTML(http.StatusOK, "record.html", gin.H{
		"Title":   record.JobTitle,
		"Record":  recordView(record),
		"Preview": preview,
	})
}

func (s *Server) handleDownload(c *gin.Context) {
	record, ok := s.loadRecord(c)
	if !ok {
		return
	}
	data, filename, contentType, err := ExportResume(record.JobTitle, record.TailoredResume, c.Query("format"), s.now())
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		respondError(c, ErrBadRequest(err.Error()))
		return
	case errors.Is(err, ErrNothingToExport):
		respondError(c, ErrNotFound("no tailored resume for this record yet"))
		return
	case err != nil:
		respondError(c, ErrInternalServer(err.Error()))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

// handleCreateRecord adds a job typed into the dashboard form.
func (s *Server) handleCreateRecord(c *gin.Context) {
	profile := JobProfile{
		JobTitle:       c.PostForm("job_title"),
		CompanyName:    c.PostForm("company_name"),
		JobLocation:    c.PostForm("job_location"),
		JobSalary:      c.PostForm("job_salary"),
		JobDescription: c.PostForm("job_description"),
		JobURL:         c.PostForm("job_url"),
	}
	if strings.TrimSpace(profile.JobTitle) == "" || strings.TrimSpace(profile.JobDescription) == "" {
		respondError(c, ErrBadRequest("job_title and job_description are required"))
		return
	}
	record, err := addNewRecord(c.Request.Context(), s.DB, profile, uuid.NullUUID{})
	if err != nil {
		respondError(c, ErrInternalServer(err.Error()))
		return
	}
	c.Redirect(http.StatusSeeOther, "/records/"+record.ID.String())
}

func (s *Server) handleRetailor(c *gin.Context) {
	record, ok := s.loadRecord(c)
	if !ok {
		return
	}
	err := s.DB.UpdateJobRecordStatus(c.Request.Context(), database.UpdateJobRecordStatusParams{
		Status: StatusNew,
		ID:     record.ID,
	})
	if err != nil {
		respondError(c, ErrInternalServer(err.Error()))
		return
	}
	c.Redirect(http.StatusSeeOther, "/records/"+record.ID.String())
}

func (s *Server) handleDelete(c *gin.Context) {
	record, ok := s.loadRecord(c)
	if !ok {
		return
	}
	if err := s.DB.DeleteJobRecord(c.Request.Context(), record.ID); err != nil {
		respondError(c, ErrInternalServer(err.Error()))
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleRun(c *gin.Context) {
	id, apiErr := paramID(c)
	if apiErr != nil {
		respondError(c, apiErr)
		return
	}
	run, err := getRun(c.Request.Context(), s.DB, id)
	if err != nil {
		respondError(c, storeError(err, "run"))
		return
	}
	c.HTML(http.StatusOK, "run.html", gin.H{
		"Title":   "Run " + run.ID.String(),
		"Run":     runView(run),
		"Refresh": run.Status == RunQueued || run.Status == RunProcessing,
	})
}

func (s *Server) handleDownloadAll(c *gin.Context) {
	records, err := s.DB.ListJobRecords(c.Request.Context())
	if err != nil {
		respondError(c, ErrInternalServer(err.Error()))
		return
	}
	format, err := normalizeFormat(c.Query("format"))
	if err != nil {
		respondError(c, ErrBadRequest(err.Error()))
		return
	}
	now := s.now()
	data, count, err := ZipResumes(records, format, now)
	if err != nil {
		respondError(c, ErrInternalServer(err.Error()))
		return
	}
	if count == 0 {
		respondError(c, ErrNotFound("no tailored resumes to download"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="tailored_resumes_%s.zip"`, now.Format("20060102_150405")))
	c.Data(http.StatusOK, "application/zip", data)
}

// --- Runs ---

type runForm struct {
	JobSource string `form:"job_source"`
	JobCount  string `form:"job_count"`
	JobLinks  string `form:"job_links"`
}

var resumeFormats = map[string]bool{mimePDF: true, mimeDOCX: true, mimeText: true, mimeMarkdown: true, mimeHTML: true}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxUploadBytes {
		return nil, fmt.Errorf("%s is larger than %d MB", fh.Filename, maxUploadBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
}

func (s *Server) handleCreateRun(c *gin.Context) {
	ctx := c.Request.Context()
	var form runForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, ErrBadRequest(err.Error()))
		return
	}

	resumeFile, err := c.FormFile("resume")
	if err != nil {
		respondError(c, ErrBadRequest("a resume file is required"))
		return
	}
	resumeExt := strings.ToLower(filepath.Ext(resumeFile.Filename))
	resumeMime := mimeFromFilename(resumeFile.Filename)
	if !resumeFormats[resumeMime] {
		respondError(c, ErrBadRequest(fmt.Sprintf("unsupported resume type %q", resumeExt)))
		return
	}
	resumeData, err := readUpload(resumeFile)
	if err != nil {
		respondError(c, ErrBadRequest(err.Error()))
		return
	}

	jobCount := defaultJobCount
	if v := strings.TrimSpace(form.JobCount); v != "" {
		jobCount, err = strconv.Atoi(v)
		if err != nil || jobCount < 0 {
			respondError(c, ErrBadRequest("job_count must be a non-negative number"))
			return
		}
	}

	source := strings.ToLower(strings.TrimSpace(form.JobSource))
	if source == "" {
		source = JobSourceNone
	}

	var jobsData []byte
	var jobsName string
	switch source {
	case JobSourceNone:
	case JobSourceLinks:
		if fh, err := c.FormFile("jobs_file"); err == nil {
			jobsName = fh.Filename
			if jobsData, err = readUpload(fh); err != nil {
				respondError(c, ErrBadRequest(err.Error()))
				return
			}
		} else if strings.TrimSpace(form.JobLinks) != "" {
			jobsName = "links.txt"
			jobsData = []byte(form.JobLinks)
		}
		if len(parseLinks(jobsData)) == 0 {
			respondError(c, ErrBadRequest("job links need a links file or pasted links"))
			return
		}
	case JobSourceSpreadsheet:
		fh, err := c.FormFile("jobs_file")
		if err != nil {
			respondError(c, ErrBadRequest("a jobs spreadsheet is required"))
			return
		}
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if ext != ".xlsx" && ext != ".csv" {
			respondError(c, ErrBadRequest(fmt.Sprintf("unsupported spreadsheet type %q", ext)))
			return
		}
		jobsName = fh.Filename
		if jobsData, err = readUpload(fh); err != nil {
			respondError(c, ErrBadRequest(err.Error()))
			return
		}
	default:
		respondError(c, ErrBadRequest(fmt.Sprintf("unknown job source %q", source)))
		return
	}

	runID := uuid.New()
	params := database.CreateRunParams{
		ID:              runID,
		ResumeObjectKey: runObjectKey(runID, "resume", resumeExt),
		ResumeFilename:  resumeFile.Filename,
		ResumeMime:      resumeMime,
		JobSource:       source,
		JobCount:        int32(jobCount),
	}
	if err := s.Objects.Upload(ctx, params.ResumeObjectKey, resumeMime, resumeData); err != nil {
		respondError(c, ErrServiceUnavailable("failed to store resume: "+err.Error()))
		return
	}
	if jobsData != nil {
		ext := strings.ToLower(filepath.Ext(jobsName))
		if ext == "" {
			ext = ".txt"
		}
		params.JobsObjectKey = runObjectKey(runID, "jobs", ext)
		params.JobsFilename = jobsName
		contentType := mimeFromFilename(jobsName)
		if contentType == "" {
			contentType = mimeText
		}
		if err := s.Objects.Upload(ctx, params.JobsObjectKey, contentType, jobsData); err != nil {
			respondError(c, ErrServiceUnavailable("failed to store jobs file: "+err.Error()))
			return
		}
	}

	run, err := s.DB.CreateRun(ctx, params)
	if err != nil {
		respondError(c, ErrInternalServer(err.Error()))
		return
	}
	if err := s.Publisher.PublishRun(ctx, TailorRunMessage{RunID: run.ID}); err != nil {
		s.Logger.Error("failed to queue run", zap.String("run_id", run.ID.String()), zap.Error(err))
		_ = s.DB.UpdateRunStatus(ctx, database.UpdateRunStatusParams{
			Status:  RunFailed,
			Message: "failed to queue run",
			ID:      run.ID,
		})
		respondError(c, ErrServiceUnavailable("failed to queue run"))
		return
	}
	s.Logger.Info("run queued", zap.String("run_id", run.ID.String()), zap.String("job_source", source), zap.Int("job_count", jobCount))

	if isAPIRequest(c) {
		c.JSON(http.StatusAccepted, runView(run))
		return
	}
	c.Redirect(http.StatusSeeOther, "/runs/"+run.ID.String())
}

// --- JSON API ---

func (s *Server) handleAPIListRecords(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		records []database.JobRecord
		err     error
	)
	if status := c.Query("status"); status != "" {
		records, err = s.DB.ListJobRecordsByStatus(ctx, status)
	} else {
		records, err = s.DB.ListJobRecords(ctx)
	}
	if err != nil {
		RespondWithError(c, ErrInternalServer(err.Error()))
		return
	}
	views := make([]JobRecordView, 0, len(records))
	for _, r := range records {
		views = append(views, recordView(r))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleAPIGetRecord(c *gin.Context) {
	record, ok := s.loadRecord(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, recordView(record))
}

func (s *Server) handleAPICreateRecord(c *gin.Context) {
	var profile JobProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		RespondWithError(c, ErrBadRequest("invalid job profile: "+err.Error()))
		return
	}
	if strings.TrimSpace(profile.JobTitle) == "" || strings.TrimSpace(profile.JobDescription) == "" {
		RespondWithError(c, ErrBadRequest("job_title and job_description are required"))
		return
	}
	record, err := addNewRecord(c.Request.Context(), s.DB, profile, uuid.NullUUID{})
	if err != nil {
		RespondWithError(c, ErrInternalServer(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, recordView(record))
}

func (s *Server) handleAPIGetRun(c *gin.Context) {
	id, apiErr := paramID(c)
	if apiErr != nil {
		RespondWithError(c, apiErr)
		return
	}
	run, err := getRun(c.Request.Context(), s.DB, id)
	if err != nil {
		RespondWithError(c, storeError(err, "run"))
		return
	}
	c.JSON(http.StatusOK, runView(run))
}
