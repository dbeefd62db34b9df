package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const maxPageChars = 30000

// PageFetcher returns the HTML of a job page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// JobExtractor turns a job page, already converted to Markdown, into a
// JobProfile.
type JobExtractor interface {
	Extract(ctx context.Context, pageURL, markdown string) (JobProfile, error)
}

// JobIntake turns the job sources of a run into job profiles.
type JobIntake struct {
	Fetcher   PageFetcher
	Extractor JobExtractor
	Logger    *zap.Logger
}

// FromLinks fetches and extracts every link in a links file. Pages that fail
// are logged and skipped. limit <= 0 means no cap.
func (in *JobIntake) FromLinks(ctx context.Context, data []byte, limit int) []JobProfile {
	links := parseLinks(data)
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}

	var profiles []JobProfile
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		profile, err := in.fromLink(ctx, link)
		if err != nil {
			in.Logger.Warn("skipping job link", zap.String("url", link), zap.Error(err))
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles
}

func (in *JobIntake) fromLink(ctx context.Context, link string) (JobProfile, error) {
	html, err := in.Fetcher.Fetch(ctx, link)
	if err != nil {
		return JobProfile{}, fmt.Errorf("fetch: %w", err)
	}
	md, err := pageMarkdown(html)
	if err != nil {
		return JobProfile{}, err
	}
	profile, err := in.Extractor.Extract(ctx, link, md)
	if err != nil {
		return JobProfile{}, fmt.Errorf("extract: %w", err)
	}
	profile.JobURL = link
	if strings.TrimSpace(profile.JobTitle) == "" || strings.TrimSpace(profile.JobDescription) == "" {
		return JobProfile{}, errors.New("no job posting found on page")
	}
	return profile, nil
}

// FromSpreadsheet reads job rows from an .xlsx or .csv upload.
func (in *JobIntake) FromSpreadsheet(filename string, data []byte, limit int) ([]JobProfile, error) {
	rows, err := readSpreadsheetRows(filename, data)
	if err != nil {
		return nil, err
	}
	profiles, err := jobsFromRows(rows)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles, nil
}

// parseLinks returns the URLs of a links file in order, without blanks,
// comments or repeats.
func parseLinks(data []byte) []string {
	var links []string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		links = append(links, line)
	}
	return links
}

var jobContainers = []string{
	"[class*=job-description]",
	"[id*=job-description]",
	"[class*=jobDescription]",
	"[class*=description__text]",
	"[data-testid*=jobDescription]",
	"article",
	"main",
	"[role=main]",
}

// cleanJobHTML drops page chrome and keeps the job description container
// when one can be found.
func cleanJobHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, nav, header, footer, iframe, noscript, svg").Remove()
	doc.Find(".cookie, .popup, .banner, .ads, [role=navigation]").Remove()

	title := strings.TrimSpace(doc.Find("h1").First().Text())

	for _, sel := range jobContainers {
		s := doc.Find(sel).First()
		if s.Length() == 0 || strings.TrimSpace(s.Text()) == "" {
			continue
		}
		inner, err := s.Html()
		if err != nil {
			continue
		}
		if title != "" && !strings.Contains(s.Text(), title) {
			inner = "<h1>" + title + "</h1>" + inner
		}
		return inner, nil
	}
	return doc.Find("body").Html()
}

func pageMarkdown(html string) (string, error) {
	cleaned, err := cleanJobHTML(html)
	if err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to convert page: %w", err)
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return "", errors.New("empty page")
	}
	return truncateUTF8(md, maxPageChars), nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func readSpreadsheetRows(filename string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("spreadsheet has no sheets")
		}
		return f.GetRows(sheets[0])
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		return r.ReadAll()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// jobsFromRows maps a header row plus data rows to job profiles. Rows without
// a title or a description are skipped.
func jobsFromRows(rows [][]string) ([]JobProfile, error) {
	if len(rows) == 0 {
		return nil, errors.New("spreadsheet is empty")
	}
	col := map[string]int{}
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"job_title", "job_description"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("spreadsheet is missing column %s", required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var profiles []JobProfile
	for _, row := range rows[1:] {
		p := JobProfile{
			JobTitle:       cell(row, "job_title"),
			CompanyName:    cell(row, "company_name"),
			JobLocation:    cell(row, "job_location"),
			JobSalary:      cell(row, "job_salary"),
			JobDescription: cell(row, "job_description"),
			JobURL:         cell(row, "job_url"),
		}
		if p.JobTitle == "" || p.JobDescription == "" {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// --- Fetchers ---

type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher(timeout time.Duration) *httpFetcher {
	return &httpFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// rodFetcher renders pages in a headless Chromium so script-built job pages
// come back with their content. The browser is launched on first use.
type rodFetcher struct {
	headless bool
	timeout  time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

func newRodFetcher(headless bool, timeout time.Duration) *rodFetcher {
	return &rodFetcher{headless: headless, timeout: timeout}
}

func (f *rodFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}
	u, err := launcher.New().Headless(f.headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	f.browser = browser
	return browser, nil
}

func (f *rodFetcher) Fetch(ctx context.Context, url string) (string, error) {
	browser, err := f.connect()
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page did not load: %w", err)
	}
	return page.HTML()
}

func (f *rodFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}

func newPageFetcher(kind string, headless bool) PageFetcher {
	if kind == "browser" {
		return newRodFetcher(headless, 45*time.Second)
	}
	return newHTTPFetcher(30 * time.Second)
}

// --- Extraction ---

type genaiJobExtractor struct {
	client *genai.Client
	model  string
}

func newGenaiJobExtractor(ctx context.Context, apiKey, model string) (*genaiJobExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &genaiJobExtractor{client: client, model: model}, nil
}

func jobProfileSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"job_title":       {Type: genai.TypeString},
			"company_name":    {Type: genai.TypeString},
			"job_location":    {Type: genai.TypeString},
			"job_salary":      {Type: genai.TypeString},
			"job_description": {Type: genai.TypeString},
		},
		Required: []string{"job_title", "company_name", "job_location", "job_description"},
	}
}

func (e *genaiJobExtractor) Extract(ctx context.Context, pageURL, markdown string) (JobProfile, error) {
	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(jobExtractInstruction+markdown), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   jobProfileSchema(),
	})
	if err != nil {
		return JobProfile{}, err
	}
	return parseJobProfile(resp.Text())
}

func parseJobProfile(raw string) (JobProfile, error) {
	var p JobProfile
	if strings.TrimSpace(raw) == "" {
		return p, errors.New("empty response from model")
	}
	if err := json.Unmarshal([]byte(CleanJson(raw)), &p); err != nil {
		return p, fmt.Errorf("json unmarshal error: %w", err)
	}
	return p, nil
}
