package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const jobPage = `<html><head><title>Go Engineer</title><script>track()</script><style>p{}</style></head>
<body>
<nav><a href="/">Jobs</a></nav>
<header>Acme careers</header>
<main>
<h1>Go Engineer</h1>
<div class="job-description">
<p>Build <strong>distributed</strong> services.</p>
<ul><li>5 years Go</li><li>Kubernetes</li></ul>
</div>
</main>
<footer>© Acme</footer>
</body></html>`

func TestParseLinks(t *testing.T) {
	data := []byte("https://a.example/1\n\n# saved from alerts\n  https://b.example/2  \nhttps://a.example/1\r\nhttps://c.example/3")
	assert.Equal(t, []string{
		"https://a.example/1",
		"https://b.example/2",
		"https://c.example/3",
	}, parseLinks(data))
	assert.Empty(t, parseLinks(nil))
}

func TestCleanJobHTMLPrefersDescription(t *testing.T) {
	html, err := cleanJobHTML(jobPage)
	require.NoError(t, err)

	assert.Contains(t, html, "<h1>Go Engineer</h1>")
	assert.Contains(t, html, "distributed")
	assert.NotContains(t, html, "track()")
	assert.NotContains(t, html, "Acme careers")
	assert.NotContains(t, html, "© Acme")
}

func TestPageMarkdown(t *testing.T) {
	md, err := pageMarkdown(jobPage)
	require.NoError(t, err)
	assert.Contains(t, md, "# Go Engineer")
	assert.Contains(t, md, "**distributed**")
	assert.Contains(t, md, "- 5 years Go")

	_, err = pageMarkdown("<html><body><script>x()</script></body></html>")
	assert.Error(t, err)
}

func TestTruncateUTF8KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncateUTF8("short", 10))
	// "é" is two bytes, so a cut at byte 4 lands inside it
	assert.Equal(t, "caf", truncateUTF8("café au lait", 4))
	assert.Equal(t, "café", truncateUTF8("café au lait", 5))
	assert.Equal(t, "", truncateUTF8("日本", 2))

	long := strings.Repeat("ü", maxPageChars)
	cut := truncateUTF8(long, maxPageChars)
	assert.True(t, utf8.ValidString(cut))
	assert.Len(t, cut, maxPageChars)
}

func TestPageMarkdownTruncatesOnRuneBoundary(t *testing.T) {
	page := "<html><body><main><p>x" + strings.Repeat("ü", maxPageChars) + "</p></main></body></html>"
	md, err := pageMarkdown(page)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(md), maxPageChars)
	assert.True(t, utf8.ValidString(md))
}

func TestJobsFromRows(t *testing.T) {
	rows := [][]string{
		{" Company_Name ", "JOB_TITLE", "job_description", "job_url", "job_location"},
		{"Acme", "Go Engineer", "Build services", "https://acme.example/1", "Berlin"},
		{"Globex", "", "No title here"},
		{"Initech", "SRE", ""},
		{"Umbrella", "Data Engineer", "Pipelines"},
	}
	profiles, err := jobsFromRows(rows)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, JobProfile{
		JobTitle:       "Go Engineer",
		CompanyName:    "Acme",
		JobLocation:    "Berlin",
		JobDescription: "Build services",
		JobURL:         "https://acme.example/1",
	}, profiles[0])
	assert.Equal(t, "Data Engineer", profiles[1].JobTitle)
	assert.Equal(t, "", profiles[1].JobLocation)
}

func TestJobsFromRowsNeedsColumns(t *testing.T) {
	_, err := jobsFromRows([][]string{{"company_name", "job_title"}})
	assert.EqualError(t, err, "spreadsheet is missing column job_description")

	_, err = jobsFromRows(nil)
	assert.Error(t, err)
}

func TestFromSpreadsheetCSV(t *testing.T) {
	csv := "company_name,job_title,job_description,job_url,job_location,job_salary\n" +
		"Acme,Go Engineer,\"Build services, ship fast\",https://acme.example/1,Remote,120k\n" +
		"Globex,SRE,Keep it running,,Lagos,\n" +
		"Initech,QA,Test things,,,\n"

	intake := &JobIntake{Logger: zap.NewNop()}
	profiles, err := intake.FromSpreadsheet("jobs.csv", []byte(csv), 2)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Build services, ship fast", profiles[0].JobDescription)
	assert.Equal(t, "120k", profiles[0].JobSalary)
	assert.Equal(t, "Lagos", profiles[1].JobLocation)
}

func TestFromSpreadsheetXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"company_name", "job_title", "job_description", "job_url", "job_location"},
		{"Acme", "Go Engineer", "Build services", "https://acme.example/1", "Berlin"},
		{"Globex", "SRE", "Keep it running", "", "Remote"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	intake := &JobIntake{Logger: zap.NewNop()}
	profiles, err := intake.FromSpreadsheet("jobs.xlsx", buf.Bytes(), 0)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Go Engineer", profiles[0].JobTitle)
	assert.Equal(t, "Remote", profiles[1].JobLocation)
}

func TestFromSpreadsheetRejectsOtherFormats(t *testing.T) {
	intake := &JobIntake{Logger: zap.NewNop()}
	_, err := intake.FromSpreadsheet("jobs.ods", []byte("x"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFromLinksSkipsFailures(t *testing.T) {
	intake := &JobIntake{
		Fetcher: &fakeFetcher{pages: map[string]string{
			"https://jobs.example/1": jobPage,
			"https://jobs.example/3": strings.Replace(jobPage, "Go Engineer", "Rust Engineer", 1),
			"https://jobs.example/4": "<html><body><main><p>Page not found</p></main></body></html>",
		}},
		Extractor: fakeExtractor{},
		Logger:    zap.NewNop(),
	}
	links := "https://jobs.example/1\nhttps://jobs.example/2\nhttps://jobs.example/3\nhttps://jobs.example/4\n"

	profiles := intake.FromLinks(context.Background(), []byte(links), 0)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Go Engineer", profiles[0].JobTitle)
	assert.Equal(t, "https://jobs.example/1", profiles[0].JobURL)
	assert.Contains(t, profiles[0].JobDescription, "distributed")
	assert.Equal(t, "https://jobs.example/3", profiles[1].JobURL)

	capped := intake.FromLinks(context.Background(), []byte(links), 1)
	assert.Len(t, capped, 1)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(jobPage))
	}))
	defer srv.Close()

	f := newHTTPFetcher(0)
	html, err := f.Fetch(context.Background(), srv.URL+"/job")
	require.NoError(t, err)
	assert.Contains(t, html, "Go Engineer")

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.EqualError(t, err, "unexpected status 404")
}

func TestParseJobProfile(t *testing.T) {
	p, err := parseJobProfile("```json\n{\"job_title\":\"Go Engineer\",\"company_name\":\"Acme\",\"job_location\":\"Remote\",\"job_description\":\"Build\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Go Engineer", p.JobTitle)
	assert.Equal(t, "Acme", p.CompanyName)

	_, err = parseJobProfile("")
	assert.Error(t, err)
}

func TestNewPageFetcher(t *testing.T) {
	assert.IsType(t, &httpFetcher{}, newPageFetcher("http", true))
	assert.IsType(t, &rodFetcher{}, newPageFetcher("browser", true))
}
