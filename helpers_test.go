package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJson(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"text around fence", "Here you go:\n```json\n{\"a\":1}\n```\nThanks", `{"a":1}`},
		{"fence on one line", "```{\"a\":1}```", `{"a":1}`},
		{"whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJson(tt.in))
		})
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	got, err := retry(ctx, 3, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, calls)

	calls = 0
	sentinel := errors.New("down")
	_, err = retry(ctx, 2, func() (int, error) {
		calls++
		return 0, sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retry(ctx, 5, func() (string, error) {
		calls++
		cancel()
		return "", errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExtractResumeText(t *testing.T) {
	text, err := ExtractResumeText("text/plain", "cv.txt", []byte("  Jane Doe\nGo developer \n"))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nGo developer", text)

	text, err = ExtractResumeText("", "cv.md", []byte("# Jane Doe\n\n- Go"))
	require.NoError(t, err)
	assert.Equal(t, "# Jane Doe\n\n- Go", text)

	text, err = ExtractResumeText("text/html; charset=utf-8", "cv.html", []byte("<h1>Jane Doe</h1><p>Go <strong>developer</strong></p>"))
	require.NoError(t, err)
	assert.Contains(t, text, "# Jane Doe")
	assert.Contains(t, text, "**developer**")
}

func TestExtractResumeTextErrors(t *testing.T) {
	_, err := ExtractResumeText("image/png", "cv.png", []byte{0x89, 'P', 'N', 'G'})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ExtractResumeText("", "cv.rtf", []byte("{\\rtf1}"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ExtractResumeText("text/plain", "cv.txt", []byte("   \n "))
	assert.EqualError(t, err, "no text found in resume")

	_, err = ExtractResumeText(mimePDF, "cv.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}

func TestExtractDocxText(t *testing.T) {
	data, err := MarkdownToDOCX("# Jane Doe\n\nSenior **Go** engineer & mentor\n\n- Kubernetes\n- Postgres")
	require.NoError(t, err)

	text, err := ExtractResumeText(mimeDOCX, "cv.docx", data)
	require.NoError(t, err)
	assert.Contains(t, text, "Jane Doe")
	assert.Contains(t, text, "Senior Go engineer & mentor")
	assert.Contains(t, text, "• Kubernetes")
	assert.Contains(t, text, "• Postgres")
}

func TestExtractPDFText(t *testing.T) {
	data, err := MarkdownToPDF("# Jane Doe\n\nSenior Go engineer\n\n- Kubernetes\n- Postgres")
	require.NoError(t, err)

	text, err := ExtractResumeText(mimePDF, "cv.pdf", data)
	require.NoError(t, err)
	for _, word := range []string{"Jane", "Doe", "Senior", "engineer", "Kubernetes", "Postgres"} {
		assert.Contains(t, text, word)
	}

	text, err = ExtractResumeText("", "CV.PDF", data)
	require.NoError(t, err)
	assert.Contains(t, text, "Jane")
}

func TestDocxXMLToText(t *testing.T) {
	xml := `<w:body><w:p><w:r><w:t>Jane</w:t></w:r><w:r><w:tab/><w:t>Doe</w:t></w:r></w:p>` +
		`<w:p></w:p><w:p></w:p><w:p></w:p><w:p><w:r><w:t>R&amp;D</w:t><w:br/><w:t>Lead</w:t></w:r></w:p></w:body>`
	assert.Equal(t, "Jane\tDoe\n\nR&D\nLead", docxXMLToText(xml))
}

func TestMimeFromFilename(t *testing.T) {
	assert.Equal(t, mimePDF, mimeFromFilename("CV.PDF"))
	assert.Equal(t, mimeDOCX, mimeFromFilename("cv.docx"))
	assert.Equal(t, mimeXLSX, mimeFromFilename("jobs.xlsx"))
	assert.Equal(t, mimeMarkdown, mimeFromFilename("cv.markdown"))
	assert.Equal(t, "", mimeFromFilename("cv"))
}
