package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

var ErrUnsupportedFormat = errors.New("unsupported file type")

const (
	mimePDF      = "application/pdf"
	mimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeText     = "text/plain"
	mimeMarkdown = "text/markdown"
	mimeHTML     = "text/html"
	mimeCSV      = "text/csv"
)

// retry retries fn up to attempts times, waiting a little longer after each
// failure. It stops early when ctx is done.
func retry[T any](ctx context.Context, attempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := 0; i < attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		wait := time.Duration(500*(i+1)) * time.Millisecond
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// CleanJson strips a markdown code fence around model output.
func CleanJson(input string) string {
	clean := strings.TrimSpace(input)
	if !strings.Contains(clean, "```") {
		return clean
	}

	start := strings.Index(clean, "```")
	body := clean[start+3:]
	// drop the language tag on the fence line
	if nl := strings.IndexAny(body, "\r\n"); nl != -1 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl:]
	}
	if end := strings.LastIndex(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// mimeFromFilename guesses the MIME type of an upload by extension.
func mimeFromFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".xlsx":
		return mimeXLSX
	case ".csv":
		return mimeCSV
	case ".md", ".markdown":
		return mimeMarkdown
	case ".html", ".htm":
		return mimeHTML
	case ".txt":
		return mimeText
	default:
		return ""
	}
}

// ExtractResumeText turns an uploaded resume into plain text or Markdown.
// mime wins over the filename extension when both are known.
func ExtractResumeText(mime, filename string, data []byte) (string, error) {
	mime = strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0]))
	if mime == "" || mime == "application/octet-stream" {
		mime = mimeFromFilename(filename)
	}

	var (
		text string
		err  error
	)
	switch mime {
	case mimeText, mimeMarkdown:
		text = string(data)
	case mimePDF:
		text, err = extractPDFText(bytes.NewReader(data))
	case mimeDOCX:
		text, err = extractDocxText(bytes.NewReader(data))
	case mimeHTML:
		text, err = htmltomarkdown.ConvertString(string(data))
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, mime)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no text found in resume")
	}
	return text, nil
}

func extractPDFText(reader *bytes.Reader) (string, error) {
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var pages []string
	numPages := pdfReader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, " "), nil
}

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>|<w:br/>|<w:br [^>]*/>`)
	docxTab          = regexp.MustCompile(`<w:tab/>`)
	xmlTag           = regexp.MustCompile(`<[^>]*>`)
	blankLines       = regexp.MustCompile(`\n{3,}`)
)

func extractDocxText(reader io.Reader) (string, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", err
	}
	r := bytes.NewReader(buf.Bytes())

	doc, err := docx.ReadDocxFromMemory(r, int64(buf.Len()))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return docxXMLToText(doc.Editable().GetContent()), nil
}

// docxXMLToText flattens WordprocessingML into lines, one per paragraph.
func docxXMLToText(content string) string {
	content = docxParagraphEnd.ReplaceAllString(content, "\n")
	content = docxTab.ReplaceAllString(content, "\t")
	content = xmlTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(content, "\n\n"))
}
