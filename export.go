package main

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/muhammadolammi/resumetailor/internal/database"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gtext "github.com/yuin/goldmark/text"
)

const (
	FormatPDF      = "pdf"
	FormatDOCX     = "docx"
	FormatMarkdown = "md"
)

var ErrNothingToExport = errors.New("resume is empty")

// heading point sizes by level
var headingSizes = [6]float64{16, 14, 12, 11, 10, 10}

const bodySize = 10.0

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockListItem
)

type inlineRun struct {
	Text   string
	Bold   bool
	Italic bool
}

type docBlock struct {
	Kind   blockKind
	Level  int    // heading level
	Marker string // "•" or "3."
	Depth  int    // list nesting, from 1
	Runs   []inlineRun
}

func (b docBlock) plain() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

func markdownEngine() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

// parseBlocks flattens Markdown into the blocks both document writers use.
func parseBlocks(markdown string) []docBlock {
	src := []byte(markdown)
	doc := markdownEngine().Parser().Parse(gtext.NewReader(src))
	var blocks []docBlock
	collectBlocks(doc, src, 0, &blocks)
	return blocks
}

func collectBlocks(parent ast.Node, src []byte, depth int, out *[]docBlock) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			*out = append(*out, docBlock{Kind: blockHeading, Level: node.Level, Runs: inlineRuns(node, src, false, false)})
		case *ast.Paragraph, *ast.TextBlock:
			if runs := inlineRuns(node, src, false, false); len(runs) > 0 {
				*out = append(*out, docBlock{Kind: blockParagraph, Runs: runs})
			}
		case *ast.List:
			collectList(node, src, depth+1, out)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				line := strings.TrimRight(string(seg.Value(src)), "\r\n")
				*out = append(*out, docBlock{Kind: blockParagraph, Runs: []inlineRun{{Text: line}}})
			}
		case *ast.ThematicBreak, *ast.HTMLBlock:
		default:
			collectBlocks(n, src, depth, out)
		}
	}
}

func collectList(list *ast.List, src []byte, depth int, out *[]docBlock) {
	number := list.Start
	if number == 0 {
		number = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d.", number)
			number++
		}
		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				collectList(sub, src, depth+1, out)
				continue
			}
			runs := inlineRuns(c, src, false, false)
			if len(runs) == 0 {
				continue
			}
			b := docBlock{Kind: blockListItem, Depth: depth, Runs: runs}
			if first {
				b.Marker = marker
				first = false
			}
			*out = append(*out, b)
		}
	}
}

func inlineRuns(parent ast.Node, src []byte, bold, italic bool) []inlineRun {
	var runs []inlineRun
	add := func(s string) {
		if s == "" {
			return
		}
		if n := len(runs); n > 0 && runs[n-1].Bold == bold && runs[n-1].Italic == italic {
			runs[n-1].Text += s
			return
		}
		runs = append(runs, inlineRun{Text: s, Bold: bold, Italic: italic})
	}
	merge := func(more []inlineRun) {
		for _, r := range more {
			if n := len(runs); n > 0 && runs[n-1].Bold == r.Bold && runs[n-1].Italic == r.Italic {
				runs[n-1].Text += r.Text
				continue
			}
			runs = append(runs, r)
		}
	}

	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Text:
			add(string(node.Segment.Value(src)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				add(" ")
			}
		case *ast.String:
			add(string(node.Value))
		case *ast.Emphasis:
			if node.Level >= 2 {
				merge(inlineRuns(node, src, true, italic))
			} else {
				merge(inlineRuns(node, src, bold, true))
			}
		case *ast.Link:
			label := inlineRuns(node, src, bold, italic)
			merge(label)
			dest := string(node.Destination)
			if dest != "" && runsText(label) != dest {
				add(" (" + dest + ")")
			}
		case *ast.AutoLink:
			add(string(node.Label(src)))
		case *ast.RawHTML:
		case *east.TaskCheckBox:
			if node.IsChecked {
				add("[x] ")
			} else {
				add("[ ] ")
			}
		default:
			merge(inlineRuns(n, src, bold, italic))
		}
	}
	return runs
}

func runsText(runs []inlineRun) string {
	return docBlock{Runs: runs}.plain()
}

// RenderHTML renders Markdown for the dashboard preview. Raw HTML in the
// input is not passed through.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine().Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// --- PDF ---

func MarkdownToPDF(markdown string) ([]byte, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, ErrNothingToExport
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	left, _, _, _ := pdf.GetMargins()

	for _, b := range parseBlocks(markdown) {
		switch b.Kind {
		case blockHeading:
			size := headingSizes[min(max(b.Level, 1), 6)-1]
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, size*0.5, tr(b.plain()), "", "L", false)
			pdf.Ln(1)
		case blockParagraph:
			writePDFRuns(pdf, tr, b.Runs)
			pdf.Ln(bodySize * 0.6)
		case blockListItem:
			indent := left + 5*float64(b.Depth)
			pdf.SetLeftMargin(indent)
			pdf.SetX(indent - 4)
			pdf.SetFont("Helvetica", "", bodySize)
			if b.Marker != "" {
				pdf.Write(bodySize*0.5, tr(b.Marker)+" ")
			}
			writePDFRuns(pdf, tr, b.Runs)
			pdf.SetLeftMargin(left)
			pdf.Ln(bodySize * 0.55)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writePDFRuns(pdf *fpdf.Fpdf, tr func(string) string, runs []inlineRun) {
	for _, r := range runs {
		style := ""
		if r.Bold {
			style += "B"
		}
		if r.Italic {
			style += "I"
		}
		pdf.SetFont("Helvetica", style, bodySize)
		pdf.Write(bodySize*0.5, tr(r.Text))
	}
}

// --- DOCX ---

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

func MarkdownToDOCX(markdown string) ([]byte, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, ErrNothingToExport
	}

	var body bytes.Buffer
	for _, b := range parseBlocks(markdown) {
		switch b.Kind {
		case blockHeading:
			size := headingSizes[min(max(b.Level, 1), 6)-1]
			body.WriteString(`<w:p><w:pPr><w:spacing w:before="160" w:after="80"/></w:pPr>`)
			writeDocxRun(&body, inlineRun{Text: b.plain(), Bold: true}, size)
			body.WriteString(`</w:p>`)
		case blockParagraph:
			body.WriteString(`<w:p>`)
			for _, r := range b.Runs {
				writeDocxRun(&body, r, bodySize+1)
			}
			body.WriteString(`</w:p>`)
		case blockListItem:
			fmt.Fprintf(&body, `<w:p><w:pPr><w:ind w:left="%d" w:hanging="240"/></w:pPr>`, 360*b.Depth)
			if b.Marker != "" {
				writeDocxRun(&body, inlineRun{Text: b.Marker + " "}, bodySize+1)
			}
			for _, r := range b.Runs {
				writeDocxRun(&body, r, bodySize+1)
			}
			body.WriteString(`</w:p>`)
		}
	}

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() +
		`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1134" w:right="1134" w:bottom="1134" w:left="1134" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>` +
		`</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, content string }{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/document.xml", document},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to write docx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeDocxRun(buf *bytes.Buffer, r inlineRun, size float64) {
	buf.WriteString(`<w:r><w:rPr>`)
	if r.Bold {
		buf.WriteString(`<w:b/>`)
	}
	if r.Italic {
		buf.WriteString(`<w:i/>`)
	}
	fmt.Fprintf(buf, `<w:sz w:val="%d"/></w:rPr><w:t xml:space="preserve">`, int(size*2))
	_ = xml.EscapeText(buf, []byte(r.Text))
	buf.WriteString(`</w:t></w:r>`)
}

// --- Files ---

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "_")
	}
	if slug == "" {
		return "resume"
	}
	return slug
}

func exportFilename(jobTitle, format string, now time.Time) string {
	return fmt.Sprintf("tailored_resume_%s_%s.%s", slugify(jobTitle), now.Format("20060102_150405"), format)
}

func normalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatDOCX, "word":
		return FormatDOCX, nil
	case FormatMarkdown, "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ExportResume renders a tailored resume in format and names the file.
func ExportResume(jobTitle, markdown, format string, now time.Time) (data []byte, filename, contentType string, err error) {
	format, err = normalizeFormat(format)
	if err != nil {
		return nil, "", "", err
	}
	if strings.TrimSpace(markdown) == "" {
		return nil, "", "", ErrNothingToExport
	}

	switch format {
	case FormatPDF:
		data, err = MarkdownToPDF(markdown)
		contentType = mimePDF
	case FormatDOCX:
		data, err = MarkdownToDOCX(markdown)
		contentType = mimeDOCX
	default:
		data = []byte(markdown)
		contentType = mimeMarkdown + "; charset=utf-8"
	}
	if err != nil {
		return nil, "", "", err
	}
	return data, exportFilename(jobTitle, format, now), contentType, nil
}

// ZipResumes bundles every record that has a tailored resume.
func ZipResumes(records []database.JobRecord, format string, now time.Time) ([]byte, int, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := map[string]bool{}
	count := 0

	for _, r := range records {
		if strings.TrimSpace(r.TailoredResume) == "" {
			continue
		}
		data, name, _, err := ExportResume(r.JobTitle, r.TailoredResume, format, now)
		if err != nil {
			return nil, 0, fmt.Errorf("record %s: %w", r.ID, err)
		}
		if used[name] {
			ext := name[strings.LastIndex(name, "."):]
			name = strings.TrimSuffix(name, ext) + "_" + r.ID.String()[:8] + ext
		}
		used[name] = true

		w, err := zw.Create(name)
		if err != nil {
			return nil, 0, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, 0, err
		}
		count++
	}
	if err := zw.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), count, nil
}
