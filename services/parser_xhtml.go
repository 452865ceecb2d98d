package services

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"docchat-platform/models"
)

// XHTMLParser covers the DOM-walking path: HTML, plain text, DOCX and
// EPUB. Office containers are unzipped and their XML/XHTML payloads walked
// with the same section-stack logic.
type XHTMLParser struct{}

func NewXHTMLParser() *XHTMLParser {
	return &XHTMLParser{}
}

func (p *XHTMLParser) Supports(mimeType string) bool {
	switch mimeType {
	case "text/html", "application/xhtml+xml", "text/plain",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/epub+zip":
		return true
	}
	return false
}

func (p *XHTMLParser) Parse(data []byte, fileName string) (*models.ParsedDocument, error) {
	lower := strings.ToLower(fileName)
	switch {
	case bytes.HasPrefix(data, []byte("PK")) && strings.HasSuffix(lower, ".docx"):
		return p.parseDOCX(data)
	case bytes.HasPrefix(data, []byte("PK")) && strings.HasSuffix(lower, ".epub"):
		return p.parseEPUB(data)
	case looksLikeHTML(data):
		return p.parseHTML(data)
	default:
		return p.parsePlainText(data)
	}
}

func looksLikeHTML(data []byte) bool {
	head := strings.ToLower(string(data[:min(len(data), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html") || strings.Contains(head, "<body")
}

func (p *XHTMLParser) parsePlainText(data []byte) (*models.ParsedDocument, error) {
	text := strings.TrimSpace(string(data))
	return &models.ParsedDocument{FullText: text}, nil
}

func (p *XHTMLParser) parseHTML(data []byte) (*models.ParsedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &models.ParseError{MimeType: "text/html", Reason: "invalid markup", Err: err}
	}

	builder := &docBuilder{}
	p.walkHTML(doc, builder)
	return builder.Build(), nil
}

func (p *XHTMLParser) walkHTML(doc *goquery.Document, builder *docBuilder) {
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, table, img").Each(func(_ int, s *goquery.Selection) {
		// Skip elements nested inside a table; the table renderer owns them.
		if s.ParentsFiltered("table").Length() > 0 {
			return
		}

		name := goquery.NodeName(s)
		switch name {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			title := strings.TrimSpace(s.Text())
			if title != "" {
				builder.StartSection(title, int(name[1]-'0'))
			}
		case "table":
			builder.AddTable(renderTableGFM(s))
		case "img":
			if img, ok := decodeInlineImage(s); ok {
				builder.AddImage(img)
			}
		default:
			builder.AppendText(s.Text())
		}
	})
}

// renderTableGFM renders a <table> as a GitHub-flavored pipe table.
func renderTableGFM(table *goquery.Selection) string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			text := strings.Join(strings.Fields(cell.Text()), " ")
			cells = append(cells, strings.ReplaceAll(text, "|", "\\|"))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return pipeTable(rows)
}

func pipeTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}

	writeRow(rows[0])
	sb.WriteString("|")
	for i := 0; i < width; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// decodeInlineImage extracts a data-URI image. External references carry
// no bytes and are skipped.
func decodeInlineImage(s *goquery.Selection) (models.ParsedImage, bool) {
	src, _ := s.Attr("src")
	if !strings.HasPrefix(src, "data:image/") {
		return models.ParsedImage{}, false
	}
	comma := strings.Index(src, ",")
	if comma < 0 || !strings.Contains(src[:comma], "base64") {
		return models.ParsedImage{}, false
	}

	data, err := base64.StdEncoding.DecodeString(src[comma+1:])
	if err != nil {
		return models.ParsedImage{}, false
	}

	mime := src[len("data:"):strings.Index(src, ";")]
	alt, _ := s.Attr("alt")

	img := models.ParsedImage{
		Data:     data,
		MimeType: mime,
		AltText:  alt,
		GroupID:  -1,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	return img, true
}

func (p *XHTMLParser) parseDOCX(data []byte) (*models.ParsedDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &models.ParseError{MimeType: "docx", Reason: "invalid container", Err: err}
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = readZipFile(f)
			if err != nil {
				return nil, &models.ParseError{MimeType: "docx", Reason: "unreadable document.xml", Err: err}
			}
			break
		}
	}
	if docXML == nil {
		return nil, &models.ParseError{MimeType: "docx", Reason: "missing word/document.xml"}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(docXML))
	if err != nil {
		return nil, &models.ParseError{MimeType: "docx", Reason: "invalid document.xml", Err: err}
	}

	builder := &docBuilder{}
	doc.Find("w\\:p, w\\:tbl").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "w:tbl" {
			builder.AddTable(renderDOCXTable(s))
			return
		}
		if s.ParentsFiltered("w\\:tbl").Length() > 0 {
			return
		}

		text := docxParagraphText(s)
		if text == "" {
			return
		}
		if level, ok := docxHeadingLevel(s); ok {
			builder.StartSection(text, level)
			return
		}
		builder.AppendText(text)
	})
	return builder.Build(), nil
}

func docxParagraphText(p *goquery.Selection) string {
	var sb strings.Builder
	p.Find("w\\:t").Each(func(_ int, t *goquery.Selection) {
		sb.WriteString(t.Text())
	})
	return strings.TrimSpace(sb.String())
}

func docxHeadingLevel(p *goquery.Selection) (int, bool) {
	style, ok := p.Find("w\\:ppr w\\:pstyle").First().Attr("w:val")
	if !ok {
		return 0, false
	}
	style = strings.ToLower(style)
	if !strings.HasPrefix(style, "heading") {
		return 0, false
	}
	level := int(style[len(style)-1] - '0')
	if level < 1 || level > 6 {
		return 0, false
	}
	return level, true
}

func renderDOCXTable(tbl *goquery.Selection) string {
	var rows [][]string
	tbl.Find("w\\:tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("w\\:tc").Each(func(_ int, tc *goquery.Selection) {
			var sb strings.Builder
			tc.Find("w\\:t").Each(func(_ int, t *goquery.Selection) {
				sb.WriteString(t.Text())
			})
			text := strings.Join(strings.Fields(sb.String()), " ")
			cells = append(cells, strings.ReplaceAll(text, "|", "\\|"))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return pipeTable(rows)
}

func (p *XHTMLParser) parseEPUB(data []byte) (*models.ParsedDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &models.ParseError{MimeType: "epub", Reason: "invalid container", Err: err}
	}

	var contentFiles []*zip.File
	for _, f := range zr.File {
		lower := strings.ToLower(f.Name)
		if strings.HasSuffix(lower, ".xhtml") || strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
			contentFiles = append(contentFiles, f)
		}
	}
	if len(contentFiles) == 0 {
		return nil, &models.ParseError{MimeType: "epub", Reason: "no content documents"}
	}
	sort.Slice(contentFiles, func(i, j int) bool {
		return contentFiles[i].Name < contentFiles[j].Name
	})

	builder := &docBuilder{}
	for _, f := range contentFiles {
		payload, err := readZipFile(f)
		if err != nil {
			return nil, &models.ParseError{MimeType: "epub", Reason: fmt.Sprintf("unreadable entry %s", f.Name), Err: err}
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
		if err != nil {
			continue
		}
		p.walkHTML(doc, builder)
	}
	return builder.Build(), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
