package services

import (
	"strings"

	"docchat-platform/models"
)

// docBuilder accumulates fullText, a flat in-order section list, tables and
// images while a parser walks its input. Section nesting is carried by
// Level and Breadcrumb rather than child pointers.
type docBuilder struct {
	text     strings.Builder
	sections []models.ParsedSection
	stack    []stackedHeading
	tables   []models.ParsedTable
	images   []models.ParsedImage

	open        bool
	openSection models.ParsedSection
	openContent strings.Builder
}

type stackedHeading struct {
	title string
	level int
}

// StartSection closes the open section and begins a new one at the given
// heading level. The heading text itself is appended to fullText so BM25
// sees it.
func (b *docBuilder) StartSection(title string, level int) {
	b.closeSection()

	for len(b.stack) > 0 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	b.stack = append(b.stack, stackedHeading{title: title, level: level})

	breadcrumb := make([]string, len(b.stack))
	for i, h := range b.stack {
		breadcrumb[i] = h.title
	}

	b.openSection = models.ParsedSection{
		Title:       title,
		Breadcrumb:  breadcrumb,
		Level:       level,
		StartOffset: b.text.Len(),
	}
	b.open = true

	b.text.WriteString(title)
	b.text.WriteString("\n\n")
}

// AppendText appends paragraph text to fullText and to the open section.
func (b *docBuilder) AppendText(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if !b.open {
		// Preamble before any heading becomes an untitled section.
		b.openSection = models.ParsedSection{StartOffset: b.text.Len()}
		b.open = true
	}
	b.text.WriteString(s)
	b.text.WriteString("\n\n")
	b.openContent.WriteString(s)
	b.openContent.WriteString("\n\n")
}

// AddTable records a GFM pipe table at the current offset and appends it
// to fullText and the open section.
func (b *docBuilder) AddTable(markdown string) {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return
	}
	b.tables = append(b.tables, models.ParsedTable{
		Markdown: markdown,
		Offset:   b.text.Len(),
	})
	b.AppendText(markdown)
}

// AddImage records an image at the current text offset.
func (b *docBuilder) AddImage(img models.ParsedImage) {
	if img.ApproximateOffset == 0 {
		img.ApproximateOffset = b.text.Len()
	}
	if img.GroupID == 0 {
		img.GroupID = -1
	}
	b.images = append(b.images, img)
}

func (b *docBuilder) closeSection() {
	if !b.open {
		return
	}
	b.openSection.Content = strings.TrimSpace(b.openContent.String())
	b.openSection.EndOffset = b.text.Len()
	b.sections = append(b.sections, b.openSection)
	b.openContent.Reset()
	b.open = false
}

// Build finalizes the document.
func (b *docBuilder) Build() *models.ParsedDocument {
	b.closeSection()
	return &models.ParsedDocument{
		FullText: strings.TrimRight(b.text.String(), "\n"),
		Sections: b.sections,
		Tables:   b.tables,
		Images:   b.images,
	}
}
