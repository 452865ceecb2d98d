package services

import (
	"strings"

	"docchat-platform/internal/config"
	"docchat-platform/models"
)

// DocumentParser turns raw bytes into a ParsedDocument.
type DocumentParser interface {
	Parse(data []byte, fileName string) (*models.ParsedDocument, error)
	Supports(mimeType string) bool
}

// ParserRegistry dispatches on MIME type. Selection is first-match in
// registration order.
type ParserRegistry struct {
	parsers []DocumentParser
}

func NewParserRegistry(cfg *config.Config) *ParserRegistry {
	return &ParserRegistry{
		parsers: []DocumentParser{
			NewPDFParser(),
			NewXLSXParser(),
			NewMarkdownParser(),
			NewXHTMLParser(),
		},
	}
}

// Parse selects a parser for the MIME type and runs it. Unknown types fail
// with a ParseError, which the caller turns into a FAILED document.
func (r *ParserRegistry) Parse(data []byte, mimeType, fileName string) (*models.ParsedDocument, error) {
	for _, p := range r.parsers {
		if p.Supports(mimeType) {
			parsed, err := p.Parse(data, fileName)
			if err != nil {
				return nil, err
			}
			if parsed.Title == "" {
				parsed.Title = inferTitle(parsed, fileName)
			}
			return parsed, nil
		}
	}
	return nil, &models.ParseError{MimeType: mimeType, Reason: "no parser registered"}
}

// inferTitle picks the document title: the first section title when
// present, otherwise the file name without extension.
func inferTitle(parsed *models.ParsedDocument, fileName string) string {
	for _, section := range parsed.Sections {
		if title := strings.TrimSpace(section.Title); title != "" {
			return title
		}
	}
	if dot := strings.LastIndex(fileName, "."); dot > 0 {
		return fileName[:dot]
	}
	return fileName
}
