package models

import "fmt"

// ParsedDocument is the parser output handed to the chunker. FullText is a
// plain-text concatenation of the document; section and image offsets index
// into it.
type ParsedDocument struct {
	FullText string
	Title    string
	Sections []ParsedSection
	Tables   []ParsedTable
	Images   []ParsedImage
}

// ParsedSection is one node of the section tree. Offsets refer to FullText.
type ParsedSection struct {
	Title       string
	Breadcrumb  []string
	Level       int
	Content     string
	StartOffset int
	EndOffset   int
}

// ParsedTable is a table rendered as a GitHub-flavored pipe table.
type ParsedTable struct {
	Markdown string
	Offset   int
}

// ParsedImage is an extracted image with best-effort spatial metadata.
// PDF images carry page coordinates in PDF points; other formats carry
// only the approximate text offset.
type ParsedImage struct {
	Data              []byte
	MimeType          string
	AltText           string
	Width             int
	Height            int
	ApproximateOffset int
	PageNumber        int // 0 when unknown
	XPDF              float64
	YPDF              float64
	WidthPt           float64
	HeightPt          float64
	PageWidthPt       float64
	PageHeightPt      float64
	GroupID           int // -1 when ungrouped
	GroupMembers      []int
}

// ParseError marks a document as unprocessable; the caller moves the
// document to FAILED.
type ParseError struct {
	MimeType string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.MimeType, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.MimeType, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
