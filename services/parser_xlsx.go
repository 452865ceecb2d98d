package services

import (
	"bytes"

	"github.com/xuri/excelize/v2"

	"docchat-platform/models"
)

// XLSXParser renders each sheet as one section containing a GFM pipe
// table, so spreadsheet content is searchable like any other document.
type XLSXParser struct{}

func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

func (p *XLSXParser) Supports(mimeType string) bool {
	return mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (p *XLSXParser) Parse(data []byte, fileName string) (*models.ParsedDocument, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &models.ParseError{MimeType: "xlsx", Reason: "invalid workbook", Err: err}
	}
	defer wb.Close()

	builder := &docBuilder{}
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}

		var table [][]string
		for _, row := range rows {
			empty := true
			for _, cell := range row {
				if cell != "" {
					empty = false
					break
				}
			}
			if !empty {
				table = append(table, row)
			}
		}
		if len(table) == 0 {
			continue
		}

		builder.StartSection(sheet, 1)
		builder.AddTable(pipeTable(table))
	}

	return builder.Build(), nil
}
