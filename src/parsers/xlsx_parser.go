package parsers

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/username/wealthfolio/backend/src/models"
)

// XLSXParser reads the first sheet of a workbook. Several brokers only offer
// holdings exports as .xlsx.
type XLSXParser struct{}

func NewXLSXParser() *XLSXParser { return &XLSXParser{} }

func (p *XLSXParser) Parse(file io.Reader, sourceName string) (*models.RawBatch, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	// Skip leading blank rows; the first populated row is the header.
	start := 0
	for start < len(rows) && len(rows[start]) == 0 {
		start++
	}
	if start == len(rows) {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	batch := &models.RawBatch{SourceFile: sourceName, Headers: rows[start]}
	for i, cells := range rows[start+1:] {
		batch.Rows = append(batch.Rows, models.RawRow{
			Cells:      cells,
			SourceFile: sourceName,
			RowIndex:   i,
		})
	}
	return batch, nil
}
