package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/wealthfolio/backend/src/models"
)

type CSVParser struct{}

func NewCSVParser() *CSVParser { return &CSVParser{} }

func (p *CSVParser) Parse(file io.Reader, sourceName string) (*models.RawBatch, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // broker exports pad and truncate rows freely
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV records: %w", err)
	}

	batch := &models.RawBatch{SourceFile: sourceName, Headers: header}
	for i, record := range records {
		batch.Rows = append(batch.Rows, models.RawRow{
			Cells:      record,
			SourceFile: sourceName,
			RowIndex:   i,
		})
	}
	return batch, nil
}
