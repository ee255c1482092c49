package parsers

import (
	"io"

	"github.com/username/wealthfolio/backend/src/models"
)

// Parser extracts the header row and raw data rows from one uploaded file.
// Cell decoding (CSV dialect, XLSX unzipping) happens here; everything
// downstream works on plain strings.
type Parser interface {
	Parse(file io.Reader, sourceName string) (*models.RawBatch, error)
}
