package parsers

import (
	"fmt"
	"path/filepath"
	"strings"
)

// GetParser picks a parser from the uploaded file's extension.
func GetParser(filename string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return NewCSVParser(), nil
	case ".xlsx":
		return NewXLSXParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for file type of %q", filename)
	}
}
