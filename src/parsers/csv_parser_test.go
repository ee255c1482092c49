package parsers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCSVParserBasic(t *testing.T) {
	csv := "Symbol,Quantity,Average Price\nRELIANCE,10,2450.50\nTCS,5,3500\n"
	batch, err := NewCSVParser().Parse(strings.NewReader(csv), "holdings.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"Symbol", "Quantity", "Average Price"}, batch.Headers)
	require.Len(t, batch.Rows, 2)
	assert.Equal(t, []string{"RELIANCE", "10", "2450.50"}, batch.Rows[0].Cells)
	assert.Equal(t, 0, batch.Rows[0].RowIndex, "row indices count from the first data row")
	assert.Equal(t, 1, batch.Rows[1].RowIndex)
	assert.Equal(t, "holdings.csv", batch.Rows[0].SourceFile)
}

func TestCSVParserStripsBOM(t *testing.T) {
	csv := "\ufeffSymbol,Quantity\nTCS,5\n"
	batch, err := NewCSVParser().Parse(strings.NewReader(csv), "bom.csv")
	require.NoError(t, err)
	assert.Equal(t, "Symbol", batch.Headers[0])
}

func TestCSVParserRaggedRows(t *testing.T) {
	csv := "Symbol,Quantity,Average Price\nRELIANCE,10\nTCS,5,3500,extra\n"
	batch, err := NewCSVParser().Parse(strings.NewReader(csv), "ragged.csv")
	require.NoError(t, err, "padded and truncated rows are tolerated")
	assert.Len(t, batch.Rows[0].Cells, 2)
	assert.Len(t, batch.Rows[1].Cells, 4)
}

func TestCSVParserEmptyInput(t *testing.T) {
	_, err := NewCSVParser().Parse(strings.NewReader(""), "empty.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestXLSXParser(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Symbol", "Quantity", "Average Price"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"RELIANCE", 10, 2450.5}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	batch, err := NewXLSXParser().Parse(&buf, "holdings.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Symbol", "Quantity", "Average Price"}, batch.Headers, "leading blank rows are skipped")
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, "RELIANCE", batch.Rows[0].Cells[0])
}

func TestGetParserByExtension(t *testing.T) {
	p, err := GetParser("holdings.CSV")
	require.NoError(t, err)
	assert.IsType(t, &CSVParser{}, p)

	p, err = GetParser("holdings.xlsx")
	require.NoError(t, err)
	assert.IsType(t, &XLSXParser{}, p)

	_, err = GetParser("holdings.pdf")
	require.Error(t, err)
}
