package inventory

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV_Comma(t *testing.T) {
	data := []byte("\xef\xbb\xbfProject,Rooms,Price\n\nOrbi,2,95000\nOrbi,3\n,,\n")

	table, err := ParseCSV(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Project", "Rooms", "Price"}, table.Columns)
	assert.Equal(t, [][]string{
		{"Orbi", "2", "95000"},
		{"Orbi", "3", ""},
	}, table.Rows)
}

func TestParseCSV_SemicolonRetry(t *testing.T) {
	data := []byte("ЖК;Комнаты;Цена\nOrbi;2;95 000\n")

	table, err := ParseCSV(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"ЖК", "Комнаты", "Цена"}, table.Columns)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "95 000", table.Cell(0, "Цена"))
}

func TestParseXLSX_FirstSheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Unit", "Area", "Price"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"A-1", 48.5, 120000}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"A-2", 61, 150000}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := ParseTable(FormatXLSX, buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, []string{"Unit", "Area", "Price"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "48.5", table.Cell(0, "Area"))
	assert.Equal(t, "150000", table.Cell(1, "Price"))
}

func TestParseTable_Unsupported(t *testing.T) {
	_, err := ParseTable("", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatOf("stock.CSV", ""))
	assert.Equal(t, FormatXLSX, FormatOf("stock.xlsx", ""))
	assert.Equal(t, FormatXLSX, FormatOf("Прайс", MimeGoogleSheet))
	assert.Equal(t, "", FormatOf("old.xls", MimeXLS))
}
