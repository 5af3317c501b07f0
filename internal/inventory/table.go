package inventory

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Supported document formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Mime types seen in supplier folders
const (
	MimeCSV         = "text/csv"
	MimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeXLS         = "application/vnd.ms-excel"
	MimeGoogleSheet = "application/vnd.google-apps.spreadsheet"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Table is one supplier sheet; every row has len(Columns) cells
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of data rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of column, or -1
func (t *Table) Index(column string) int {
	if column == "" {
		return -1
	}
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Cell returns the value of column in row i, or ""
func (t *Table) Cell(i int, column string) string {
	idx := t.Index(column)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i][idx]
}

// FormatOf picks a parser from the file name, falling back to the mime type
func FormatOf(name, mimeType string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	}
	switch mimeType {
	case MimeCSV:
		return FormatCSV
	case MimeXLSX, MimeGoogleSheet:
		return FormatXLSX
	}
	return ""
}

// ParseTable decodes a document in the given format
func ParseTable(format string, data []byte) (*Table, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(data)
	case FormatXLSX:
		return ParseXLSX(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// ParseCSV reads comma-separated text, retrying with ';' when the comma parse
// fails or yields a single column that still contains semicolons
func ParseCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	records, err := readDelimited(data, ',')
	if err != nil || looksSemicolon(records) {
		retry, retryErr := readDelimited(data, ';')
		if retryErr != nil {
			if err != nil {
				return nil, fmt.Errorf("failed to parse csv: %w", err)
			}
			return nil, fmt.Errorf("failed to parse csv: %w", retryErr)
		}
		records = retry
	}
	return buildTable(records), nil
}

// ParseXLSX reads the first worksheet of a workbook with raw cell values
func ParseXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{}, nil
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return buildTable(rows), nil
}

func readDelimited(data []byte, sep rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func looksSemicolon(records [][]string) bool {
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		return len(rec) == 1 && strings.Contains(rec[0], ";")
	}
	return false
}

// buildTable takes the first non-blank record as the header and pads or
// truncates every later record to the header width
func buildTable(records [][]string) *Table {
	t := &Table{}
	start := -1
	for i, rec := range records {
		if !isBlank(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return t
	}

	header := records[start]
	// trailing empty header cells are spreadsheet padding
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	t.Columns = make([]string, len(header))
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(h)
	}

	for _, rec := range records[start+1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(t.Columns))
		for i := range row {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		if isBlank(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
