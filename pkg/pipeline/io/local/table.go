package local

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
)

// Format is a supported spreadsheet encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Table is one sheet: a header row and data rows. Cells read from a file are strings;
// cells appended by the pipeline may be numbers.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]any

	// Comma is the CSV delimiter the table was read with (',' or ';').
	Comma rune
}

// Cell returns row r, column c as text. Missing cells are empty.
func (t *Table) Cell(r, c int) string {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return ""
	}
	v := t.Rows[r][c]
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Column returns every value of column c as text.
func (t *Table) Column(c int) []string {
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Cell(i, c)
	}
	return out
}

// AppendColumn adds a column named name. values must be aligned with Rows.
func (t *Table) AppendColumn(name string, values []any) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.Rows))
	}
	width := len(t.Header)
	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = padRow(t.Rows[i], width)
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// FormatOf infers the encoding from a filename. Legacy .xls names are read as workbooks.
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported file type %q (want .xlsx, .xls or .csv)", filepath.Ext(filename))
	}
}

// ReadTable reads the first sheet of a workbook, or a CSV file, choosing by filename.
// The first row is the header.
func ReadTable(r io.Reader, filename string) (*Table, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(filename), err)
	}
	var t *Table
	switch format {
	case FormatCSV:
		t, err = readCSV(b)
	default:
		t, err = readXLSX(bytes.NewReader(b))
	}
	if err != nil {
		return nil, err
	}
	// Ragged rows: widen the header to the widest row, then pad every row to it.
	for _, row := range t.Rows {
		for len(t.Header) < len(row) {
			t.Header = append(t.Header, "")
		}
	}
	for i := range t.Rows {
		t.Rows[i] = padRow(t.Rows[i], len(t.Header))
	}
	return t, nil
}

// WriteTable encodes t in the format implied by filename.
func WriteTable(w io.Writer, filename string, t *Table) error {
	format, err := FormatOf(filename)
	if err != nil {
		return err
	}
	if format == FormatCSV {
		return writeCSV(w, t)
	}
	return writeXLSX(w, t)
}

var (
	wholeWordSIREN = regexp.MustCompile(`(?i)(^|\s)siren(\s|$)`)
	anySIREN       = regexp.MustCompile(`(?i)siren`)
)

// DetectIdentifierColumn picks the column holding company identifiers: a header that
// is the word "siren", else one containing it, else the first column. It returns -1
// for an empty header.
func DetectIdentifierColumn(header []string) int {
	if len(header) == 0 {
		return -1
	}
	for i, h := range header {
		if wholeWordSIREN.MatchString(h) {
			return i
		}
	}
	for i, h := range header {
		if anySIREN.MatchString(h) {
			return i
		}
	}
	return 0
}

// ColumnIndex finds name in header, case-insensitively.
func ColumnIndex(header []string, name string) int {
	name = strings.TrimSpace(name)
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// OutputName derives the download name for an augmented file: "<base>_with_CA.<ext>".
// CSV stays CSV; every workbook is written as .xlsx.
func OutputName(original string) string {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(original), `\`, "/"))
	ext := strings.ToLower(filepath.Ext(name))
	base := name
	switch ext {
	case ".xlsx", ".xls", ".csv":
		base = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if base == "" || base == "." || base == "/" {
		base = "siren"
	}
	out := "xlsx"
	if ext == ".csv" {
		out = "csv"
	}
	return base + "_with_CA." + out
}

func padRow(row []any, width int) []any {
	for len(row) < width {
		row = append(row, "")
	}
	return row
}
