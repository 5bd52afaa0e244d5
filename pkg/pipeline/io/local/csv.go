package local

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(b []byte) (*Table, error) {
	b = bytes.TrimPrefix(b, utf8BOM)
	comma := sniffComma(b)

	cr := csv.NewReader(bytes.NewReader(b))
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &Table{Header: trimHeader(header), Comma: comma}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func writeCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if t.Comma != 0 {
		cw.Comma = t.Comma
	}
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, 0, len(t.Header))
	for i := range t.Rows {
		rec = rec[:0]
		for c := range t.Rows[i] {
			rec = append(rec, t.Cell(i, c))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// sniffComma prefers ';' when the header line has more of them than ',', as
// spreadsheets exported with a French locale do.
func sniffComma(b []byte) rune {
	line, _, _ := bytes.Cut(b, []byte("\n"))
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func trimHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
	}
	return out
}
