package local

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

func readXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	t := &Table{Sheet: sheet, Header: trimHeader(rows[0])}
	for _, rec := range rows[1:] {
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func writeXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	sheet := t.Sheet
	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("name sheet %q: %w", sheet, err)
		}
	}

	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range t.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := t.Rows[i]
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return nil
}
