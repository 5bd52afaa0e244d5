package local_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/shpitdev/company-revenue-lookup/pkg/pipeline/io/local"
)

func TestReadTableCSV(t *testing.T) {
	t.Parallel()

	t.Run("comma separated", func(t *testing.T) {
		in := "Nom,SIREN\nACME,552100554\nFoo,\n"
		tbl, err := local.ReadTable(strings.NewReader(in), "list.csv")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tbl.Header) != 2 || tbl.Header[1] != "SIREN" {
			t.Fatalf("unexpected header: %#v", tbl.Header)
		}
		if got := tbl.Column(1); len(got) != 2 || got[0] != "552100554" || got[1] != "" {
			t.Fatalf("unexpected column: %#v", got)
		}
	})

	t.Run("semicolon separated with BOM", func(t *testing.T) {
		in := "\ufeffsiren;ville\n552 100 554;Paris\n"
		tbl, err := local.ReadTable(strings.NewReader(in), "LIST.CSV")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tbl.Comma != ';' || tbl.Header[0] != "siren" {
			t.Fatalf("unexpected table: comma=%q header=%#v", tbl.Comma, tbl.Header)
		}
		if tbl.Cell(0, 0) != "552 100 554" {
			t.Fatalf("unexpected cell: %q", tbl.Cell(0, 0))
		}
	})

	t.Run("ragged rows are padded", func(t *testing.T) {
		in := "a,b\n1\n1,2,3\n"
		tbl, err := local.ReadTable(strings.NewReader(in), "x.csv")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tbl.Header) != 3 {
			t.Fatalf("expected header widened to 3, got %#v", tbl.Header)
		}
		for i, row := range tbl.Rows {
			if len(row) != 3 {
				t.Fatalf("row %d has %d cells", i, len(row))
			}
		}
	})

	t.Run("empty file errors", func(t *testing.T) {
		if _, err := local.ReadTable(strings.NewReader(""), "x.csv"); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unsupported extension errors", func(t *testing.T) {
		if _, err := local.ReadTable(strings.NewReader("a\n"), "x.txt"); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestWriteTableCSVKeepsDelimiter(t *testing.T) {
	t.Parallel()

	tbl, err := local.ReadTable(strings.NewReader("siren;nom\n552100554;ACME\n"), "in.csv")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := tbl.AppendColumn("Year", []any{"2023"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tbl.AppendColumn("Revenue (thousands)", []any{int64(1500)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	var buf bytes.Buffer
	if err := local.WriteTable(&buf, "out.csv", tbl); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "siren;nom;Year;Revenue (thousands)\n552100554;ACME;2023;1500\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestAppendColumnRejectsMisalignedValues(t *testing.T) {
	t.Parallel()

	tbl := &local.Table{Header: []string{"siren"}, Rows: [][]any{{"1"}, {"2"}}}
	if err := tbl.AppendColumn("Year", []any{"2023"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	_ = f.SetSheetName("Sheet1", "Clients")
	_ = f.SetCellValue("Clients", "A1", "Raison sociale")
	_ = f.SetCellValue("Clients", "B1", "Numéro SIREN")
	_ = f.SetCellValue("Clients", "A2", "ACME")
	_ = f.SetCellValue("Clients", "B2", "552100554")
	_ = f.SetCellValue("Clients", "A3", "Vide")
	var in bytes.Buffer
	if err := f.Write(&in); err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	_ = f.Close()

	tbl, err := local.ReadTable(&in, "clients.xlsx")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tbl.Sheet != "Clients" || len(tbl.Rows) != 2 {
		t.Fatalf("unexpected table: sheet=%q rows=%d", tbl.Sheet, len(tbl.Rows))
	}
	col := local.DetectIdentifierColumn(tbl.Header)
	if col != 1 {
		t.Fatalf("expected SIREN column 1, got %d", col)
	}
	if tbl.Cell(1, 1) != "" {
		t.Fatalf("expected padded empty cell, got %q", tbl.Cell(1, 1))
	}

	if err := tbl.AppendColumn("Revenue (thousands)", []any{int64(1500), "SIREN invalide"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	var out bytes.Buffer
	if err := local.WriteTable(&out, local.OutputName("clients.xlsx"), tbl); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := excelize.OpenReader(&out)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() {
		_ = got.Close()
	}()
	if v, _ := got.GetCellValue("Clients", "C1"); v != "Revenue (thousands)" {
		t.Fatalf("unexpected header cell: %q", v)
	}
	if v, _ := got.GetCellValue("Clients", "C2"); v != "1500" {
		t.Fatalf("unexpected revenue cell: %q", v)
	}
	if v, _ := got.GetCellValue("Clients", "C3"); v != "SIREN invalide" {
		t.Fatalf("unexpected error cell: %q", v)
	}
}

func TestDetectIdentifierColumn(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		header []string
		want   int
	}{
		{name: "whole word wins over substring", header: []string{"siren_parent", "Nom", "SIREN"}, want: 2},
		{name: "whole word inside phrase", header: []string{"Nom", "numero siren client"}, want: 1},
		{name: "substring", header: []string{"Nom", "NumSiren"}, want: 1},
		{name: "fallback first column", header: []string{"id", "nom"}, want: 0},
		{name: "empty header", header: nil, want: -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := local.DetectIdentifierColumn(tc.header); got != tc.want {
				t.Fatalf("DetectIdentifierColumn(%#v) = %d, want %d", tc.header, got, tc.want)
			}
		})
	}
}

func TestColumnIndex(t *testing.T) {
	t.Parallel()

	if got := local.ColumnIndex([]string{"Nom", " Siren "}, "siren"); got != 1 {
		t.Fatalf("unexpected index: %d", got)
	}
	if got := local.ColumnIndex([]string{"Nom"}, "siren"); got != -1 {
		t.Fatalf("unexpected index: %d", got)
	}
}

func TestOutputName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"clients.xlsx":        "clients_with_CA.xlsx",
		"clients.XLS":         "clients_with_CA.xlsx",
		"export.csv":          "export_with_CA.csv",
		`C:\Users\me\a.xlsx`:  "a_with_CA.xlsx",
		"/tmp/upload/b.csv":   "b_with_CA.csv",
		"":                    "siren_with_CA.xlsx",
		"notes.v2.final.xlsx": "notes.v2.final_with_CA.xlsx",
	}
	for in, want := range cases {
		if got := local.OutputName(in); got != want {
			t.Fatalf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}
