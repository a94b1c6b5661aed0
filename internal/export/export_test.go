package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

func sampleResult() statement.ExtractionResult {
	return statement.ExtractionResult{
		Records: []statement.CleanRecord{
			{
				Category:      statement.CategoryRevenue,
				LineItem:      "Revenue from Operations",
				Year:          "2024",
				Value:         1000,
				Unit:          statement.DefaultUnit,
				Confidence:    statement.ConfidenceHigh,
				SourceSnippet: "Revenue from Operations: 1,000",
			},
			{
				Category:      statement.CategoryRevenue,
				LineItem:      "Revenue from Operations",
				Year:          "2023",
				Value:         900,
				Unit:          statement.DefaultUnit,
				Confidence:    statement.ConfidenceHigh,
				SourceSnippet: "Revenue from Operations: 900",
			},
			{
				Category:      statement.CategoryProfit,
				LineItem:      "Net Profit",
				Year:          "2024",
				Value:         -500,
				Unit:          statement.DefaultUnit,
				Confidence:    statement.ConfidenceHigh,
				SourceSnippet: "Net Profit: (500)",
			},
		},
		YearsDetected: []string{"2023", "2024"},
		Notes:         "",
	}
}

func TestCSV_FlattensRecords(t *testing.T) {
	out, err := CSV(sampleResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "category" || rows[0][2] != "line_item" {
		t.Errorf("unexpected header row: %v", rows[0])
	}
	if rows[1][2] != "Revenue from Operations" || rows[1][3] != "2024" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
	if rows[1][4] != "1000" {
		t.Errorf("expected value 1000, got %q", rows[1][4])
	}
	if rows[3][4] != "-500" {
		t.Errorf("expected negative value preserved, got %q", rows[3][4])
	}
	if rows[3][7] != "Net Profit: (500)" {
		t.Errorf("expected source snippet carried, got %q", rows[3][7])
	}
}

func TestCSV_EmptyResultKeepsHeader(t *testing.T) {
	out, err := CSV(statement.ExtractionResult{
		Records:       []statement.CleanRecord{},
		YearsDetected: []string{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}

func TestXLSX_PivotSheetLayout(t *testing.T) {
	out, err := XLSX(sampleResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	cell := func(sheet, ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		if err != nil {
			t.Fatalf("read %s!%s: %v", sheet, ref, err)
		}
		return v
	}

	if cell("Statement", "A1") != "Category" || cell("Statement", "B1") != "Line Item" {
		t.Error("unexpected pivot header")
	}
	// Years ascend left to right.
	if cell("Statement", "C1") != "2023" || cell("Statement", "D1") != "2024" {
		t.Errorf("expected year columns 2023, 2024, got %q, %q",
			cell("Statement", "C1"), cell("Statement", "D1"))
	}
	if cell("Statement", "B2") != "Revenue from Operations" {
		t.Errorf("expected first pivot row Revenue from Operations, got %q", cell("Statement", "B2"))
	}
	if cell("Statement", "C2") != "900" || cell("Statement", "D2") != "1000" {
		t.Errorf("unexpected pivot values: %q, %q",
			cell("Statement", "C2"), cell("Statement", "D2"))
	}
	// Net Profit has no 2023 record, so that cell stays empty.
	if cell("Statement", "C3") != "" {
		t.Errorf("expected blank cell for missing year, got %q", cell("Statement", "C3"))
	}
	if cell("Statement", "D3") != "-500" {
		t.Errorf("expected -500, got %q", cell("Statement", "D3"))
	}
}

func TestXLSX_RecordsSheetCarriesFlatRows(t *testing.T) {
	out, err := XLSX(sampleResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Records")
	if err != nil {
		t.Fatalf("read records sheet: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Category" || rows[0][6] != "Confidence" {
		t.Errorf("unexpected records header: %v", rows[0])
	}
	if rows[1][3] != "2024" || rows[1][4] != "1000" {
		t.Errorf("unexpected first record row: %v", rows[1])
	}
	if rows[3][6] != statement.ConfidenceHigh {
		t.Errorf("expected confidence %q, got %q", statement.ConfidenceHigh, rows[3][6])
	}
}
