// Package export renders extraction results as downloadable XLSX and CSV
// documents.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

const (
	pivotSheet   = "Statement"
	recordsSheet = "Records"
)

// XLSX returns a workbook with two sheets: a pivoted statement view (one
// row per line item, one column per detected year) and the flat record
// list behind it.
func XLSX(res statement.ExtractionResult) ([]byte, error) {
	pivot := statement.BuildPivot(res)

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), pivotSheet)
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return nil, fmt.Errorf("create records sheet: %w", err)
	}

	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	headers := []string{"Category", "Line Item"}
	headers = append(headers, pivot.Years...)
	for i, h := range headers {
		write(pivotSheet, i+1, 1, h)
	}
	for i, row := range pivot.Rows {
		write(pivotSheet, 1, i+2, row.Category)
		write(pivotSheet, 2, i+2, row.LineItem)
		for col, year := range pivot.Years {
			if v, ok := row.Values[year]; ok {
				write(pivotSheet, col+3, i+2, v)
			}
		}
	}

	recordHeaders := []string{
		"Category",
		"Sub Category",
		"Line Item",
		"Year",
		"Value",
		"Unit",
		"Confidence",
		"Source",
	}
	for i, h := range recordHeaders {
		write(recordsSheet, i+1, 1, h)
	}
	for i, rec := range res.Records {
		row := i + 2
		write(recordsSheet, 1, row, rec.Category)
		if rec.SubCategory != nil {
			write(recordsSheet, 2, row, *rec.SubCategory)
		}
		write(recordsSheet, 3, row, rec.LineItem)
		write(recordsSheet, 4, row, rec.Year)
		write(recordsSheet, 5, row, rec.Value)
		write(recordsSheet, 6, row, rec.Unit)
		write(recordsSheet, 7, row, rec.Confidence)
		write(recordsSheet, 8, row, rec.SourceSnippet)
	}

	// Widen the text-heavy columns.
	_ = f.SetColWidth(pivotSheet, "A", "A", 14)
	_ = f.SetColWidth(pivotSheet, "B", "B", 32)
	_ = f.SetColWidth(recordsSheet, "C", "C", 32)
	_ = f.SetColWidth(recordsSheet, "H", "H", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
