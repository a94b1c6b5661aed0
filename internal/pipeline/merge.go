package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/normalize"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

// MergeGrid combines the grid skeleton with the oracle's classification.
// The line item is the row's first cell; each classified year column
// contributes the exact cell text at the intersection. Empty cells and
// non-year columns produce nothing; values are never invented.
func MergeGrid(g statement.Grid, cls Classification) []statement.RawRecord {
	records := make([]statement.RawRecord, 0, len(cls.Rows))
	for _, row := range cls.Rows {
		if row.Index < 0 || row.Index >= len(g.Rows) {
			continue
		}
		gridRow := g.Rows[row.Index]
		if len(gridRow.Cells) == 0 {
			continue
		}
		lineItem := strings.TrimSpace(gridRow.Cells[0].Text)
		if lineItem == "" {
			continue
		}
		for _, col := range cls.Columns {
			if col.Type != "year" || col.Year == "" {
				continue
			}
			value := strings.TrimSpace(cellAt(gridRow, col.Index))
			if value == "" {
				continue
			}
			records = append(records, rawRecord(row.Category, lineItem, col.Year, value))
		}
	}
	return records
}

// cellAt returns the text of the row's cell assigned to the given column,
// or "" when no cell landed there.
func cellAt(row statement.GridRow, columnIndex int) string {
	for _, cell := range row.Cells {
		if cell.ColumnIndex != nil && *cell.ColumnIndex == columnIndex {
			return cell.Text
		}
	}
	return ""
}

// MergeStructure pairs the vision transcription with the classification by
// index. Mismatched dimensions are logged and skipped, never fatal; the
// surviving pairs still produce records.
func MergeStructure(st Structure, cls Classification, log *slog.Logger) []statement.RawRecord {
	rowsByIndex := make(map[int]StructureRow, len(st.Rows))
	for _, r := range st.Rows {
		rowsByIndex[r.Index] = r
	}

	records := make([]statement.RawRecord, 0, len(cls.Rows))
	for _, row := range cls.Rows {
		sr, ok := rowsByIndex[row.Index]
		if !ok {
			log.Warn("pipeline.merge.row_missing", "row", row.Index)
			continue
		}
		lineItem := strings.TrimSpace(sr.LineItem)
		if lineItem == "" {
			continue
		}
		for _, col := range cls.Columns {
			if col.Type != "year" || col.Year == "" {
				continue
			}
			if col.Index < 0 || col.Index >= len(sr.Values) {
				log.Warn("pipeline.merge.column_out_of_range",
					"row", row.Index,
					"column", col.Index,
					"values", len(sr.Values),
				)
				continue
			}
			value := strings.TrimSpace(sr.Values[col.Index])
			if value == "" {
				continue
			}
			records = append(records, rawRecord(row.Category, lineItem, col.Year, value))
		}
	}
	return records
}

func rawRecord(category, lineItem, year, value string) statement.RawRecord {
	return statement.RawRecord{
		Category:      category,
		LineItem:      lineItem,
		Year:          year,
		Value:         value,
		Confidence:    statement.ConfidenceHigh,
		SourceSnippet: lineItem + ": " + value,
	}
}

// checkStructureEvidence rejects a transcription whose line items carry no
// financial vocabulary. It runs inside the oracle's retry loop, so a
// failed check costs the attempt it ran in.
func checkStructureEvidence(payload json.RawMessage) error {
	var st Structure
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("decode structure: %w", err)
	}
	items := make([]string, 0, len(st.Rows))
	for _, r := range st.Rows {
		items = append(items, r.LineItem)
	}
	if !normalize.HasFinancialKeywords(items) {
		return fmt.Errorf("transcription contains no financial line items")
	}
	return nil
}
