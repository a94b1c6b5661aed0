package statement

import "sort"

// PivotRow is one line item across every detected year.
type PivotRow struct {
	Category string             `json:"category"`
	LineItem string             `json:"line_item"`
	Values   map[string]float64 `json:"values"`
}

// PivotTable is the presentation shape handed to display and export: one
// row per line item, one column per detected year.
type PivotTable struct {
	Years []string   `json:"years"`
	Rows  []PivotRow `json:"rows"`
}

var categoryRank = map[string]int{
	CategoryRevenue:  0,
	CategoryExpenses: 1,
	CategoryProfit:   2,
	CategoryOther:    3,
}

// BuildPivot folds per-year records into one row per (category, line item).
// Rows are grouped category-major in statement order (Revenue, Expenses,
// Profit, Other); within a category line items keep first-seen order. When
// two records land on the same cell the later one wins.
func BuildPivot(res ExtractionResult) PivotTable {
	years := append([]string(nil), res.YearsDetected...)
	sort.Strings(years)

	index := make(map[string]int)
	rows := make([]PivotRow, 0)
	for _, rec := range res.Records {
		key := rec.Category + "\x00" + rec.LineItem
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, PivotRow{
				Category: rec.Category,
				LineItem: rec.LineItem,
				Values:   make(map[string]float64),
			})
		}
		rows[i].Values[rec.Year] = rec.Value
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rankOf(rows[i].Category) < rankOf(rows[j].Category)
	})

	return PivotTable{Years: years, Rows: rows}
}

func rankOf(category string) int {
	if r, ok := categoryRank[category]; ok {
		return r
	}
	return len(categoryRank)
}
