// Package pipeline orchestrates the staged extraction of line items from
// a statement document. Every stage exchanges a typed payload with the
// oracle; the merge steps that combine stage outputs are deterministic
// and never call out.
package pipeline

// Detection is the first-stage verdict on whether the document carries a
// financial table worth extracting.
type Detection struct {
	HasTable   bool   `json:"hasTable"`
	TableType  string `json:"tableType"`
	Confidence string `json:"confidence"`
}

// ClassifiedColumn assigns a temporal meaning to a grid column index.
// Year is only meaningful when Type is "year".
type ClassifiedColumn struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	Year  string `json:"year,omitempty"`
}

// ClassifiedRow assigns a statement category to a grid row index.
type ClassifiedRow struct {
	Index    int    `json:"index"`
	Category string `json:"category"`
}

// Classification is the oracle's read of the grid skeleton. It carries
// indices and semantics only; cell text stays in the grid.
type Classification struct {
	Columns []ClassifiedColumn `json:"columns"`
	Rows    []ClassifiedRow    `json:"rows"`
}

// StructureColumn is a transcribed column header from the vision variant.
type StructureColumn struct {
	Index int    `json:"index"`
	Label string `json:"label,omitempty"`
}

// StructureRow is a transcribed table row from the vision variant. Values
// holds exact cell text in column order.
type StructureRow struct {
	Index    int      `json:"index"`
	LineItem string   `json:"lineItem"`
	Values   []string `json:"values"`
}

// Structure is the vision variant's full-table transcription.
type Structure struct {
	Columns []StructureColumn `json:"columns"`
	Rows    []StructureRow    `json:"rows"`
}
