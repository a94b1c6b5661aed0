// Package statement defines the data model shared across the extraction
// pipeline: positioned page content in, validated line-item records out.
package statement

// TextToken is one run of readable text placed on a page by the PDF text
// layer. Coordinates follow the PDF convention: larger y is higher on the
// page.
type TextToken struct {
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Page   int     `json:"page"`
}

// PageImage is one rendered page, carried as JPEG bytes and base64-encoded
// only at the oracle boundary.
type PageImage struct {
	Page      int
	MediaType string
	Data      []byte
}

// JPEGMediaType is the media type every rasterizer implementation emits.
const JPEGMediaType = "image/jpeg"

// Document bundles the collaborator inputs for one extraction run.
type Document struct {
	Tokens []TextToken
	Images []PageImage
}

// GridCell belongs to exactly one GridRow. ColumnIndex is assigned during
// column alignment and left nil when no detected column is within
// tolerance.
type GridCell struct {
	X           float64 `json:"x"`
	Text        string  `json:"text"`
	ColumnIndex *int    `json:"column_index,omitempty"`
}

// GridRow groups cells sharing a baseline, ordered left to right.
type GridRow struct {
	Y     float64    `json:"y"`
	Cells []GridCell `json:"cells"`
}

// Grid is the layout engine's output: rows top of page first, column
// centroids ascending. Every set ColumnIndex indexes into Columns.
type Grid struct {
	Rows    []GridRow `json:"rows"`
	Columns []float64 `json:"columns"`
}

// RawRecord is the merge step's output, before normalization. Any field
// may be empty; nothing here is trusted yet. It exists only inside one
// extraction run.
type RawRecord struct {
	Category      string
	SubCategory   string
	LineItem      string
	Year          string
	Value         string
	Unit          string
	Confidence    string
	SourceSnippet string
}

// CleanRecord is one validated line-item value for one fiscal year. Year
// is always four digits and SourceSnippet is never empty; records that
// cannot satisfy either are dropped during normalization, so Value is a
// concrete number.
type CleanRecord struct {
	Category      string  `json:"category"`
	SubCategory   *string `json:"sub_category"`
	LineItem      string  `json:"line_item"`
	Year          string  `json:"year"`
	Value         float64 `json:"value"`
	Unit          string  `json:"unit"`
	Confidence    string  `json:"confidence"`
	SourceSnippet string  `json:"source_snippet"`
}

// ExtractionResult is the terminal artifact of one run. Each upload
// produces exactly one fresh instance; it is never persisted past the
// session.
type ExtractionResult struct {
	Records       []CleanRecord `json:"records"`
	YearsDetected []string      `json:"years_detected"`
	Notes         string        `json:"notes"`
}

// Confidence levels a CleanRecord may carry.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// Categories assigned by classification or the keyword fallback.
const (
	CategoryRevenue  = "Revenue"
	CategoryExpenses = "Expenses"
	CategoryProfit   = "Profit"
	CategoryOther    = "Other"
)

// DefaultUnit is the filing convention assumed when no unit is stated.
const DefaultUnit = "Crores"
