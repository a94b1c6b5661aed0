package export

import (
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

type csvRecord struct {
	Category      string  `csv:"category"`
	SubCategory   string  `csv:"sub_category"`
	LineItem      string  `csv:"line_item"`
	Year          string  `csv:"year"`
	Value         float64 `csv:"value"`
	Unit          string  `csv:"unit"`
	Confidence    string  `csv:"confidence"`
	SourceSnippet string  `csv:"source_snippet"`
}

// CSV returns the flat record list as UTF-8 CSV with a header row.
func CSV(res statement.ExtractionResult) ([]byte, error) {
	rows := make([]csvRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		sub := ""
		if rec.SubCategory != nil {
			sub = *rec.SubCategory
		}
		rows = append(rows, csvRecord{
			Category:      rec.Category,
			SubCategory:   sub,
			LineItem:      rec.LineItem,
			Year:          rec.Year,
			Value:         rec.Value,
			Unit:          rec.Unit,
			Confidence:    rec.Confidence,
			SourceSnippet: rec.SourceSnippet,
		})
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	return out, nil
}
