// Package normalize converts loosely-typed records from the extraction
// stages into validated ones. The failure policy throughout is dropping,
// never repair by inference: a record that cannot prove its year, value,
// or source evidence is removed, and the run carries on with what
// survives.
package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

var (
	calendarYearRe = regexp.MustCompile(`20\d{2}`)
	fiscalYearRe   = regexp.MustCompile(`(?i)FY\s*(\d{2,4})`)
)

// Year canonicalizes a raw year string to a 4-digit calendar year:
// "31/12/2024" and "FY2024" resolve to "2024", "FY25" to "2025". An empty
// result means the year could not be resolved and the record must drop.
func Year(raw string) string {
	if m := calendarYearRe.FindString(raw); m != "" {
		return m
	}
	if m := fiscalYearRe.FindStringSubmatch(raw); m != nil {
		switch digits := m[1]; len(digits) {
		case 2:
			return "20" + digits
		case 4:
			return digits
		}
	}
	return ""
}

// valueCleaner strips thousands separators, currency symbols, and interior
// spacing ahead of the sign check and the numeric parse.
var valueCleaner = strings.NewReplacer(
	",", "",
	" ", "",
	"$", "",
	"₹", "",
	"€", "",
	"£", "",
)

// Value parses a raw cell value into a number. Symbols are stripped
// before the sign check, so accounting negatives keep their sign whether
// the currency marker sits inside or outside the parentheses: "(500)",
// "$(500)" and "(₹500)" are all -500. The boolean is false when the
// cleaned string still fails to parse.
func Value(raw string) (float64, bool) {
	s := valueCleaner.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	if neg {
		f = -f
	}
	return f, true
}

// CategoryFor derives a category from line-item text when classification
// did not supply one. Keyword containment, case-insensitive, in priority
// order. A best-effort fallback, not a substitute for classification.
func CategoryFor(lineItem string) string {
	s := strings.ToLower(lineItem)
	switch {
	case strings.Contains(s, "revenue") || strings.Contains(s, "income"):
		return statement.CategoryRevenue
	case strings.Contains(s, "expense") || strings.Contains(s, "cost") || strings.Contains(s, "depreciation"):
		return statement.CategoryExpenses
	case strings.Contains(s, "profit") || strings.Contains(s, "loss"):
		return statement.CategoryProfit
	default:
		return statement.CategoryOther
	}
}

var financialKeywords = []string{
	"revenue", "income", "expense", "cost", "depreciation",
	"profit", "loss", "tax", "asset", "liabilit", "equity",
	"ebitda", "total",
}

// HasFinancialKeywords reports whether any of the given line items
// mentions a financial term. The structure stage uses this as an evidence
// check: a transcription of something that is not a financial statement
// should not survive to classification.
func HasFinancialKeywords(lineItems []string) bool {
	for _, item := range lineItems {
		s := strings.ToLower(item)
		for _, kw := range financialKeywords {
			if strings.Contains(s, kw) {
				return true
			}
		}
	}
	return false
}

// Records normalizes raw records and assembles the terminal result. Notes
// pass through untouched. Surviving records keep their input order;
// YearsDetected is the distinct set of normalized years, ascending.
func Records(raw []statement.RawRecord, notes string) statement.ExtractionResult {
	records := make([]statement.CleanRecord, 0, len(raw))
	yearSet := make(map[string]struct{})

	for _, r := range raw {
		snippet := strings.TrimSpace(r.SourceSnippet)
		if snippet == "" {
			continue
		}
		year := Year(r.Year)
		if year == "" {
			continue
		}
		value, ok := Value(r.Value)
		if !ok {
			continue
		}

		category := strings.TrimSpace(r.Category)
		if category == "" {
			category = CategoryFor(r.LineItem)
		}
		unit := strings.TrimSpace(r.Unit)
		if unit == "" {
			unit = statement.DefaultUnit
		}
		confidence := r.Confidence
		switch confidence {
		case statement.ConfidenceHigh, statement.ConfidenceMedium, statement.ConfidenceLow:
		default:
			confidence = statement.ConfidenceMedium
		}
		var subCategory *string
		if sc := strings.TrimSpace(r.SubCategory); sc != "" {
			subCategory = &sc
		}

		records = append(records, statement.CleanRecord{
			Category:      category,
			SubCategory:   subCategory,
			LineItem:      r.LineItem,
			Year:          year,
			Value:         value,
			Unit:          unit,
			Confidence:    confidence,
			SourceSnippet: snippet,
		})
		yearSet[year] = struct{}{}
	}

	years := make([]string, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Strings(years)

	return statement.ExtractionResult{
		Records:       records,
		YearsDetected: years,
		Notes:         notes,
	}
}
