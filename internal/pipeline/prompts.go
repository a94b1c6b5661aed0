package pipeline

import (
	"fmt"
	"strings"
)

const DetectionPrompt = `You are looking at page images of a financial document. Decide whether the document contains a financial statement table (income statement, balance sheet, cash flow statement, or a similar tabular summary of financial figures).

Respond with a JSON object with these fields:

- "hasTable": true if a financial table is present (boolean)
- "tableType": short label for the table kind, e.g. "income_statement" (string)
- "confidence": one of "high", "medium", "low"

Rules:
- Charts, logos, and narrative text do not count as tables
- A table of non-financial data (schedules, directories) does not count
- When unsure, answer with "confidence": "low"

Respond with ONLY the JSON object, no other text.`

const classificationPrompt = `Below is a table skeleton reconstructed from a financial statement page. Rows and columns are numbered; cells hold the exact text found on the page. Classify the skeleton.

Respond with a JSON object with these fields:

- "columns": array of {"index": <column number>, "type": "year" | "quarter" | "unknown", "year": "<4-digit year if type is year>"}
- "rows": array of {"index": <row number>, "category": "Revenue" | "Expenses" | "Profit" | "Other"}

Rules:
- Use the row and column numbers exactly as printed in the matrix
- "year" must be a string, e.g. "2024", never a number
- Classify every row that holds a line item; skip header and blank rows
- Do not transcribe cell values; only classify indices

Respond with ONLY the JSON object, no other text.`

const StructurePrompt = `You are looking at page images of a financial statement. Transcribe the main financial table exactly as printed.

Respond with a JSON object with these fields:

- "columns": array of {"index": <0-based column number>, "label": "<header text>"} for each value column (exclude the line-item column)
- "rows": array of {"index": <0-based row number>, "lineItem": "<exact row label>", "values": ["<exact cell text per value column, in column order>"]}

Rules:
- Transcribe cell text exactly, keeping separators and parentheses, e.g. "1,234" or "(500)"
- Values must be strings, never numbers
- Keep one entry in "values" per value column, empty string for blank cells
- Do not compute, normalize, or reorder anything

Respond with ONLY the JSON object, no other text.`

// maxMatrixChars caps how much of the rendered grid is embedded in the
// classification prompt. Statements that overflow it are degenerate
// layouts, not real tables, but the call should still go out.
const maxMatrixChars = 20000

// BuildClassificationPrompt appends the rendered table skeleton to the
// classification instructions. Both variants feed it: the grid variant
// with the layout matrix, the vision variant with the transcription.
func BuildClassificationPrompt(matrix string) string {
	if len(matrix) > maxMatrixChars {
		matrix = matrix[:maxMatrixChars]
	}
	var sb strings.Builder
	sb.WriteString(classificationPrompt)
	sb.WriteString("\n\n---\n")
	sb.WriteString(matrix)
	return sb.String()
}

// RenderStructure prints a transcribed table in the numbered layout the
// classification prompt expects. Row labels sit ahead of the value slots;
// the column numbers refer to positions inside "values".
func RenderStructure(st Structure) string {
	if len(st.Rows) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Columns:")
	for i, col := range st.Columns {
		if i > 0 {
			sb.WriteString(" |")
		}
		if col.Label != "" {
			fmt.Fprintf(&sb, " %d (%s)", col.Index, col.Label)
		} else {
			fmt.Fprintf(&sb, " %d", col.Index)
		}
	}
	sb.WriteString("\n")
	for _, row := range st.Rows {
		fmt.Fprintf(&sb, "Row %d: %s | %s\n", row.Index, row.LineItem, strings.Join(row.Values, " | "))
	}
	return sb.String()
}
