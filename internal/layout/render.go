package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

// RenderMatrix lays a grid out as indexed text, one line per row with one
// slot per column, for embedding in a classification prompt. Empty cells
// stay blank; cells without a column assignment are omitted. Two cells
// landing on the same slot are joined with a space.
func RenderMatrix(g statement.Grid) string {
	if len(g.Rows) == 0 || len(g.Columns) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Columns: ")
	for i := range g.Columns {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(strconv.Itoa(i))
	}
	sb.WriteString("\n")

	for ri, row := range g.Rows {
		slots := make([]string, len(g.Columns))
		for _, c := range row.Cells {
			if c.ColumnIndex == nil {
				continue
			}
			i := *c.ColumnIndex
			if slots[i] != "" {
				slots[i] += " "
			}
			slots[i] += c.Text
		}
		fmt.Fprintf(&sb, "Row %d: %s\n", ri, strings.Join(slots, " | "))
	}
	return sb.String()
}
