// Package layout converts positioned text tokens into a row/column grid.
// It is purely geometric: no inference, no network, and deterministic for
// a given token sequence.
package layout

import (
	"math"
	"sort"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

// RowGrouping selects how a token is matched to existing rows.
type RowGrouping int

const (
	// FirstMatch assigns a token to the first row within RowTolerance in
	// arrival order. This is the default: grouping then depends only on
	// the order the text layer emits tokens, which is stable per document.
	FirstMatch RowGrouping = iota
	// NearestMatch assigns a token to the closest row within RowTolerance.
	// More robust on dense tables, where sequential y-drift under
	// FirstMatch can chain unrelated tokens into one row.
	NearestMatch
)

// Builder groups tokens into rows and aligns cells to detected columns.
// All tolerances are in PDF points.
type Builder struct {
	// RowTolerance is the maximum |Δy| between a token and a row anchor
	// for the token to join that row.
	RowTolerance float64
	// ColumnTolerance is the maximum distance between an x value and a
	// cluster's running mean for the value to join that column cluster.
	ColumnTolerance float64
	// MatchTolerance is the maximum distance between a cell and the
	// nearest column centroid for the cell to be assigned that column.
	MatchTolerance float64
	// Grouping selects the row-matching policy, FirstMatch unless set.
	Grouping RowGrouping
}

// NewBuilder returns a Builder with the default tolerances.
func NewBuilder() *Builder {
	return &Builder{
		RowTolerance:    5,
		ColumnTolerance: 20,
		MatchTolerance:  30,
	}
}

// BuildGrid converts one page's tokens into a grid. Empty input yields an
// empty grid. Rows come back top of page first (descending y), columns
// are cluster centroids in ascending x, and cells are sorted by x within
// their row.
func (b *Builder) BuildGrid(tokens []statement.TextToken) statement.Grid {
	rows := b.groupRows(tokens)

	sort.Slice(rows, func(i, j int) bool { return rows[i].Y > rows[j].Y })

	columns := b.clusterColumns(rows)
	b.alignCells(rows, columns)

	return statement.Grid{Rows: rows, Columns: columns}
}

// groupRows scans tokens in input order. A row's anchor is the y of the
// token that created it; joining tokens do not move it.
func (b *Builder) groupRows(tokens []statement.TextToken) []statement.GridRow {
	var rows []statement.GridRow
	for _, tok := range tokens {
		idx := -1
		switch b.Grouping {
		case NearestMatch:
			best := b.RowTolerance
			for i := range rows {
				if d := math.Abs(rows[i].Y - tok.Y); d < best {
					best = d
					idx = i
				}
			}
		default:
			for i := range rows {
				if math.Abs(rows[i].Y-tok.Y) < b.RowTolerance {
					idx = i
					break
				}
			}
		}
		cell := statement.GridCell{X: tok.X, Text: tok.Text}
		if idx >= 0 {
			rows[idx].Cells = append(rows[idx].Cells, cell)
		} else {
			rows = append(rows, statement.GridRow{Y: tok.Y, Cells: []statement.GridCell{cell}})
		}
	}
	return rows
}

// clusterColumns runs a 1-D pass over all cell x positions sorted
// ascending: a value within ColumnTolerance of the current cluster's mean
// joins it and the mean is updated incrementally, otherwise a new cluster
// starts. Each finalized cluster becomes one column.
func (b *Builder) clusterColumns(rows []statement.GridRow) []float64 {
	var xs []float64
	for _, row := range rows {
		for _, c := range row.Cells {
			xs = append(xs, c.X)
		}
	}
	if len(xs) == 0 {
		return nil
	}
	sort.Float64s(xs)

	var columns []float64
	mean := xs[0]
	count := 1
	for _, x := range xs[1:] {
		if x-mean <= b.ColumnTolerance {
			mean = (mean*float64(count) + x) / float64(count+1)
			count++
			continue
		}
		columns = append(columns, mean)
		mean = x
		count = 1
	}
	columns = append(columns, mean)
	return columns
}

// alignCells sorts each row's cells by x, then assigns each cell the
// closest column. A cell whose nearest centroid is MatchTolerance or
// further away keeps a nil ColumnIndex.
func (b *Builder) alignCells(rows []statement.GridRow, columns []float64) {
	for ri := range rows {
		cells := rows[ri].Cells
		sort.Slice(cells, func(i, j int) bool { return cells[i].X < cells[j].X })
		for ci := range cells {
			best := -1
			bestDist := math.MaxFloat64
			for col, x := range columns {
				if d := math.Abs(cells[ci].X - x); d < bestDist {
					bestDist = d
					best = col
				}
			}
			if best >= 0 && bestDist < b.MatchTolerance {
				idx := best
				cells[ci].ColumnIndex = &idx
			}
		}
	}
}
