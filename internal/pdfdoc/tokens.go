// Package pdfdoc turns an uploaded PDF into the document inputs the
// pipeline consumes: positioned word tokens and rendered page images.
package pdfdoc

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

// runRowTolerance groups raw character runs into lines before word
// merging. Tighter than the layout engine's row tolerance because runs
// on one printed line share Y almost exactly.
const runRowTolerance = 2.0

// Gap thresholds as multiples of the current font size. A gap past
// spaceGapFactor separates words inside one cell; past cellGapFactor it
// separates cells and a new token starts.
const (
	spaceGapFactor = 0.3
	cellGapFactor  = 1.0
)

// Reader extracts positioned text tokens from PDF data.
type Reader struct{}

// ReadTokens parses the PDF and returns word-level tokens for up to
// maxPages pages, along with the document's true page count.
func (r *Reader) ReadTokens(data []byte, maxPages int) ([]statement.TextToken, int, error) {
	tmpPath, cleanup, err := writeTemp(data)
	if err != nil {
		return nil, 0, err
	}
	defer cleanup()

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	limit := numPages
	if maxPages > 0 && limit > maxPages {
		limit = maxPages
	}

	var tokens []statement.TextToken
	for i := 1; i <= limit; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		tokens = append(tokens, mergeRuns(page.Content().Text, i)...)
	}
	return tokens, numPages, nil
}

// writeTemp spills the upload to disk; ledongthuc/pdf needs a
// ReadSeeker with a known size.
func writeTemp(data []byte) (string, func(), error) {
	tmp, err := os.CreateTemp("", "statements-pdf-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return tmpPath, cleanup, nil
}

// mergeRuns converts per-character text runs into word tokens. Runs are
// grouped into lines by Y, sorted by X, then stitched: small gaps extend
// the current word, word-sized gaps insert a space, cell-sized gaps
// start a new token.
func mergeRuns(runs []pdflib.Text, page int) []statement.TextToken {
	filtered := make([]pdflib.Text, 0, len(runs))
	for _, t := range runs {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) == 0 {
		return nil
	}

	var tokens []statement.TextToken
	for _, line := range groupLines(filtered) {
		tokens = append(tokens, mergeLine(line, page)...)
	}
	return tokens
}

type lineRuns struct {
	y    float64
	runs []pdflib.Text
}

// groupLines buckets runs by Y with first-match scanning, then sorts
// each line left to right. Line order does not matter downstream; the
// layout engine re-sorts rows itself.
func groupLines(runs []pdflib.Text) []lineRuns {
	var lines []lineRuns
	for _, t := range runs {
		matched := false
		for i := range lines {
			if math.Abs(lines[i].y-t.Y) < runRowTolerance {
				lines[i].runs = append(lines[i].runs, t)
				matched = true
				break
			}
		}
		if !matched {
			lines = append(lines, lineRuns{y: t.Y, runs: []pdflib.Text{t}})
		}
	}
	for i := range lines {
		runs := lines[i].runs
		sort.Slice(runs, func(a, b int) bool { return runs[a].X < runs[b].X })
	}
	return lines
}

func mergeLine(line lineRuns, page int) []statement.TextToken {
	var tokens []statement.TextToken
	var cur *statement.TextToken
	var sb strings.Builder

	flush := func() {
		if cur == nil {
			return
		}
		text := strings.TrimSpace(sb.String())
		if text != "" {
			cur.Text = text
			tokens = append(tokens, *cur)
		}
		cur = nil
		sb.Reset()
	}

	for _, t := range line.runs {
		fontSize := t.FontSize
		if fontSize == 0 {
			fontSize = 10.0
		}

		if cur == nil {
			cur = &statement.TextToken{
				X:      t.X,
				Y:      line.y,
				Width:  t.W,
				Height: fontSize,
				Page:   page,
			}
			sb.WriteString(t.S)
			continue
		}

		gap := t.X - (cur.X + cur.Width)
		switch {
		case gap > cellGapFactor*fontSize:
			flush()
			cur = &statement.TextToken{
				X:      t.X,
				Y:      line.y,
				Width:  t.W,
				Height: fontSize,
				Page:   page,
			}
			sb.WriteString(t.S)
			continue
		case gap > spaceGapFactor*fontSize:
			sb.WriteString(" ")
			sb.WriteString(t.S)
		default:
			sb.WriteString(t.S)
		}
		cur.Width = t.X + t.W - cur.X
		if fontSize > cur.Height {
			cur.Height = fontSize
		}
	}
	flush()
	return tokens
}
