package pdfdoc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

// Rasterizer renders PDF pages to JPEG images for the oracle.
type Rasterizer interface {
	Render(ctx context.Context, data []byte, maxPages int) ([]statement.PageImage, error)
}

// ExecRasterizer shells out to poppler's pdftoppm. Pages render
// concurrently, bounded by MaxConcurrent, and results are joined back in
// page order. Any page failure fails the whole render.
type ExecRasterizer struct {
	Binary        string
	MaxConcurrent int
}

func NewExecRasterizer(binary string, maxConcurrent int) *ExecRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &ExecRasterizer{Binary: binary, MaxConcurrent: maxConcurrent}
}

func (r *ExecRasterizer) Render(ctx context.Context, data []byte, maxPages int) ([]statement.PageImage, error) {
	if maxPages <= 0 {
		return nil, nil
	}

	tmpPath, cleanup, err := writeTemp(data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	type pageResult struct {
		page int
		img  statement.PageImage
		err  error
	}
	results := make(chan pageResult, maxPages)
	sem := make(chan struct{}, r.MaxConcurrent)

	for p := 1; p <= maxPages; p++ {
		sem <- struct{}{}
		go func(p int) {
			defer func() { <-sem }()
			img, err := r.renderPage(ctx, tmpPath, p)
			results <- pageResult{page: p, img: img, err: err}
		}(p)
	}

	images := make([]statement.PageImage, maxPages)
	var firstErr error
	for i := 0; i < maxPages; i++ {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		images[res.page-1] = res.img
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return images, nil
}

// renderPage runs the rasterizer for a single page in its own scratch
// directory so concurrent renders never collide on output names.
func (r *ExecRasterizer) renderPage(ctx context.Context, pdfPath string, page int) (statement.PageImage, error) {
	dir, err := os.MkdirTemp("", "statements-raster-")
	if err != nil {
		return statement.PageImage{}, fmt.Errorf("create raster dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, r.Binary,
		"-jpeg", "-r", "150",
		"-f", strconv.Itoa(page), "-l", strconv.Itoa(page),
		pdfPath, prefix,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return statement.PageImage{}, fmt.Errorf("%s page %d: %w (%s)", r.Binary, page, err, strings.TrimSpace(string(out)))
	}

	matches, err := filepath.Glob(prefix + "-*.jpg")
	if err != nil || len(matches) == 0 {
		return statement.PageImage{}, fmt.Errorf("%s page %d produced no image", r.Binary, page)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return statement.PageImage{}, fmt.Errorf("read rendered page %d: %w", page, err)
	}
	return statement.PageImage{Page: page, MediaType: statement.JPEGMediaType, Data: data}, nil
}
