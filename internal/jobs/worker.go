package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/pdfdoc"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/pipeline"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

// Worker processes a single extraction job end to end.
type Worker struct {
	extractor *pipeline.Extractor
	reader    *pdfdoc.Reader
	raster    pdfdoc.Rasterizer
	log       *slog.Logger
	maxPages  int
}

func NewWorker(extractor *pipeline.Extractor, reader *pdfdoc.Reader, raster pdfdoc.Rasterizer, log *slog.Logger, maxPages int) *Worker {
	return &Worker{
		extractor: extractor,
		reader:    reader,
		raster:    raster,
		log:       log,
		maxPages:  maxPages,
	}
}

// Process runs the full extraction for a job: prepare tokens and images,
// then hand the document to the pipeline.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	job.SetStatus(StatusPreparing, "preparing")
	data := job.FileData()
	if len(data) == 0 {
		log.Error("empty upload")
		job.Fail("preparing", "empty document")
		return
	}

	tokens, pageCount, err := w.reader.ReadTokens(data, w.maxPages)
	if err != nil {
		// Token extraction can fail on scanned or damaged PDFs; with
		// attached images the vision variant still has a chance.
		if len(job.Images()) == 0 {
			log.Error("pdf read failed", "error", err)
			job.Fail("preparing", fmt.Sprintf("read pdf: %s", err))
			return
		}
		log.Warn("pdf read failed, continuing with attached images", "error", err)
		tokens = nil
		pageCount = 0
	}

	images := job.Images()
	pages := pageCount
	if pages > w.maxPages {
		pages = w.maxPages
	}
	if pages == 0 {
		pages = len(images)
	}
	job.SetPages(pages)
	log.Info("document prepared", "pages", pages, "total_pages", pageCount, "tokens", len(tokens))

	if len(images) > w.maxPages {
		images = images[:w.maxPages]
	}
	if len(images) == 0 {
		if w.raster == nil {
			job.Fail("preparing", "no page images available; attach page images or configure a rasterizer")
			return
		}
		images, err = w.raster.Render(ctx, data, pages)
		if err != nil {
			log.Error("rasterization failed", "error", err)
			job.Fail("preparing", fmt.Sprintf("render pages: %s", err))
			return
		}
	}
	if len(images) == 0 {
		job.Fail("preparing", "no page images produced")
		return
	}

	job.SetStatus(StatusExtracting, "extracting")
	res, err := w.extractor.Run(ctx, statement.Document{Tokens: tokens, Images: images})
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.Fail("extracting", err.Error())
		return
	}

	job.SetResult(&res)
	status := StatusCompleted
	if len(res.Records) == 0 && res.Notes == pipeline.NoTableNotes {
		status = StatusNoTable
	}
	job.SetStatus(status, "done")
	log.Info("extraction complete",
		"status", string(status),
		"records", len(res.Records),
		"years", len(res.YearsDetected),
	)
}
