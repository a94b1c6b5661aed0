package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/layout"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/normalize"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/oracle"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

// Variant selects how the table body is recovered before classification.
type Variant string

const (
	// VariantGrid reconstructs the table from positioned tokens and asks
	// the oracle only to classify the skeleton.
	VariantGrid Variant = "grid"
	// VariantVision asks the oracle to transcribe the table from the page
	// images directly.
	VariantVision Variant = "vision"
)

// NoTableNotes is the sentinel result note for documents without a table.
const NoTableNotes = "No financial table detected."

// Attempt counts per stage. Detection is cheap to redo at the document
// level so it gets fewer tries than the stages that cost a whole run.
const (
	detectionAttempts      = 2
	classificationAttempts = 3
	structureAttempts      = 3
)

// Extractor runs the staged extraction for one document at a time. It is
// stateless between runs; concurrent runs may share one Extractor.
type Extractor struct {
	oracle  oracle.Caller
	grid    *layout.Builder
	log     *slog.Logger
	variant Variant
}

func New(caller oracle.Caller, log *slog.Logger, variant Variant) *Extractor {
	if variant == "" {
		variant = VariantGrid
	}
	return &Extractor{
		oracle:  caller,
		grid:    layout.NewBuilder(),
		log:     log,
		variant: variant,
	}
}

// Run executes detection, table recovery, classification, merge, and
// normalization for one document.
func (e *Extractor) Run(ctx context.Context, doc statement.Document) (statement.ExtractionResult, error) {
	if len(doc.Images) == 0 {
		return statement.ExtractionResult{}, fmt.Errorf("no page images in document")
	}

	det, err := e.detect(ctx, doc.Images)
	if err != nil {
		return statement.ExtractionResult{}, err
	}
	if !det.HasTable || strings.EqualFold(det.Confidence, "low") {
		e.log.Info("pipeline.detection.no_table",
			"has_table", det.HasTable,
			"confidence", det.Confidence,
		)
		return emptyResult(NoTableNotes), nil
	}
	e.log.Info("pipeline.detection.table",
		"table_type", det.TableType,
		"confidence", det.Confidence,
	)

	switch e.variant {
	case VariantVision:
		return e.runVision(ctx, doc)
	default:
		return e.runGrid(ctx, doc)
	}
}

func (e *Extractor) detect(ctx context.Context, images []statement.PageImage) (Detection, error) {
	payload, err := e.oracle.Call(ctx, oracle.CallRequest{
		Stage:       "detection",
		Prompt:      DetectionPrompt,
		Images:      images,
		Schema:      oracle.DetectionSchema(),
		MaxAttempts: detectionAttempts,
	})
	if err != nil {
		return Detection{}, err
	}
	var det Detection
	if err := json.Unmarshal(payload, &det); err != nil {
		return Detection{}, fmt.Errorf("decode detection: %w", err)
	}
	return det, nil
}

func (e *Extractor) classify(ctx context.Context, prompt string, images []statement.PageImage) (Classification, error) {
	payload, err := e.oracle.Call(ctx, oracle.CallRequest{
		Stage:       "classification",
		Prompt:      prompt,
		Images:      images,
		Schema:      oracle.ClassificationSchema(),
		MaxAttempts: classificationAttempts,
	})
	if err != nil {
		return Classification{}, err
	}
	var cls Classification
	if err := json.Unmarshal(payload, &cls); err != nil {
		return Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	return cls, nil
}

// runGrid reconstructs the table from page-1 tokens. Documents without
// any positioned text (scanned pages) fall back to the vision variant.
func (e *Extractor) runGrid(ctx context.Context, doc statement.Document) (statement.ExtractionResult, error) {
	tokens := tokensForPage(doc.Tokens, 1)
	if len(tokens) == 0 {
		e.log.Warn("pipeline.grid.no_tokens", "fallback", string(VariantVision))
		return e.runVision(ctx, doc)
	}

	grid := e.grid.BuildGrid(tokens)
	matrix := layout.RenderMatrix(grid)
	e.log.Info("pipeline.grid.built",
		"rows", len(grid.Rows),
		"columns", len(grid.Columns),
	)

	cls, err := e.classify(ctx, BuildClassificationPrompt(matrix), doc.Images)
	if err != nil {
		return statement.ExtractionResult{}, err
	}

	raw := MergeGrid(grid, cls)
	e.log.Info("pipeline.merge.done", "variant", string(VariantGrid), "raw_records", len(raw))
	return normalize.Records(raw, ""), nil
}

// runVision transcribes the table from images, then classifies the
// transcription. A transcription without financial vocabulary fails its
// attempt and is retried by the oracle client.
func (e *Extractor) runVision(ctx context.Context, doc statement.Document) (statement.ExtractionResult, error) {
	payload, err := e.oracle.Call(ctx, oracle.CallRequest{
		Stage:       "structure",
		Prompt:      StructurePrompt,
		Images:      doc.Images,
		Schema:      oracle.StructureSchema(),
		MaxAttempts: structureAttempts,
		Check:       checkStructureEvidence,
	})
	if err != nil {
		return statement.ExtractionResult{}, err
	}
	var st Structure
	if err := json.Unmarshal(payload, &st); err != nil {
		return statement.ExtractionResult{}, fmt.Errorf("decode structure: %w", err)
	}
	e.log.Info("pipeline.structure.transcribed",
		"rows", len(st.Rows),
		"columns", len(st.Columns),
	)

	cls, err := e.classify(ctx, BuildClassificationPrompt(RenderStructure(st)), doc.Images)
	if err != nil {
		return statement.ExtractionResult{}, err
	}

	raw := MergeStructure(st, cls, e.log)
	e.log.Info("pipeline.merge.done", "variant", string(VariantVision), "raw_records", len(raw))
	return normalize.Records(raw, ""), nil
}

// tokensForPage filters tokens to a single page, preserving order.
func tokensForPage(tokens []statement.TextToken, page int) []statement.TextToken {
	out := make([]statement.TextToken, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Page == page {
			out = append(out, tok)
		}
	}
	return out
}

// emptyResult builds the terminal empty result with non-nil slices so the
// JSON body always carries [] rather than null.
func emptyResult(notes string) statement.ExtractionResult {
	return statement.ExtractionResult{
		Records:       []statement.CleanRecord{},
		YearsDetected: []string{},
		Notes:         notes,
	}
}
