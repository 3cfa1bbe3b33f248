package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/ai"
	"github.com/smartpantry/paragon/internal/anomaly"
	"github.com/smartpantry/paragon/internal/confidence"
	"github.com/smartpantry/paragon/internal/models"
	"github.com/smartpantry/paragon/internal/parser"
)

// ReceiptStore persists processed receipts. Satisfied by
// repository.ReceiptRepository; nil disables persistence.
type ReceiptStore interface {
	Save(ctx context.Context, receipt *models.Receipt, report *models.ConfidenceReport) (int64, error)
}

// Result is the outcome of processing one receipt document.
type Result struct {
	Receipt   *models.Receipt          `json:"receipt"`
	Report    *models.ConfidenceReport `json:"confidence"`
	Source    string                   `json:"source"`
	ReceiptID int64                    `json:"receipt_id,omitempty"`
	AutoSaved bool                     `json:"auto_saved"`
}

// Processing sources reported in Result.Source.
const (
	SourceParser     = "parser"
	SourceStructurer = "structurer"
)

// Processor runs the full extraction pipeline: deterministic parse,
// model-structuring fallback, anomaly annotation, confidence scoring and
// optional persistence.
type Processor struct {
	parser     *parser.Parser
	detector   *anomaly.Detector
	scorer     *confidence.Scorer
	structurer ai.Structurer
	store      ReceiptStore
	logger     *zap.Logger
}

func NewProcessor(
	p *parser.Parser,
	detector *anomaly.Detector,
	scorer *confidence.Scorer,
	structurer ai.Structurer,
	store ReceiptStore,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		parser:     p,
		detector:   detector,
		scorer:     scorer,
		structurer: structurer,
		store:      store,
		logger:     logger,
	}
}

// Process runs the pipeline over raw OCR text.
func (p *Processor) Process(ctx context.Context, rawText, storeHint string) (*Result, error) {
	parsed, err := p.parser.Parse(rawText, storeHint)
	return p.finish(ctx, parsed, err, rawText)
}

// ProcessPages runs the pipeline over a multi-page document. Pages parse
// concurrently; header back-fill happens after all pages complete.
func (p *Processor) ProcessPages(ctx context.Context, pages []string, storeHint string) (*Result, error) {
	parsed, err := p.parser.ParsePages(pages, storeHint)
	var rawText string
	if parsed != nil {
		rawText = parsed.RawText
	}
	return p.finish(ctx, parsed, err, rawText)
}

func (p *Processor) finish(ctx context.Context, parsed *models.ParsedReceipt, parseErr error, rawText string) (*Result, error) {
	source := SourceParser

	if errors.Is(parseErr, parser.ErrNoProductsFound) {
		if p.structurer == nil {
			return nil, parseErr
		}
		p.logger.Info("deterministic parse found no products, escalating to structuring backend")
		structured, err := p.structurer.Structure(ctx, rawText)
		if err != nil {
			return nil, fmt.Errorf("structuring fallback: %w", err)
		}
		parsed = structured
		source = SourceStructurer
	} else if parseErr != nil {
		return nil, parseErr
	}

	parsed.Products = p.detector.Annotate(parsed.Products)

	receipt := models.BuildReceipt(parsed)
	report := p.scorer.Score(receipt)

	if report.NeedsReview && !receipt.NeedsReview {
		receipt.NeedsReview = true
		receipt.ReviewReasons = append(receipt.ReviewReasons, "confidence score below review threshold")
	}

	result := &Result{
		Receipt: receipt,
		Report:  report,
		Source:  source,
	}

	if p.store != nil {
		id, err := p.store.Save(ctx, receipt, report)
		if err != nil {
			return nil, fmt.Errorf("persist receipt: %w", err)
		}
		result.ReceiptID = id
		result.AutoSaved = report.AutoSaveOK
	}

	p.logger.Info("receipt processed",
		zap.String("source", source),
		zap.String("store", receipt.Store),
		zap.Int("products", len(receipt.Products)),
		zap.Float64("score", report.Score),
		zap.Bool("needs_review", receipt.NeedsReview))

	return result, nil
}
