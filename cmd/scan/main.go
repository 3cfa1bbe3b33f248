package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/ai"
	"github.com/smartpantry/paragon/internal/anomaly"
	"github.com/smartpantry/paragon/internal/confidence"
	"github.com/smartpantry/paragon/internal/config"
	"github.com/smartpantry/paragon/internal/ingest"
	"github.com/smartpantry/paragon/internal/parser"
	"github.com/smartpantry/paragon/internal/pipeline"
	"github.com/smartpantry/paragon/pkg/utils"
)

// scan parses a single receipt document from the command line and prints
// the pipeline result as JSON. Useful for checking OCR quality on one
// file without running the server.
func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
		storeHint  = flag.String("store", "", "store hint, e.g. biedronka")
		noModel    = flag.Bool("no-model", false, "disable the structuring fallback")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: scan [flags] <receipt.pdf|receipt.txt>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
		OutputPath: "stderr",
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	reader := ingest.NewPDFReader(logger)
	pages, err := reader.ExtractPages(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read document: %v\n", err)
		os.Exit(1)
	}

	receiptParser := parser.New(parser.Options{
		FallbackMinProducts: cfg.Parser.FallbackMinProducts,
		MinLinesForFallback: cfg.Parser.MinLinesForFallback,
		MaxProductPrice:     cfg.Parser.MaxProductPrice,
	}, logger)

	detector := anomaly.NewDetector(anomaly.Config{
		GeneralCeiling: cfg.Anomaly.GeneralCeiling,
		MeatCeiling:    cfg.Anomaly.MeatCeiling,
		HardCeiling:    cfg.Anomaly.HardCeiling,
	}, logger)

	scorer := confidence.NewScorer(confidence.Thresholds{
		ReviewBelow: cfg.Confidence.ReviewThreshold,
		AutoSaveAt:  cfg.Confidence.AutoSaveThreshold,
	}, logger)

	var structurer ai.Structurer
	if cfg.OpenAI.Enabled && !*noModel {
		gate := ai.NewSlotGate(cfg.OpenAI.ModelSlots)
		structurer = ai.NewOpenAIStructurer(ai.StructurerConfig{
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
		}, gate, logger)
	}

	// No persistence from the CLI, results go to stdout only.
	processor := pipeline.NewProcessor(receiptParser, detector, scorer, structurer, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := processor.ProcessPages(ctx, pages, *storeHint)
	if err != nil {
		logger.Error("processing failed", zap.String("path", path), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Failed to process receipt: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
