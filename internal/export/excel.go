package export

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/repository"
)

// Exporter writes processed receipts to a spreadsheet for the
// accounting handoff.
type Exporter struct {
	outputDir string
	logger    *zap.Logger
}

func NewExporter(outputDir string, logger *zap.Logger) *Exporter {
	return &Exporter{outputDir: outputDir, logger: logger}
}

var headerRow = []string{
	"Receipt ID", "Store", "Date", "Product", "Price",
	"Price Before Discount", "Discount", "Warning", "Score", "Needs Review",
}

// Export writes one row per product, grouped by receipt, and returns
// the path of the generated file.
func (e *Exporter) Export(records []*repository.ReceiptRecord) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	for col, title := range headerRow {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return "", fmt.Errorf("failed to set header cell: %w", err)
		}
	}

	row := 2
	for _, rec := range records {
		for _, p := range rec.Products {
			values := []any{
				rec.ID, rec.Store, rec.Date, p.Name, p.Price,
				optional(p.PriceBeforeDiscount), optional(p.DiscountAmount),
				p.Warning, rec.Score, rec.NeedsReview,
			}
			for col, v := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, row)
				if err != nil {
					return "", fmt.Errorf("failed to build cell name: %w", err)
				}
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return "", fmt.Errorf("failed to set cell value: %w", err)
				}
			}
			row++
		}
	}

	path := filepath.Join(e.outputDir,
		fmt.Sprintf("receipts_%s.xlsx", time.Now().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save export file: %w", err)
	}

	e.logger.Info("Receipts exported",
		zap.String("path", path),
		zap.Int("receipts", len(records)),
		zap.Int("rows", row-2))
	return path, nil
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
