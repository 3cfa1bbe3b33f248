package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// PDFReader extracts per-page text from receipt documents so pages can
// be parsed independently and concurrently.
type PDFReader struct {
	logger *zap.Logger
}

func NewPDFReader(logger *zap.Logger) *PDFReader {
	return &PDFReader{logger: logger}
}

// ExtractPages returns the text of every page of the document, in page
// order. Plain .txt files come back as a single page. Pages whose text
// cannot be extracted are kept as empty strings so page numbering stays
// aligned with the source document.
func (r *PDFReader) ExtractPages(path string) ([]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("document not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".txt" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read text file: %w", err)
		}
		return []string{string(data)}, nil
	}
	if ext != ".pdf" {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	r.logger.Debug("Extracting PDF text", zap.String("path", path), zap.Int("pages", pageCount))

	pages := make([]string, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		text, err := doc.Text(pageNum)
		if err != nil {
			r.logger.Warn("Failed to extract page text",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		pages[pageNum] = text
	}

	r.logger.Info("PDF text extracted",
		zap.String("path", path),
		zap.Int("pages", pageCount))
	return pages, nil
}
