package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/ai"
	"github.com/smartpantry/paragon/internal/export"
	"github.com/smartpantry/paragon/internal/parser"
	"github.com/smartpantry/paragon/internal/pipeline"
	"github.com/smartpantry/paragon/internal/repository"
)

// Handler exposes the receipt pipeline over HTTP.
type Handler struct {
	processor *pipeline.Processor
	repo      *repository.ReceiptRepository
	exporter  *export.Exporter
	logger    *zap.Logger
}

func NewHandler(processor *pipeline.Processor, repo *repository.ReceiptRepository, exporter *export.Exporter, logger *zap.Logger) *Handler {
	return &Handler{processor: processor, repo: repo, exporter: exporter, logger: logger}
}

// ParseRequest is the POST /receipts payload.
type ParseRequest struct {
	RawText   string `json:"raw_text" binding:"required"`
	StoreHint string `json:"store_hint"`
}

// ParseReceipt runs the pipeline over submitted OCR text.
func (h *Handler) ParseReceipt(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "raw_text is required"})
		return
	}

	result, err := h.processor.Process(c.Request.Context(), req.RawText, req.StoreHint)
	if err != nil {
		switch {
		case errors.Is(err, parser.ErrNoProductsFound):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no products could be extracted from the text"})
		case errors.Is(err, ai.ErrSlotTimeout):
			c.Header("Retry-After", "5")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model capacity exhausted, retry later"})
		default:
			h.logger.Error("receipt processing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process receipt"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetReceipt returns one stored receipt by id.
func (h *Handler) GetReceipt(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receipt id"})
		return
	}

	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to load receipt", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipt"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// ListReviewQueue returns receipts waiting for a human reviewer.
func (h *Handler) ListReviewQueue(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.repo.ListNeedingReview(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list review queue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list review queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipts": records, "count": len(records)})
}

// MarkReviewed records a completed human review.
func (h *Handler) MarkReviewed(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receipt id"})
		return
	}

	if err := h.repo.MarkReviewed(c.Request.Context(), id); err != nil {
		h.logger.Error("failed to mark receipt reviewed", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark receipt reviewed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reviewed"})
}

// ExportReceipts writes the most recent receipts to a spreadsheet and
// returns its path.
func (h *Handler) ExportReceipts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))

	records, err := h.repo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load receipts for export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipts"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusOK, gin.H{"exported": 0})
		return
	}

	path, err := h.exporter.Export(records)
	if err != nil {
		h.logger.Error("failed to export receipts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export receipts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"exported": len(records), "path": path})
}
