package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/models"
	"github.com/smartpantry/paragon/pkg/database"
)

// ReceiptRecord is a persisted receipt row together with its verdict.
type ReceiptRecord struct {
	ID              int64    `json:"id"`
	Store           string   `json:"store,omitempty"`
	Date            string   `json:"date,omitempty"`
	Total           *float64 `json:"total,omitempty"`
	CalculatedTotal float64  `json:"calculated_total"`
	Score           float64  `json:"score"`
	NeedsReview     bool     `json:"needs_review"`
	AutoSaved       bool     `json:"auto_saved"`
	Reviewed        bool     `json:"reviewed"`

	Products      []models.ParsedProduct `json:"products"`
	ReviewReasons []string               `json:"review_reasons,omitempty"`
	Issues        []string               `json:"issues,omitempty"`
	Warnings      []string               `json:"warnings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ReceiptRepository persists processed receipts in sqlite.
type ReceiptRepository struct {
	db     *database.DB
	logger *zap.Logger
}

func NewReceiptRepository(db *database.DB, logger *zap.Logger) *ReceiptRepository {
	return &ReceiptRepository{db: db, logger: logger}
}

// Save stores a receipt and its confidence verdict, returning the row id.
// Products and string lists are serialized as JSON columns.
func (r *ReceiptRepository) Save(ctx context.Context, receipt *models.Receipt, report *models.ConfidenceReport) (int64, error) {
	products, err := json.Marshal(receipt.Products)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal products: %w", err)
	}
	reasons, err := json.Marshal(receipt.ReviewReasons)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal review reasons: %w", err)
	}
	issues, err := json.Marshal(report.Issues)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal issues: %w", err)
	}
	warnings, err := json.Marshal(report.Warnings)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal warnings: %w", err)
	}

	query := `
		INSERT INTO receipts (
			store, purchase_date, total, calculated_total, score,
			needs_review, auto_saved, products, review_reasons,
			issues, warnings, raw_text
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var id int64
	err = r.db.WithTransaction(func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			receipt.Store,
			receipt.Date,
			receipt.Total,
			receipt.CalculatedTotal,
			report.Score,
			receipt.NeedsReview,
			report.AutoSaveOK,
			string(products),
			string(reasons),
			string(issues),
			string(warnings),
			receipt.RawText,
		)
		if err != nil {
			return fmt.Errorf("failed to save receipt: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save receipt", zap.Error(err))
		return 0, err
	}

	r.logger.Info("Receipt saved",
		zap.Int64("id", id),
		zap.String("store", receipt.Store),
		zap.Bool("needs_review", receipt.NeedsReview))
	return id, nil
}

const receiptColumns = `
	id, store, purchase_date, total, calculated_total, score,
	needs_review, auto_saved, reviewed, products, review_reasons,
	issues, warnings, created_at
`

// GetByID retrieves a receipt by id, or nil when absent.
func (r *ReceiptRepository) GetByID(ctx context.Context, id int64) (*ReceiptRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)

	rec, err := scanReceipt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get receipt", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return rec, nil
}

// ListNeedingReview returns unreviewed receipts flagged for a human,
// oldest first.
func (r *ReceiptRepository) ListNeedingReview(ctx context.Context, limit int) ([]*ReceiptRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+receiptColumns+`
		 FROM receipts
		 WHERE needs_review = 1 AND reviewed = 0
		 ORDER BY created_at ASC
		 LIMIT ?`, limit)
	if err != nil {
		r.logger.Error("Failed to list receipts needing review", zap.Error(err))
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var records []*ReceiptRecord
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListRecent returns the most recently stored receipts, newest first.
func (r *ReceiptRepository) ListRecent(ctx context.Context, limit int) ([]*ReceiptRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+receiptColumns+`
		 FROM receipts
		 ORDER BY created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		r.logger.Error("Failed to list recent receipts", zap.Error(err))
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var records []*ReceiptRecord
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkReviewed records that a human confirmed or corrected the receipt.
func (r *ReceiptRepository) MarkReviewed(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE receipts SET reviewed = 1 WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to mark receipt reviewed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark receipt reviewed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("receipt %d not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*ReceiptRecord, error) {
	var (
		rec      ReceiptRecord
		total    sql.NullFloat64
		products string
		reasons  string
		issues   string
		warnings string
	)

	err := row.Scan(
		&rec.ID,
		&rec.Store,
		&rec.Date,
		&total,
		&rec.CalculatedTotal,
		&rec.Score,
		&rec.NeedsReview,
		&rec.AutoSaved,
		&rec.Reviewed,
		&products,
		&reasons,
		&issues,
		&warnings,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if total.Valid {
		rec.Total = &total.Float64
	}
	if err := json.Unmarshal([]byte(products), &rec.Products); err != nil {
		return nil, fmt.Errorf("failed to unmarshal products: %w", err)
	}
	if err := json.Unmarshal([]byte(reasons), &rec.ReviewReasons); err != nil {
		return nil, fmt.Errorf("failed to unmarshal review reasons: %w", err)
	}
	if err := json.Unmarshal([]byte(issues), &rec.Issues); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issues: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &rec.Warnings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
	}
	return &rec, nil
}
