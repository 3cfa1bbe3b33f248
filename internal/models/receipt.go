package models

import (
	"math"
	"regexp"
)

// DiscountKind distinguishes fixed-amount discounts from percentage ones.
type DiscountKind string

const (
	DiscountAmount     DiscountKind = "amount"
	DiscountPercentage DiscountKind = "percentage"
)

// DiscountInfo is a single discount applied to a product. Immutable once built.
type DiscountInfo struct {
	Kind  DiscountKind `json:"type"`
	Value float64      `json:"value"`
	Label string       `json:"label"`
}

// ParsedProduct is one purchased item reconstructed from receipt text.
// Price is the final price actually charged after any discount.
type ParsedProduct struct {
	Name                string         `json:"name"`
	Price               float64        `json:"price"`
	Category            string         `json:"category,omitempty"`
	Confidence          float64        `json:"confidence,omitempty"`
	Warning             string         `json:"warning,omitempty"`
	OriginalName        string         `json:"original_name,omitempty"`
	NormalizedName      string         `json:"normalized_name,omitempty"`
	PriceBeforeDiscount *float64       `json:"price_before_discount,omitempty"`
	DiscountAmount      *float64       `json:"discount_amount,omitempty"`
	DiscountBreakdown   []DiscountInfo `json:"discount_breakdown,omitempty"`
}

// Discounted reports whether a reconciled discount is recorded on the product.
func (p *ParsedProduct) Discounted() bool {
	return p.DiscountAmount != nil && *p.DiscountAmount > 0
}

// ParsedReceipt is the immutable result of one parse call.
type ParsedReceipt struct {
	Products []ParsedProduct `json:"products"`
	Store    string          `json:"store,omitempty"`
	Date     string          `json:"date,omitempty"`
	Total    *float64        `json:"total,omitempty"`
	RawText  string          `json:"raw_text"`
}

// Receipt is the domain object consumed downstream of parsing.
type Receipt struct {
	Products        []ParsedProduct `json:"products"`
	Store           string          `json:"store,omitempty"`
	Date            string          `json:"date,omitempty"`
	Total           *float64        `json:"total,omitempty"`
	CalculatedTotal float64         `json:"calculated_total"`
	NeedsReview     bool            `json:"needs_review"`
	ReviewReasons   []string        `json:"review_reasons,omitempty"`
	RawText         string          `json:"raw_text,omitempty"`
}

// ConfidenceReport is the scorer's verdict for one receipt. All numeric
// fields are rounded to 3 decimals.
type ConfidenceReport struct {
	Score                    float64  `json:"score"`
	TotalMatchScore          float64  `json:"total_match_score"`
	CompletenessScore        float64  `json:"completeness_score"`
	ProductQualityScore      float64  `json:"product_quality_score"`
	DiscountConsistencyScore float64  `json:"discount_consistency_score"`
	NeedsReview              bool     `json:"needs_review"`
	AutoSaveOK               bool     `json:"auto_save_ok"`
	Issues                   []string `json:"issues"`
	Warnings                 []string `json:"warnings"`
}

// TotalMismatch review reason text, shared between assembly and tests.
const ReasonTotalMismatch = "declared total does not match sum of item prices"

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsISODate reports whether s looks like an ISO 8601 calendar date.
func IsISODate(s string) bool {
	return isoDatePattern.MatchString(s)
}

// Round2 rounds to 2 decimal places, the receipt money precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BuildReceipt assembles the domain Receipt from a parse result: computes
// the calculated total and flags a total mismatch for review when the
// declared total is off by more than 5.00 or more than 10%.
func BuildReceipt(parsed *ParsedReceipt) *Receipt {
	r := &Receipt{
		Products: parsed.Products,
		Store:    parsed.Store,
		Date:     parsed.Date,
		Total:    parsed.Total,
		RawText:  parsed.RawText,
	}

	var sum float64
	for _, p := range parsed.Products {
		sum += p.Price
	}
	r.CalculatedTotal = Round2(sum)

	if parsed.Total != nil {
		diff := math.Abs(*parsed.Total - r.CalculatedTotal)
		if diff > 5.00 || (*parsed.Total > 0 && diff / *parsed.Total > 0.10) {
			r.NeedsReview = true
			r.ReviewReasons = append(r.ReviewReasons, ReasonTotalMismatch)
		}
	}

	return r
}
