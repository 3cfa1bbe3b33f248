package confidence

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/models"
)

// Sub-score weights. They sum to 1.0.
const (
	weightTotalMatch = 0.40
	weightComplete   = 0.20
	weightQuality    = 0.30
	weightDiscount   = 0.10
)

// Thresholds are the decision boundaries for routing a scored receipt.
type Thresholds struct {
	// ReviewBelow: receipts scoring under this need a human.
	ReviewBelow float64
	// AutoSaveAt: receipts at or above this, with no issues, commit
	// without review.
	AutoSaveAt float64
}

// DefaultThresholds returns the standard routing boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{ReviewBelow: 0.70, AutoSaveAt: 0.80}
}

// Validate ensures the boundaries are in range and ordered.
func (t Thresholds) Validate() error {
	if t.ReviewBelow < 0 || t.ReviewBelow > 1 {
		return fmt.Errorf("ReviewBelow must be between 0.0 and 1.0, got %.2f", t.ReviewBelow)
	}
	if t.AutoSaveAt < 0 || t.AutoSaveAt > 1 {
		return fmt.Errorf("AutoSaveAt must be between 0.0 and 1.0, got %.2f", t.AutoSaveAt)
	}
	if t.AutoSaveAt < t.ReviewBelow {
		return fmt.Errorf("AutoSaveAt must not be below ReviewBelow (auto: %.2f, review: %.2f)", t.AutoSaveAt, t.ReviewBelow)
	}
	return nil
}

// Scorer computes the weighted confidence verdict for a receipt.
// Stateless and safe for concurrent use.
type Scorer struct {
	thresholds Thresholds
	logger     *zap.Logger
}

func NewScorer(thresholds Thresholds, logger *zap.Logger) *Scorer {
	return &Scorer{thresholds: thresholds, logger: logger}
}

// report collects issues and warnings while sub-scores are computed.
type report struct {
	issues   []string
	warnings []string
}

func (r *report) issue(msg string)   { r.issues = append(r.issues, msg) }
func (r *report) warning(msg string) { r.warnings = append(r.warnings, msg) }

// Score produces the confidence report for a receipt. Sub-scores never
// fail: missing or out-of-range inputs degrade to documented fallback
// values instead.
func (s *Scorer) Score(receipt *models.Receipt) *models.ConfidenceReport {
	rep := &report{issues: []string{}, warnings: []string{}}

	totalMatch := s.scoreTotalMatch(receipt, rep)
	completeness := s.scoreCompleteness(receipt, rep)
	quality := s.scoreProductQuality(receipt, rep)
	discount := s.scoreDiscountConsistency(receipt, rep)

	score := round3(weighted(totalMatch, completeness, quality, discount))

	out := &models.ConfidenceReport{
		Score:                    score,
		TotalMatchScore:          round3(totalMatch),
		CompletenessScore:        round3(completeness),
		ProductQualityScore:      round3(quality),
		DiscountConsistencyScore: round3(discount),
		NeedsReview:              score < s.thresholds.ReviewBelow || len(rep.issues) > 0,
		AutoSaveOK:               score >= s.thresholds.AutoSaveAt && len(rep.issues) == 0,
		Issues:                   rep.issues,
		Warnings:                 rep.warnings,
	}

	s.logger.Debug("receipt scored",
		zap.Float64("score", out.Score),
		zap.Bool("needs_review", out.NeedsReview),
		zap.Bool("auto_save_ok", out.AutoSaveOK),
		zap.Int("issues", len(out.Issues)),
		zap.Int("warnings", len(out.Warnings)))

	return out
}

// weighted combines sub-scores with exact decimal arithmetic so boundary
// cases like 0.80 land on the boundary.
func weighted(totalMatch, completeness, quality, discount float64) float64 {
	sum := decimal.NewFromFloat(totalMatch).Mul(decimal.NewFromFloat(weightTotalMatch)).
		Add(decimal.NewFromFloat(completeness).Mul(decimal.NewFromFloat(weightComplete))).
		Add(decimal.NewFromFloat(quality).Mul(decimal.NewFromFloat(weightQuality))).
		Add(decimal.NewFromFloat(discount).Mul(decimal.NewFromFloat(weightDiscount)))
	f, _ := sum.Float64()
	return f
}

// scoreTotalMatch compares the declared total against the sum of item
// prices. Absolute-difference bands first, percentage bands after.
func (s *Scorer) scoreTotalMatch(receipt *models.Receipt, rep *report) float64 {
	if len(receipt.Products) == 0 {
		rep.issue("no products to verify total against")
		return 0.0
	}
	if receipt.Total == nil {
		rep.warning("no declared total, cannot verify item sum")
		return 0.70
	}

	declared := *receipt.Total
	diff := math.Abs(declared - receipt.CalculatedTotal)

	switch {
	case diff <= 0.10:
		return 1.00
	case diff <= 1.00:
		return 0.95
	case diff <= 3.00:
		rep.warning(fmt.Sprintf("total off by %.2f", diff))
		return 0.85
	case diff <= 5.00:
		rep.warning(fmt.Sprintf("total off by %.2f", diff))
		return 0.70
	}

	pct := 100.0
	if declared > 0 {
		pct = diff / declared * 100
	}
	if pct <= 10 {
		rep.issue(fmt.Sprintf("total off by %.2f (%.1f%%)", diff, pct))
		return 0.50
	}
	rep.issue(fmt.Sprintf("total off by %.2f (%.1f%%)", diff, pct))
	return 0.20
}

// scoreCompleteness awards one point (of 4) per present header field.
func (s *Scorer) scoreCompleteness(receipt *models.Receipt, rep *report) float64 {
	points := 0.0

	if len(receipt.Store) > 2 {
		points++
	}
	if receipt.Date != "" {
		if models.IsISODate(receipt.Date) {
			points++
		} else {
			rep.warning(fmt.Sprintf("date %q is not ISO formatted", receipt.Date))
			points += 0.5
		}
	}
	if receipt.Total != nil && *receipt.Total > 0 {
		points++
	}
	if len(receipt.Products) > 0 {
		points++
	} else {
		rep.issue("no products")
	}

	return points / 4
}

// Names that scream OCR failure or placeholder output.
var suspiciousNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(produkt|artyku[łl]|item|product|towar)\s*\d*$`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^[A-Z]{1,3}$`),
	regexp.MustCompile(`(?i)^(vat|ptu)\b`),
}

// scoreProductQuality multiplies per-product penalties, averages across
// products and scales by the product-count band.
func (s *Scorer) scoreProductQuality(receipt *models.Receipt, rep *report) float64 {
	if len(receipt.Products) == 0 {
		return 0.0
	}

	suspiciousReported := 0
	sum := 0.0
	for _, p := range receipt.Products {
		q := 1.0

		nameLen := len([]rune(p.Name))
		if nameLen < 3 {
			q *= 0.5
		}
		if nameLen > 50 {
			q *= 0.8
		}
		if isSuspiciousName(p.Name) {
			q *= 0.3
			if suspiciousReported < 3 {
				rep.warning(fmt.Sprintf("suspicious product name %q", p.Name))
				suspiciousReported++
			}
		}
		if p.Price <= 0 {
			q *= 0.2
		}
		if p.Price > 500 {
			rep.warning(fmt.Sprintf("product %q price %.2f above sanity bound", p.Name, p.Price))
			q *= 0.7
		}
		if p.Category != "" {
			q = math.Min(q*1.1, 1.0)
		}
		sum += q
	}
	avg := sum / float64(len(receipt.Products))

	switch n := len(receipt.Products); {
	case n < 3:
		rep.warning("few products parsed")
		avg *= 0.9
	case n > 30:
		rep.warning("many products parsed")
		avg *= 0.95
	}
	return avg
}

func isSuspiciousName(name string) bool {
	name = strings.TrimSpace(name)
	for _, p := range suspiciousNamePatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// scoreDiscountConsistency checks the arithmetic of every discounted
// product. Receipts without discounts score 1.0.
func (s *Scorer) scoreDiscountConsistency(receipt *models.Receipt, rep *report) float64 {
	sum := 0.0
	count := 0

	for _, p := range receipt.Products {
		if !p.Discounted() || p.PriceBeforeDiscount == nil {
			continue
		}
		count++
		d := 1.0

		discount := *p.DiscountAmount
		before := *p.PriceBeforeDiscount

		if discount > before {
			rep.issue(fmt.Sprintf("product %q discount %.2f exceeds original price %.2f", p.Name, discount, before))
			d *= 0.3
		} else if before > 0 && discount > 0.8*before {
			rep.warning(fmt.Sprintf("product %q discount exceeds 80%% of original price", p.Name))
			d *= 0.7
		}
		if discount > 50 {
			rep.warning(fmt.Sprintf("product %q has a very large discount %.2f", p.Name, discount))
			d *= 0.8
		}
		if p.Price <= 0 {
			rep.issue(fmt.Sprintf("product %q final price is not positive after discount", p.Name))
			d *= 0.2
		}
		sum += d
	}

	if count == 0 {
		return 1.0
	}
	return sum / float64(count)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
