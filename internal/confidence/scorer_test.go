package confidence

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/models"
)

func newTestScorer() *Scorer {
	return NewScorer(DefaultThresholds(), zap.NewNop())
}

func fp(v float64) *float64 { return &v }

func perfectReceipt() *models.Receipt {
	return &models.Receipt{
		Store: "Biedronka",
		Date:  "2026-01-15",
		Total: fp(20.79),
		Products: []models.ParsedProduct{
			{Name: "Mleko UHT 3.2%", Price: 4.29},
			{Name: "Chleb żytni", Price: 4.00},
			{Name: "Ser Gouda", Price: 12.50},
		},
		CalculatedTotal: 20.79,
	}
}

func TestScorePerfectReceipt(t *testing.T) {
	s := newTestScorer()

	report := s.Score(perfectReceipt())

	assert.Equal(t, 1.0, report.Score)
	assert.Equal(t, 1.0, report.TotalMatchScore)
	assert.Equal(t, 1.0, report.CompletenessScore)
	assert.Equal(t, 1.0, report.ProductQualityScore)
	assert.Equal(t, 1.0, report.DiscountConsistencyScore)
	assert.False(t, report.NeedsReview)
	assert.True(t, report.AutoSaveOK)
	assert.Empty(t, report.Issues)
	assert.Empty(t, report.Warnings)
}

func TestScoreWeighting(t *testing.T) {
	s := newTestScorer()

	// A wildly wrong declared total drives the total-match sub-score to
	// 0.20 while everything else stays perfect.
	r := perfectReceipt()
	r.Total = fp(100.00)

	report := s.Score(r)

	assert.Equal(t, 0.20, report.TotalMatchScore)
	assert.Equal(t, 0.68, report.Score)
	assert.True(t, report.NeedsReview)
	assert.False(t, report.AutoSaveOK)
	assert.NotEmpty(t, report.Issues)
}

func TestScoreTotalMatchBands(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		declared float64
		want     float64
	}{
		{20.84, 1.00}, // diff 0.05
		{21.50, 0.95}, // diff 0.71
		{22.79, 0.85}, // diff 2.00
		{24.90, 0.70}, // diff 4.11
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("declared %.2f", tt.declared), func(t *testing.T) {
			r := perfectReceipt()
			r.Total = fp(tt.declared)
			report := s.Score(r)
			assert.Equal(t, tt.want, report.TotalMatchScore)
		})
	}
}

func TestScoreTotalMatchPercentageBands(t *testing.T) {
	s := newTestScorer()

	// diff 8.00 on a declared 100.00 is 8%, an issue at 0.50.
	r := &models.Receipt{
		Store:           "Biedronka",
		Date:            "2026-01-15",
		Total:           fp(100.00),
		Products:        []models.ParsedProduct{{Name: "Karton wina", Price: 92.00}},
		CalculatedTotal: 92.00,
	}
	report := s.Score(r)
	assert.Equal(t, 0.50, report.TotalMatchScore)
	assert.NotEmpty(t, report.Issues)
	assert.True(t, report.NeedsReview)
}

func TestScoreMissingTotal(t *testing.T) {
	s := newTestScorer()

	r := perfectReceipt()
	r.Total = nil

	report := s.Score(r)
	assert.Equal(t, 0.70, report.TotalMatchScore)
	assert.Equal(t, 0.75, report.CompletenessScore)
	assert.NotEmpty(t, report.Warnings)
	assert.Empty(t, report.Issues)
}

func TestScoreNoProducts(t *testing.T) {
	s := newTestScorer()

	r := &models.Receipt{
		Store: "Biedronka",
		Date:  "2026-01-15",
		Total: fp(10.00),
	}

	report := s.Score(r)
	assert.Equal(t, 0.0, report.TotalMatchScore)
	assert.Equal(t, 0.75, report.CompletenessScore)
	assert.Equal(t, 0.0, report.ProductQualityScore)
	assert.True(t, report.NeedsReview)
	assert.False(t, report.AutoSaveOK)
}

func TestScoreNonISODate(t *testing.T) {
	s := newTestScorer()

	r := perfectReceipt()
	r.Date = "15.01.2026"

	report := s.Score(r)
	assert.Equal(t, 0.875, report.CompletenessScore)
	assert.NotEmpty(t, report.Warnings)
}

func TestScoreAutoSaveBoundary(t *testing.T) {
	s := newTestScorer()

	// total 0.70, completeness 0.75, quality 0.90, discounts 1.00:
	// weighted exactly to the auto-save boundary.
	r := &models.Receipt{
		Store: "Biedronka",
		Date:  "2026-01-15",
		Products: []models.ParsedProduct{
			{Name: "Mleko UHT 3.2%", Price: 4.29},
			{Name: "Chleb żytni", Price: 4.00},
		},
		CalculatedTotal: 8.29,
	}

	report := s.Score(r)
	assert.Equal(t, 0.80, report.Score)
	assert.True(t, report.AutoSaveOK, "boundary score with no issues must auto-save")
	assert.False(t, report.NeedsReview)
}

func TestScoreIssueBlocksAutoSave(t *testing.T) {
	s := newTestScorer()

	r := perfectReceipt()
	r.Products = append(r.Products, models.ParsedProduct{
		Name:                "Kawa ziarnista",
		Price:               2.00,
		PriceBeforeDiscount: fp(3.00),
		DiscountAmount:      fp(5.00),
	})
	r.CalculatedTotal = 22.79
	r.Total = fp(22.79)

	report := s.Score(r)
	assert.NotEmpty(t, report.Issues)
	assert.False(t, report.AutoSaveOK)
	assert.True(t, report.NeedsReview)
}

func TestScoreProductQualityPenalties(t *testing.T) {
	s := newTestScorer()

	t.Run("suspicious names", func(t *testing.T) {
		r := perfectReceipt()
		r.Products = []models.ParsedProduct{
			{Name: "Produkt 1", Price: 5.00},
			{Name: "Produkt 2", Price: 5.00},
			{Name: "Produkt 3", Price: 5.00},
		}
		r.Total = fp(15.00)
		r.CalculatedTotal = 15.00

		report := s.Score(r)
		assert.InDelta(t, 0.30, report.ProductQualityScore, 0.001)
		assert.NotEmpty(t, report.Warnings)
	})

	t.Run("short name", func(t *testing.T) {
		r := perfectReceipt()
		r.Products[0].Name = "Ab"

		report := s.Score(r)
		assert.InDelta(t, (0.5+1.0+1.0)/3, report.ProductQualityScore, 0.001)
	})

	t.Run("few products band", func(t *testing.T) {
		r := &models.Receipt{
			Store:           "Biedronka",
			Date:            "2026-01-15",
			Total:           fp(4.29),
			Products:        []models.ParsedProduct{{Name: "Mleko UHT", Price: 4.29}},
			CalculatedTotal: 4.29,
		}
		report := s.Score(r)
		assert.InDelta(t, 0.90, report.ProductQualityScore, 0.001)
	})

	t.Run("category bonus capped at one", func(t *testing.T) {
		r := perfectReceipt()
		for i := range r.Products {
			r.Products[i].Category = "nabiał"
		}
		report := s.Score(r)
		assert.Equal(t, 1.0, report.ProductQualityScore)
	})
}

func TestScoreDiscountConsistency(t *testing.T) {
	s := newTestScorer()

	discounted := func(price, before, discount float64) *models.Receipt {
		r := perfectReceipt()
		r.Products = []models.ParsedProduct{
			{Name: "Mleko UHT", Price: 5.00},
			{Name: "Chleb żytni", Price: 5.00},
			{
				Name:                "Kawa ziarnista",
				Price:               price,
				PriceBeforeDiscount: fp(before),
				DiscountAmount:      fp(discount),
			},
		}
		sum := 10.00 + price
		r.Total = fp(sum)
		r.CalculatedTotal = sum
		return r
	}

	t.Run("consistent discount", func(t *testing.T) {
		report := s.Score(discounted(4.00, 5.00, 1.00))
		assert.Equal(t, 1.0, report.DiscountConsistencyScore)
	})

	t.Run("discount exceeds original price", func(t *testing.T) {
		report := s.Score(discounted(2.00, 3.00, 5.00))
		assert.InDelta(t, 0.30, report.DiscountConsistencyScore, 0.001)
		assert.NotEmpty(t, report.Issues)
	})

	t.Run("discount above 80 percent of original", func(t *testing.T) {
		report := s.Score(discounted(1.00, 10.00, 9.00))
		assert.InDelta(t, 0.70, report.DiscountConsistencyScore, 0.001)
		assert.NotEmpty(t, report.Warnings)
	})

	t.Run("very large discount", func(t *testing.T) {
		report := s.Score(discounted(40.00, 100.00, 60.00))
		assert.InDelta(t, 0.80, report.DiscountConsistencyScore, 0.001)
	})

	t.Run("no discounts scores full", func(t *testing.T) {
		report := s.Score(perfectReceipt())
		assert.Equal(t, 1.0, report.DiscountConsistencyScore)
	})
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{ReviewBelow: -0.1, AutoSaveAt: 0.8}.Validate())
	assert.Error(t, Thresholds{ReviewBelow: 0.7, AutoSaveAt: 1.2}.Validate())
	assert.Error(t, Thresholds{ReviewBelow: 0.8, AutoSaveAt: 0.7}.Validate())
}
