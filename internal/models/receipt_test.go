package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReceiptCalculatesTotal(t *testing.T) {
	total := 20.79
	parsed := &ParsedReceipt{
		Store: "Biedronka",
		Date:  "2026-01-15",
		Total: &total,
		Products: []ParsedProduct{
			{Name: "Mleko", Price: 4.29},
			{Name: "Chleb", Price: 4.00},
			{Name: "Ser", Price: 12.50},
		},
	}

	r := BuildReceipt(parsed)
	assert.Equal(t, 20.79, r.CalculatedTotal)
	assert.False(t, r.NeedsReview)
	assert.Empty(t, r.ReviewReasons)
}

func TestBuildReceiptFlagsLargeMismatch(t *testing.T) {
	t.Run("absolute difference", func(t *testing.T) {
		total := 50.00
		r := BuildReceipt(&ParsedReceipt{
			Total:    &total,
			Products: []ParsedProduct{{Name: "Mleko", Price: 30.00}},
		})
		assert.True(t, r.NeedsReview)
		require.Len(t, r.ReviewReasons, 1)
		assert.Equal(t, ReasonTotalMismatch, r.ReviewReasons[0])
	})

	t.Run("relative difference", func(t *testing.T) {
		total := 10.00
		r := BuildReceipt(&ParsedReceipt{
			Total:    &total,
			Products: []ParsedProduct{{Name: "Mleko", Price: 8.50}},
		})
		assert.True(t, r.NeedsReview)
	})

	t.Run("small difference passes", func(t *testing.T) {
		total := 10.04
		r := BuildReceipt(&ParsedReceipt{
			Total:    &total,
			Products: []ParsedProduct{{Name: "Mleko", Price: 10.00}},
		})
		assert.False(t, r.NeedsReview)
	})

	t.Run("no declared total never flags", func(t *testing.T) {
		r := BuildReceipt(&ParsedReceipt{
			Products: []ParsedProduct{{Name: "Mleko", Price: 10.00}},
		})
		assert.False(t, r.NeedsReview)
	})
}

func TestDiscounted(t *testing.T) {
	amount := 1.00
	zero := 0.0

	assert.True(t, (&ParsedProduct{DiscountAmount: &amount}).Discounted())
	assert.False(t, (&ParsedProduct{DiscountAmount: &zero}).Discounted())
	assert.False(t, (&ParsedProduct{}).Discounted())
}

func TestIsISODate(t *testing.T) {
	assert.True(t, IsISODate("2026-01-15"))
	assert.False(t, IsISODate("15.01.2026"))
	assert.False(t, IsISODate("2026-1-15"))
	assert.False(t, IsISODate(""))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 4.29, Round2(4.291))
	assert.Equal(t, 4.3, Round2(4.296))
	assert.Equal(t, -1.5, Round2(-1.499))
}
