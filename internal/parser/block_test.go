package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpantry/paragon/internal/models"
)

var testMaxPrice = decimal.NewFromFloat(500.0)

func TestFinalizeNoPrices(t *testing.T) {
	b := newProductBlock("Mleko")
	assert.Nil(t, b.finalize(testMaxPrice))
}

func TestFinalizeRepeatedPriceCollapses(t *testing.T) {
	b := newProductBlock("Mleko UHT 3.2%")
	b.addPrice(2.85)
	b.addPrice(2.85)

	p := b.finalize(testMaxPrice)
	require.NotNil(t, p)
	assert.Equal(t, 2.85, p.Price)
	assert.Nil(t, p.PriceBeforeDiscount)
	assert.Nil(t, p.DiscountAmount)
	assert.Empty(t, p.DiscountBreakdown)
}

func TestFinalizeAmountDiscount(t *testing.T) {
	// Chleb: original 5.00, Rabat 1.00, final 4.00.
	b := newProductBlock("Chleb żytni")
	b.addPrice(5.00)
	b.addDiscount(models.DiscountAmount, 1.00, "Rabat")
	b.addPrice(4.00)

	p := b.finalize(testMaxPrice)
	require.NotNil(t, p)
	assert.Equal(t, 4.00, p.Price)
	require.NotNil(t, p.PriceBeforeDiscount)
	assert.Equal(t, 5.00, *p.PriceBeforeDiscount)
	require.NotNil(t, p.DiscountAmount)
	assert.Equal(t, 1.00, *p.DiscountAmount)
	require.Len(t, p.DiscountBreakdown, 1)
	assert.Equal(t, models.DiscountAmount, p.DiscountBreakdown[0].Kind)
	assert.Equal(t, "Rabat", p.DiscountBreakdown[0].Label)
}

func TestFinalizeDuplicatedOriginalReconstructsFinal(t *testing.T) {
	// Both printed prices repeat the original and the charged price was
	// never printed.
	b := newProductBlock("Chleb")
	b.addPrice(5.00)
	b.addPrice(5.00)
	b.addDiscount(models.DiscountAmount, 1.00, "Rabat")

	p := b.finalize(testMaxPrice)
	require.NotNil(t, p)
	assert.Equal(t, 4.00, p.Price)
	require.NotNil(t, p.PriceBeforeDiscount)
	assert.Equal(t, 5.00, *p.PriceBeforeDiscount)
	require.NotNil(t, p.DiscountAmount)
	assert.Equal(t, 1.00, *p.DiscountAmount)
}

func TestFinalizeSinglePriceReconstructsOriginal(t *testing.T) {
	// Only the final price was printed; the pre-discount price is
	// reconstructed from the discount amount.
	b := newProductBlock("Masło extra")
	b.addPrice(4.00)
	b.addDiscount(models.DiscountAmount, 1.00, "Rabat")

	p := b.finalize(testMaxPrice)
	require.NotNil(t, p)
	assert.Equal(t, 4.00, p.Price)
	require.NotNil(t, p.PriceBeforeDiscount)
	assert.Equal(t, 5.00, *p.PriceBeforeDiscount)
}

func TestFinalizeSinglePricePercentageStaysUnresolved(t *testing.T) {
	// A percentage discount with no observed pre-discount price cannot be
	// converted to an amount, so no discount fields are set.
	b := newProductBlock("Jogurt")
	b.addPrice(2.00)
	b.addDiscount(models.DiscountPercentage, 30, "Rabat")

	p := b.finalize(testMaxPrice)
	require.NotNil(t, p)
	assert.Equal(t, 2.00, p.Price)
	assert.Nil(t, p.DiscountAmount)
	require.Len(t, p.DiscountBreakdown, 1)
}

func TestFinalizePercentageResolvedAgainstOriginal(t *testing.T) {
	b := newProductBlock("Kawa mielona")
	b.addPrice(10.00)
	b.addDiscount(models.DiscountPercentage, 30, "Promocja")
	b.addPrice(7.00)

	p := b.finalize(testMaxPrice)
	require.NotNil(t, p)
	assert.Equal(t, 7.00, p.Price)
	require.NotNil(t, p.PriceBeforeDiscount)
	assert.Equal(t, 10.00, *p.PriceBeforeDiscount)
	require.NotNil(t, p.DiscountAmount)
	assert.Equal(t, 3.00, *p.DiscountAmount)
}

func TestFinalizeBackwardScanPicksNearestOriginal(t *testing.T) {
	b := newProductBlock("Herbata")
	b.addPrice(9.99)
	b.addPrice(5.00)
	b.addDiscount(models.DiscountAmount, 1.00, "Rabat")
	b.addPrice(4.00)

	p := b.finalize(testMaxPrice)
	require.NotNil(t, p)
	require.NotNil(t, p.PriceBeforeDiscount)
	assert.Equal(t, 5.00, *p.PriceBeforeDiscount)
}

func TestFinalizeRepairRescansForConsistentOriginal(t *testing.T) {
	// The backward scan lands on 9.99 first, which does not explain the
	// final price; the repair pass finds 5.00.
	b := newProductBlock("Herbata")
	b.addPrice(5.00)
	b.addPrice(9.99)
	b.addDiscount(models.DiscountAmount, 1.00, "Rabat")
	b.addPrice(4.00)

	p := b.finalize(testMaxPrice)
	require.NotNil(t, p)
	require.NotNil(t, p.PriceBeforeDiscount)
	assert.Equal(t, 5.00, *p.PriceBeforeDiscount)
	require.NotNil(t, p.DiscountAmount)
	assert.Equal(t, 1.00, *p.DiscountAmount)
}

func TestFinalizeMalformedDiscountDropsPriceBefore(t *testing.T) {
	// No accumulated price explains final+discount: the product is still
	// emitted but without a pre-discount price.
	b := newProductBlock("Herbata")
	b.addPrice(9.99)
	b.addDiscount(models.DiscountAmount, 1.00, "Rabat")
	b.addPrice(4.00)

	p := b.finalize(testMaxPrice)
	require.NotNil(t, p)
	assert.Equal(t, 4.00, p.Price)
	assert.Nil(t, p.PriceBeforeDiscount)
	assert.Nil(t, p.DiscountAmount)
	assert.NotEmpty(t, p.DiscountBreakdown)
}

func TestFinalizeToleranceAcceptsSmallDrift(t *testing.T) {
	b := newProductBlock("Ser")
	b.addPrice(5.01)
	b.addDiscount(models.DiscountAmount, 1.00, "Rabat")
	b.addPrice(4.00)

	p := b.finalize(testMaxPrice)
	require.NotNil(t, p)
	require.NotNil(t, p.PriceBeforeDiscount)
	assert.Equal(t, 5.01, *p.PriceBeforeDiscount)
}

func TestFinalizeRejectsOutOfRangeFinalPrice(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		b := newProductBlock("Gratis")
		b.addPrice(0.00)
		assert.Nil(t, b.finalize(testMaxPrice))
	})

	t.Run("above sanity bound", func(t *testing.T) {
		b := newProductBlock("Telewizor")
		b.addPrice(600.00)
		assert.Nil(t, b.finalize(testMaxPrice))
	})
}

func TestConsumePriceNegativeBecomesDiscount(t *testing.T) {
	b := newProductBlock("Chleb")
	b.pendingDiscountLabel = "Promocja"
	b.consumePrice(-1.50)

	require.Len(t, b.discounts, 1)
	assert.Equal(t, models.DiscountAmount, b.discounts[0].Kind)
	assert.Equal(t, 1.50, b.discounts[0].Value)
	assert.Equal(t, "Promocja", b.discounts[0].Label)
	assert.Empty(t, b.pendingDiscountLabel)
	assert.Empty(t, b.prices)
}

func TestConsumePriceNegativeDefaultLabel(t *testing.T) {
	b := newProductBlock("Chleb")
	b.consumePrice(-1.00)

	require.Len(t, b.discounts, 1)
	assert.Equal(t, DefaultDiscountLabel, b.discounts[0].Label)
}
