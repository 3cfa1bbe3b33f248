package parser

import (
	"github.com/shopspring/decimal"

	"github.com/smartpantry/paragon/internal/models"
)

// reconcileTolerance is the allowed drift between price_before − discount
// and the final price, in currency units.
var reconcileTolerance = decimal.NewFromFloat(0.02)

// productBlock accumulates the lines belonging to one product, from its
// name line until the next name/skip line. It is owned by a single parse
// run and consumed exactly once at finalization.
type productBlock struct {
	name                 string
	taxClass             string
	quantity             float64
	prices               []decimal.Decimal
	discounts            []models.DiscountInfo
	pendingDiscountLabel string
}

func newProductBlock(name string) *productBlock {
	return &productBlock{name: name}
}

func (b *productBlock) addPrice(v float64) {
	b.prices = append(b.prices, decimal.NewFromFloat(v))
}

func (b *productBlock) addDiscount(kind models.DiscountKind, value float64, label string) {
	b.discounts = append(b.discounts, models.DiscountInfo{Kind: kind, Value: value, Label: label})
}

// consumePrice routes a classified price into the block: negative prices
// are discount amounts labelled by the pending marker (or the default).
func (b *productBlock) consumePrice(v float64) {
	if v < 0 {
		label := b.pendingDiscountLabel
		if label == "" {
			label = DefaultDiscountLabel
		}
		b.addDiscount(models.DiscountAmount, -v, label)
		b.pendingDiscountLabel = ""
		return
	}
	b.addPrice(v)
}

// finalize reconciles the accumulated prices and discounts into a
// ParsedProduct. Returns nil when the block holds no usable product:
// either no price was seen at all, or the resolved final price falls
// outside (0, maxPrice], which on OCR input means garbage.
func (b *productBlock) finalize(maxPrice decimal.Decimal) *models.ParsedProduct {
	if len(b.prices) == 0 {
		return nil
	}

	var (
		final       decimal.Decimal
		priceBefore *decimal.Decimal
	)

	totalDiscount := decimal.Zero
	for _, d := range b.discounts {
		if d.Kind == models.DiscountAmount {
			totalDiscount = totalDiscount.Add(decimal.NewFromFloat(d.Value))
		}
	}

	hasDiscounts := len(b.discounts) > 0

	switch {
	case hasDiscounts && len(b.prices) >= 2:
		final = b.prices[len(b.prices)-1]
		priceBefore = b.findPriceBefore(final)

		if priceBefore == nil {
			// Every accumulated price repeats the original and the
			// charged price was never printed: the last price is the
			// pre-discount price and the final is reconstructed.
			pb := final
			totalDiscount = b.resolvePercentages(totalDiscount, &pb)
			final = pb.Sub(totalDiscount)
			priceBefore = &pb
			break
		}

		totalDiscount = b.resolvePercentages(totalDiscount, priceBefore)

		// Validation/repair: the chosen price_before must explain the
		// final price within tolerance; otherwise re-scan for one that does.
		if priceBefore.Sub(totalDiscount).Sub(final).Abs().GreaterThan(reconcileTolerance) {
			priceBefore = b.repairPriceBefore(final, totalDiscount)
		}

	case hasDiscounts:
		// One price only: treat it as the final price and reconstruct
		// what was paid before the discount. Percentage discounts stay
		// unresolved here because no pre-discount price was ever seen.
		final = b.prices[0]
		pb := final.Add(totalDiscount)
		priceBefore = &pb

	default:
		// No discounts: the final price is the last accumulated one,
		// which also collapses duplicate repeated prices.
		final = b.prices[len(b.prices)-1]
	}

	if final.LessThanOrEqual(decimal.Zero) || final.GreaterThan(maxPrice) {
		return nil
	}

	p := &models.ParsedProduct{
		Name:  b.name,
		Price: round2(final),
	}

	if hasDiscounts && totalDiscount.GreaterThan(decimal.Zero) && priceBefore != nil {
		pb := round2(*priceBefore)
		da := round2(totalDiscount)
		p.PriceBeforeDiscount = &pb
		p.DiscountAmount = &da
	}
	if hasDiscounts {
		p.DiscountBreakdown = b.discounts
	}

	return p
}

// findPriceBefore picks the pre-discount price from the accumulated
// prices: the most recent one strictly greater than the final price,
// falling back to the first greater one scanning forward.
func (b *productBlock) findPriceBefore(final decimal.Decimal) *decimal.Decimal {
	rest := b.prices[:len(b.prices)-1]
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i].GreaterThan(final) {
			return &rest[i]
		}
	}
	for i := range rest {
		if rest[i].GreaterThan(final) {
			return &rest[i]
		}
	}
	return nil
}

// resolvePercentages converts percentage discounts into amounts against
// the known pre-discount price. Percentages stay unresolved (and are not
// counted) when no pre-discount price is known.
func (b *productBlock) resolvePercentages(totalDiscount decimal.Decimal, priceBefore *decimal.Decimal) decimal.Decimal {
	if priceBefore == nil {
		return totalDiscount
	}
	hundred := decimal.NewFromInt(100)
	for _, d := range b.discounts {
		if d.Kind != models.DiscountPercentage {
			continue
		}
		amount := priceBefore.Mul(decimal.NewFromFloat(d.Value)).Div(hundred).Round(2)
		totalDiscount = totalDiscount.Add(amount)
	}
	return totalDiscount
}

// repairPriceBefore re-scans the non-final prices for one whose value
// minus the total discount lands on the final price. Nil means the
// discount bookkeeping cannot be reconciled; the product is still
// emitted, just without a pre-discount price.
func (b *productBlock) repairPriceBefore(final, totalDiscount decimal.Decimal) *decimal.Decimal {
	rest := b.prices[:len(b.prices)-1]
	for i := range rest {
		if rest[i].Sub(totalDiscount).Sub(final).Abs().LessThanOrEqual(reconcileTolerance) {
			return &rest[i]
		}
	}
	return nil
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
