package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/smartpantry/paragon/internal/models"
)

// Grammar parses the line layout of one store's receipts.
type Grammar interface {
	Name() string
	Parse(lines []string) []models.ParsedProduct
}

// compactLinePattern matches a whole product printed on a single line:
// name, tax class, qty × unit price, line total, optional discount and
// optional final price.
var compactLinePattern = regexp.MustCompile(
	`^(.{3,}?)\s+([A-Ca-c])\s+(\d+[.,]\d{3})\s*[x×]\s*(\d+[.,]\d{1,2})\s+(\d+[.,]\d{2})(?:\s+(-\d+[.,]\d{2}))?(?:\s+(\d+[.,]\d{2}))?$`)

// tabularGrammar handles receipts where each product spans a block of
// lines and the final price is the last number in the block. This is the
// layout used by Biedronka-style fiscal printers.
type tabularGrammar struct {
	name       string
	classifier *LineClassifier
	maxPrice   decimal.Decimal
}

func newTabularGrammar(name string, maxPrice float64) *tabularGrammar {
	return &tabularGrammar{
		name:       name,
		classifier: NewLineClassifier(),
		maxPrice:   decimal.NewFromFloat(maxPrice),
	}
}

func (g *tabularGrammar) Name() string { return g.name }

// Parse runs the SeekingName/InBlock state machine over the receipt
// lines. A nil block means SeekingName.
func (g *tabularGrammar) Parse(lines []string) []models.ParsedProduct {
	var products []models.ParsedProduct
	var block *productBlock

	emit := func(b *productBlock) {
		if b == nil {
			return
		}
		if p := b.finalize(g.maxPrice); p != nil {
			products = append(products, *p)
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		// Single-line fast path: a complete product on one line closes
		// any open block and is emitted directly.
		if p, ok := g.parseCompactLine(line); ok {
			emit(block)
			block = nil
			if p != nil {
				products = append(products, *p)
			}
			continue
		}

		cl := g.classifier.Classify(line)

		if block == nil {
			if cl.Role == RoleProductName {
				block = newProductBlock(line)
			}
			continue
		}

		switch cl.Role {
		case RoleProductName:
			emit(block)
			block = newProductBlock(line)
		case RoleTaxClass:
			block.taxClass = cl.Label
		case RoleQuantity:
			block.quantity = cl.Value
		case RoleDiscountPercent:
			block.addDiscount(models.DiscountPercentage, cl.Value, cl.Label)
		case RoleDiscountAmount:
			block.addDiscount(models.DiscountAmount, cl.Value, cl.Label)
		case RoleDiscountMarker:
			block.pendingDiscountLabel = cl.Label
		case RolePrice:
			block.consumePrice(cl.Value)
		case RoleSkip:
			emit(block)
			block = nil
		}
	}

	emit(block)
	return products
}

// parseCompactLine tries the whole-line tabular pattern. The bool result
// reports a pattern match; the product may still be nil when the matched
// numbers fail finalization.
func (g *tabularGrammar) parseCompactLine(line string) (*models.ParsedProduct, bool) {
	m := compactLinePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	b := newProductBlock(strings.TrimSpace(m[1]))
	b.taxClass = strings.ToUpper(m[2])
	b.quantity = parseAmount(m[3])
	b.addPrice(parseAmount(m[5]))
	if m[6] != "" {
		b.addDiscount(models.DiscountAmount, absAmount(parseAmount(m[6])), DefaultDiscountLabel)
	}
	if m[7] != "" {
		b.addPrice(parseAmount(m[7]))
	}

	return b.finalize(g.maxPrice), true
}
