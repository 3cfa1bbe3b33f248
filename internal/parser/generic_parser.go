package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/smartpantry/paragon/internal/models"
	"github.com/smartpantry/paragon/pkg/utils"
)

// GenericParser is the last-resort grammar for unrecognized store
// layouts: one product per line in "name ... trailing 2-decimal price"
// form, with a fixed skip-keyword list for fiscal boilerplate.
type GenericParser struct {
	maxPrice decimal.Decimal
}

var genericLinePattern = regexp.MustCompile(`^(.+?)\s+(-?\d{1,4}[.,]\d{2})\s*[A-Ca-c]?$`)

var genericSkipKeywords = []string{
	"suma", "razem", "do zapłaty", "do zaplaty", "ptu", "podatek",
	"gotówka", "gotowka", "karta", "reszta", "paragon", "niefiskalny",
	"sprzedaż", "sprzedaz", "nip", "rabat", "promocja", "zniżka",
	"znizka", "upust", "kasa", "kasjer",
}

func NewGenericParser(maxPrice float64) *GenericParser {
	return &GenericParser{maxPrice: decimal.NewFromFloat(maxPrice)}
}

func (g *GenericParser) Name() string { return "generic" }

// Parse extracts name-plus-trailing-price products. Lines carrying skip
// keywords, negative prices or prices outside the sanity bound are dropped.
func (g *GenericParser) Parse(lines []string) []models.ParsedProduct {
	var products []models.ParsedProduct

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || g.shouldSkip(line) {
			continue
		}

		m := genericLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		name := strings.TrimRight(utils.CollapseSpaces(m[1]), ".,;:-_")
		if !looksLikeProductName(name) {
			continue
		}

		price := decimal.NewFromFloat(parseAmount(m[2]))
		if price.LessThanOrEqual(decimal.Zero) || price.GreaterThan(g.maxPrice) {
			continue
		}

		products = append(products, models.ParsedProduct{
			Name:  name,
			Price: round2(price),
		})
	}

	return products
}

func (g *GenericParser) shouldSkip(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range genericSkipKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
