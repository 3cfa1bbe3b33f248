package parser

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/models"
	"github.com/smartpantry/paragon/pkg/utils"
)

// Options tune the parser. Zero values fall back to defaults.
type Options struct {
	// FallbackMinProducts is the store-grammar yield below which the
	// generic parser takes over. Heuristic, not a hard law.
	FallbackMinProducts int
	// MinLinesForFallback: receipts with at most this many non-empty
	// lines are too short for the yield heuristic to mean anything.
	MinLinesForFallback int
	// MaxProductPrice is the sanity bound against OCR garbage.
	MaxProductPrice float64
}

const (
	defaultFallbackMinProducts = 3
	defaultMinLinesForFallback = 5
	defaultMaxProductPrice     = 500.0
)

func (o *Options) withDefaults() Options {
	out := *o
	if out.FallbackMinProducts <= 0 {
		out.FallbackMinProducts = defaultFallbackMinProducts
	}
	if out.MinLinesForFallback <= 0 {
		out.MinLinesForFallback = defaultMinLinesForFallback
	}
	if out.MaxProductPrice <= 0 {
		out.MaxProductPrice = defaultMaxProductPrice
	}
	return out
}

// Parser turns raw OCR receipt text into a ParsedReceipt. Grammar
// selection is capability-indexed: known store keys map to their grammar,
// everything else goes through the generic single-line parser.
type Parser struct {
	grammars map[string]Grammar
	generic  *GenericParser
	opts     Options
	logger   *zap.Logger
}

// Store display names by detection key, checked in declaration order so
// detection is deterministic. Only biedronka has a dedicated grammar; the
// rest are recognized for the receipt header only.
var knownStores = []struct {
	key  string
	name string
}{
	{"biedronka", "Biedronka"},
	{"lidl", "Lidl"},
	{"żabka", "Żabka"},
	{"kaufland", "Kaufland"},
	{"carrefour", "Carrefour"},
	{"auchan", "Auchan"},
}

func New(opts Options, logger *zap.Logger) *Parser {
	opts = opts.withDefaults()
	return &Parser{
		grammars: map[string]Grammar{
			"biedronka": newTabularGrammar("biedronka", opts.MaxProductPrice),
		},
		generic: NewGenericParser(opts.MaxProductPrice),
		opts:    opts,
		logger:  logger,
	}
}

// Parse is deterministic: identical input always yields an identical
// ParsedReceipt. The returned error is ErrNoProductsFound when neither
// the store grammar nor the generic fallback produced a product; the
// receipt (with header fields and raw text) is still returned for the
// caller to hand to the structuring backend.
func (p *Parser) Parse(rawText, storeHint string) (*models.ParsedReceipt, error) {
	rawText = utils.SanitizeText(rawText)
	lines := strings.Split(rawText, "\n")

	storeKey, storeName := p.detectStore(rawText, storeHint)

	products, err := p.parseProducts(lines, storeKey)
	if err != nil {
		p.logger.Debug("store grammar fell back to generic",
			zap.String("store", storeKey),
			zap.Error(err))
	}

	receipt := &models.ParsedReceipt{
		Products: products,
		Store:    storeName,
		Date:     extractDate(lines),
		Total:    extractTotal(lines),
		RawText:  rawText,
	}

	if len(products) == 0 {
		return receipt, fmt.Errorf("parse %q: %w", storeName, ErrNoProductsFound)
	}
	return receipt, nil
}

// parseProducts applies the fallback policy: run the store grammar when
// one matches, escalate to the generic parser on insufficient yield. The
// returned error records why the generic path was taken.
func (p *Parser) parseProducts(lines []string, storeKey string) ([]models.ParsedProduct, error) {
	grammar, ok := p.grammars[storeKey]
	if !ok {
		return p.generic.Parse(lines), nil
	}

	products := grammar.Parse(lines)
	if len(products) >= p.opts.FallbackMinProducts {
		return products, nil
	}
	if countNonEmpty(lines) <= p.opts.MinLinesForFallback {
		// Too short to judge the grammar; keep whatever it produced.
		return products, nil
	}

	err := ErrInsufficientYield
	if len(products) == 0 {
		err = ErrNoProductsFound
	}

	generic := p.generic.Parse(lines)
	if len(generic) > len(products) {
		return generic, err
	}
	return products, err
}

// ParsePages parses each page independently and concatenates products in
// page order. Pages run concurrently; store/date/total back-fill uses
// the first page carrying a value and is applied only after every page
// completes, so the result does not depend on scheduling.
func (p *Parser) ParsePages(pages []string, storeHint string) (*models.ParsedReceipt, error) {
	if len(pages) == 0 {
		return &models.ParsedReceipt{}, ErrNoProductsFound
	}
	if len(pages) == 1 {
		return p.Parse(pages[0], storeHint)
	}

	results := make([]*models.ParsedReceipt, len(pages))
	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		go func(i int, page string) {
			defer wg.Done()
			parsed, _ := p.Parse(page, storeHint)
			results[i] = parsed
		}(i, page)
	}
	wg.Wait()

	merged := &models.ParsedReceipt{
		RawText: strings.Join(pages, "\n"),
	}
	for _, r := range results {
		merged.Products = append(merged.Products, r.Products...)
		if merged.Store == "" {
			merged.Store = r.Store
		}
		if merged.Date == "" {
			merged.Date = r.Date
		}
		if merged.Total == nil {
			merged.Total = r.Total
		}
	}

	if len(merged.Products) == 0 {
		return merged, ErrNoProductsFound
	}
	return merged, nil
}

// detectStore resolves the store key from the caller's hint first, then
// from the receipt text itself.
func (p *Parser) detectStore(rawText, hint string) (key, name string) {
	lowerHint := strings.ToLower(strings.TrimSpace(hint))
	for _, s := range knownStores {
		if lowerHint != "" && strings.Contains(lowerHint, s.key) {
			return s.key, s.name
		}
	}
	lowerText := strings.ToLower(rawText)
	for _, s := range knownStores {
		if strings.Contains(lowerText, s.key) {
			return s.key, s.name
		}
	}
	if hint != "" {
		return "", strings.TrimSpace(hint)
	}
	return "", ""
}

var (
	isoDateLinePattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	dmyDateLinePattern = regexp.MustCompile(`(\d{2})[.\-/](\d{2})[.\-/](\d{4})`)

	totalLinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)SUMA\s*(?:PLN)?\s*:?\s*(\d{1,5}[.,]\d{2})`),
		regexp.MustCompile(`(?i)(?:RAZEM|DO\s+ZAP[ŁL]ATY)\s*:?\s*(?:PLN)?\s*(\d{1,5}[.,]\d{2})`),
	}
)

// extractDate finds the purchase date and normalizes it to ISO 8601.
func extractDate(lines []string) string {
	for _, line := range lines {
		if m := isoDateLinePattern.FindStringSubmatch(line); m != nil {
			return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
		}
		if m := dmyDateLinePattern.FindStringSubmatch(line); m != nil {
			return fmt.Sprintf("%s-%s-%s", m[3], m[2], m[1])
		}
	}
	return ""
}

// extractTotal scans bottom-up, where the payable total is printed.
func extractTotal(lines []string) *float64 {
	for i := len(lines) - 1; i >= 0; i-- {
		for _, pat := range totalLinePatterns {
			if m := pat.FindStringSubmatch(lines[i]); m != nil {
				v := parseAmount(m[1])
				if v > 0 {
					return &v
				}
			}
		}
	}
	return nil
}

func countNonEmpty(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}
