package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// LineRole is the closed set of roles a single receipt line can play.
type LineRole int

const (
	RoleUnrecognized LineRole = iota
	RoleSkip
	RoleTaxClass
	RoleQuantity
	RoleDiscountPercent
	RoleDiscountAmount
	RoleDiscountMarker
	RolePrice
	RoleProductName
)

func (r LineRole) String() string {
	switch r {
	case RoleSkip:
		return "skip"
	case RoleTaxClass:
		return "tax_class"
	case RoleQuantity:
		return "quantity"
	case RoleDiscountPercent:
		return "discount_percent"
	case RoleDiscountAmount:
		return "discount_amount"
	case RoleDiscountMarker:
		return "discount_marker"
	case RolePrice:
		return "price"
	case RoleProductName:
		return "product_name"
	default:
		return "unrecognized"
	}
}

// ClassifiedLine is the outcome of classifying one trimmed line.
// Value carries the parsed number for quantity/price/discount roles and
// Label the canonical discount keyword for discount roles.
type ClassifiedLine struct {
	Role  LineRole
	Value float64
	Label string
	Raw   string
}

// Store and fiscal boilerplate that must never be treated as product data.
// Matching any of these ends the current product block.
var skipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)PARAGON\s+FISKALNY`),
	regexp.MustCompile(`(?i)NIEFISKALNY`),
	regexp.MustCompile(`(?i)SPRZEDA[ŻZ]\s+OPODATK`),
	regexp.MustCompile(`(?i)^SP\.?\s*OP\.?`),
	regexp.MustCompile(`(?i)SUMA\s+PTU`),
	regexp.MustCompile(`(?i)^PTU\b`),
	regexp.MustCompile(`(?i)^PODATEK`),
	regexp.MustCompile(`(?i)^SUMA\b`),
	regexp.MustCompile(`(?i)^RAZEM\b`),
	regexp.MustCompile(`(?i)^DO\s+ZAP[ŁL]ATY`),
	regexp.MustCompile(`(?i)^GOT[ÓO]WKA`),
	regexp.MustCompile(`(?i)^KARTA\b`),
	regexp.MustCompile(`(?i)^P[ŁL]ATNO[ŚS][ĆC]`),
	regexp.MustCompile(`(?i)^RESZTA`),
	regexp.MustCompile(`(?i)^NIP\b`),
	regexp.MustCompile(`(?i)^NR\s*(SYS|TRANS)`),
	regexp.MustCompile(`(?i)^KAS[AJ]`),
	regexp.MustCompile(`^\d{13,}$`),
	regexp.MustCompile(`^[-=*#]{3,}$`),
}

var (
	discountKeywords = `(?i)(rabat|promocja|zni[żz]ka|upust)`

	taxClassPattern        = regexp.MustCompile(`^(?i)[abc]0?$`)
	quantityPattern        = regexp.MustCompile(`^(\d+[.,]\d{3})\s*[x×]?$`)
	discountPercentPattern = regexp.MustCompile(`^` + discountKeywords + `?\s*([-+]?\d+)\s*%$`)
	discountAmountPattern  = regexp.MustCompile(`^` + discountKeywords + `\s+(-?\d+[.,]\d{2})$`)
	discountMarkerPattern  = regexp.MustCompile(`^` + discountKeywords + `$`)
	pricePattern           = regexp.MustCompile(`^(-?\d+[.,]\d{1,2})$`)
)

// LineClassifier assigns exactly one role to a trimmed receipt line.
// Pure pattern matching: no state, no side effects, first rule wins.
type LineClassifier struct{}

func NewLineClassifier() *LineClassifier {
	return &LineClassifier{}
}

// Classify categorizes one trimmed line. Rules are checked in priority
// order so overlapping patterns resolve deterministically.
func (c *LineClassifier) Classify(line string) ClassifiedLine {
	cl := ClassifiedLine{Raw: line}

	if line == "" {
		return cl
	}

	for _, p := range skipPatterns {
		if p.MatchString(line) {
			cl.Role = RoleSkip
			return cl
		}
	}

	if taxClassPattern.MatchString(line) {
		cl.Role = RoleTaxClass
		cl.Label = strings.ToUpper(line[:1])
		return cl
	}

	if m := quantityPattern.FindStringSubmatch(line); m != nil {
		cl.Role = RoleQuantity
		cl.Value = parseAmount(m[1])
		return cl
	}

	if m := discountPercentPattern.FindStringSubmatch(line); m != nil {
		cl.Role = RoleDiscountPercent
		cl.Value = absAmount(parseAmount(m[2]))
		cl.Label = canonicalDiscountLabel(m[1])
		return cl
	}

	if m := discountAmountPattern.FindStringSubmatch(line); m != nil {
		cl.Role = RoleDiscountAmount
		cl.Value = absAmount(parseAmount(m[2]))
		cl.Label = canonicalDiscountLabel(m[1])
		return cl
	}

	if m := discountMarkerPattern.FindStringSubmatch(line); m != nil {
		cl.Role = RoleDiscountMarker
		cl.Label = canonicalDiscountLabel(m[1])
		return cl
	}

	if m := pricePattern.FindStringSubmatch(line); m != nil {
		cl.Role = RolePrice
		cl.Value = parseAmount(m[1])
		return cl
	}

	if looksLikeProductName(line) {
		cl.Role = RoleProductName
		return cl
	}

	return cl
}

// looksLikeProductName: starts with a letter, at least 3 chars and at
// least 2 alphabetic characters.
func looksLikeProductName(line string) bool {
	runes := []rune(line)
	if len(runes) < 3 || !unicode.IsLetter(runes[0]) {
		return false
	}
	letters := 0
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
			if letters >= 2 {
				return true
			}
		}
	}
	return false
}

// DefaultDiscountLabel is assumed when a bare negative price arrives with
// no preceding discount marker.
const DefaultDiscountLabel = "Rabat"

func canonicalDiscountLabel(keyword string) string {
	switch strings.ToLower(keyword) {
	case "promocja":
		return "Promocja"
	case "zniżka", "znizka":
		return "Zniżka"
	case "upust":
		return "Upust"
	case "":
		return DefaultDiscountLabel
	default:
		return DefaultDiscountLabel
	}
}

// parseAmount parses a receipt number, accepting both comma and dot
// decimal separators. Returns 0 on malformed input.
func parseAmount(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func absAmount(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
