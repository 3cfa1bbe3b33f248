package anomaly

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/models"
)

// Config carries the price ceilings. Zero values use spec defaults.
type Config struct {
	// GeneralCeiling applies to ordinary products.
	GeneralCeiling float64
	// MeatCeiling is the higher ceiling for meat and fish.
	MeatCeiling float64
	// HardCeiling applies to any product regardless of category.
	HardCeiling float64
}

const (
	defaultGeneralCeiling = 40.0
	defaultMeatCeiling    = 60.0
	defaultHardCeiling    = 80.0
)

// Warning texts attached to suspicious products.
const (
	WarnUnitPrice = "possible unit price (per-kg) used instead of total"
	WarnSubtotal  = "unusually high price, verify not a subtotal"
)

// Detector annotates suspicious product prices. It never mutates prices
// and never rejects a product; warnings feed the reviewer and the
// confidence scorer's quality sub-score.
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

// Products typically sold by weight: cured meats, cheeses, produce.
var weightedStems = []string{
	"szynka", "kiełbasa", "kielbasa", "polędwica", "poledwica", "salami",
	"boczek", "pasztet", "wędlin", "wedlin", "ser ", "twaróg", "twarog",
	"pomidor", "ogórek", "ogorek", "jabłk", "jablk", "banan", "ziemniak",
	"cebula", "marchew", "winogron", "mandarynk", "pomarańcz", "pomarancz",
}

// Meat and fish stems: a superset boundary that earns the higher ceiling.
var meatStems = []string{
	"mięso", "mieso", "kurczak", "kurcz", "indyk", "wołow", "wolow",
	"wieprz", "schab", "karkówka", "karkowka", "szynka", "kiełbasa",
	"kielbasa", "polędwica", "poledwica", "boczek", "ryba", "łosoś",
	"losos", "śledź", "sledz", "dorsz", "makrela", "tuńczyk", "tunczyk",
}

var weightQtyPattern = regexp.MustCompile(`\d+[.,]\d{3}`)

func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if cfg.GeneralCeiling <= 0 {
		cfg.GeneralCeiling = defaultGeneralCeiling
	}
	if cfg.MeatCeiling <= 0 {
		cfg.MeatCeiling = defaultMeatCeiling
	}
	if cfg.HardCeiling <= 0 {
		cfg.HardCeiling = defaultHardCeiling
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Annotate returns a copy of the product list with Warning populated on
// suspicious entries. Price fields are bit-identical to the input.
func (d *Detector) Annotate(products []models.ParsedProduct) []models.ParsedProduct {
	out := make([]models.ParsedProduct, len(products))
	copy(out, products)

	for i := range out {
		warning := d.classify(&out[i])
		if warning == "" {
			continue
		}
		out[i].Warning = warning
		d.logger.Debug("price anomaly flagged",
			zap.String("product", out[i].Name),
			zap.Float64("price", out[i].Price),
			zap.String("warning", warning))
	}
	return out
}

func (d *Detector) classify(p *models.ParsedProduct) string {
	threshold := d.cfg.GeneralCeiling
	if d.isMeat(p) {
		threshold = d.cfg.MeatCeiling
	}

	if p.Price <= threshold {
		return ""
	}
	if d.isWeighted(p) {
		return WarnUnitPrice
	}
	if p.Price > d.cfg.HardCeiling {
		return WarnSubtotal
	}
	return ""
}

// isWeighted: sold-by-weight stem match, an explicit kg token, or a
// 3-decimal weight quantity left in the name by the OCR.
func (d *Detector) isWeighted(p *models.ParsedProduct) bool {
	name := strings.ToLower(p.Name + " " + p.OriginalName)
	for _, stem := range weightedStems {
		if strings.Contains(name, stem) {
			return true
		}
	}
	if strings.Contains(name, "kg") {
		return true
	}
	return weightQtyPattern.MatchString(name)
}

func (d *Detector) isMeat(p *models.ParsedProduct) bool {
	name := strings.ToLower(p.Name + " " + p.OriginalName)
	for _, stem := range meatStems {
		if strings.Contains(name, stem) {
			return true
		}
	}
	return false
}
