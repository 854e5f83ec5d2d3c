package ratetable

import "github.com/shopspring/decimal"

// TaxCategory names a withholding computed from a taxable base.
type TaxCategory string

const (
	TaxFederal  TaxCategory = "FEDERAL"
	TaxState    TaxCategory = "STATE"
	TaxFICA     TaxCategory = "FICA"
	TaxMedicare TaxCategory = "MEDICARE"
)

// TaxCategories lists every category in reporting order.
func TaxCategories() []TaxCategory {
	return []TaxCategory{TaxFederal, TaxState, TaxFICA, TaxMedicare}
}

// DefaultExactCents is the green band for exact (table-derived) checks and for
// the net-pay reconciliation.
const DefaultExactCents Cents = 100

// DefaultGreenPP is the green band, in percentage points, for rate checks.
var DefaultGreenPP = decimal.RequireFromString("0.05")

// RateBand is a percentage-point band around an expected effective tax rate.
// A zero YellowPP means no plausibility bound was published with the bundle:
// anything outside the green band is then reported as yellow, never red.
type RateBand struct {
	GreenPP  decimal.Decimal
	YellowPP decimal.Decimal
}

// Tolerances travel with a bundle so that thresholds are data, not code.
type Tolerances struct {
	ExactCents Cents
	TaxBands   map[TaxCategory]RateBand
}

// Exact returns the exact-check tolerance in cents.
func (t Tolerances) Exact() Cents {
	if t.ExactCents <= 0 {
		return DefaultExactCents
	}
	return t.ExactCents
}

// Band returns the rate band for a tax category, defaulting the green band.
func (t Tolerances) Band(c TaxCategory) RateBand {
	b := t.TaxBands[c]
	if !b.GreenPP.IsPositive() {
		b.GreenPP = DefaultGreenPP
	}
	return b
}
