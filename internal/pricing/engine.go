package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CorrectionKind names a configured markup or discount rule.
type CorrectionKind string

const (
	CorrectionNone            CorrectionKind = "none"
	CorrectionIncreasePercent CorrectionKind = "increase_percent"
	CorrectionDiscountPercent CorrectionKind = "discount_percent"
	CorrectionAddition        CorrectionKind = "addition"
	CorrectionDeduction       CorrectionKind = "deduction"
)

// Correction is the price rule applied before charging.
type Correction struct {
	Kind   CorrectionKind `json:"kind"`
	Amount float64        `json:"amount"`
}

// Valid reports whether the kind is one of the known rules.
func (c Correction) Valid() bool {
	switch c.Kind {
	case CorrectionNone, CorrectionIncreasePercent, CorrectionDiscountPercent, CorrectionAddition, CorrectionDeduction, "":
		return true
	default:
		return false
	}
}

var hundred = decimal.NewFromInt(100)

// Apply runs at most one rule against price and clamps the result at zero.
func (c Correction) Apply(price decimal.Decimal) decimal.Decimal {
	amount := decimal.NewFromFloat(c.Amount)
	out := price
	switch c.Kind {
	case CorrectionIncreasePercent:
		out = price.Add(price.Mul(amount).Div(hundred))
	case CorrectionDiscountPercent:
		out = price.Sub(price.Mul(amount).Div(hundred))
	case CorrectionAddition:
		out = price.Add(amount)
	case CorrectionDeduction:
		out = price.Sub(amount)
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Stripe charges these currencies in whole units.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// ZeroDecimalCurrencies returns the upper-case codes charged without a minor unit.
func ZeroDecimalCurrencies() []string {
	return []string{"BIF", "CLP", "DJF", "GNF", "JPY", "KMF", "KRW", "MGA", "PYG", "RWF", "UGX", "VND", "VUV", "XAF", "XOF", "XPF"}
}

// IsZeroDecimal reports whether currency has no minor unit.
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]
	return ok
}

// ToMinorUnits converts amount into the provider's integer representation.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if IsZeroDecimal(currency) {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts a provider amount back to a display amount.
func FromMinorUnits(minor int64, currency string) float64 {
	if IsZeroDecimal(currency) {
		return float64(minor)
	}
	return decimal.NewFromInt(minor).Div(hundred).InexactFloat64()
}

// Charge applies correction to price and returns the minor-unit amount.
func Charge(price float64, correction Correction, currency string) int64 {
	return ToMinorUnits(correction.Apply(decimal.NewFromFloat(price)), currency)
}
