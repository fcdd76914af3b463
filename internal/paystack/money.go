package paystack

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToMinor converts a major-unit ZAR amount to cents, rounding half away from zero.
// This and FromMinor are the only places where the unit changes.
func ToMinor(major decimal.Decimal) int64 {
	return major.Mul(hundred).Round(0).IntPart()
}

// FromMinor converts cents reported by the gateway back to major units.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
