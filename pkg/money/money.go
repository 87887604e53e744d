// Package money holds the rounding and formatting primitives every monetary
// field in the cart passes through before it is stored or compared.
package money

import "github.com/shopspring/decimal"

// DefaultPrecision is the number of fraction digits kept for stored amounts.
const DefaultPrecision int32 = 2

// DefaultSymbol prefixes formatted amounts when no currency symbol is configured.
const DefaultSymbol = "$"

var hundred = decimal.NewFromInt(100)

// Zero is the additive identity for amounts.
var Zero = decimal.Zero

// Round rounds amount half away from zero to DefaultPrecision digits.
func Round(amount decimal.Decimal) decimal.Decimal {
	return RoundTo(amount, DefaultPrecision)
}

// RoundTo rounds amount half away from zero to precision fraction digits.
func RoundTo(amount decimal.Decimal, precision int32) decimal.Decimal {
	return amount.Round(precision)
}

// Format renders amount with exactly two fraction digits behind symbol.
func Format(amount decimal.Decimal, symbol string) string {
	return symbol + amount.StringFixed(DefaultPrecision)
}

// FormatUSD renders amount with the default "$" symbol.
func FormatUSD(amount decimal.Decimal) string {
	return Format(amount, DefaultSymbol)
}

// FormatTaxRate renders a fractional rate (0.08) as a percentage ("8.00%").
func FormatTaxRate(rate decimal.Decimal) string {
	return rate.Mul(hundred).StringFixed(2) + "%"
}

// Percent returns value percent of amount, unrounded.
func Percent(amount, value decimal.Decimal) decimal.Decimal {
	return amount.Mul(value.Div(hundred))
}

// Sum adds every amount without rounding.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MustParse parses a literal amount and panics on malformed input. Intended
// for constants and tests.
func MustParse(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
