package ledger

import (
	"fmt"     // Error wrapping
	"strings" // String manipulation

	"github.com/shopspring/decimal" // Exact decimal amounts
)

// Scale is the number of fractional digits kept for every amount and balance
const Scale = 2

// MaxDescriptionLength matches the size of the transactions.description column
const MaxDescriptionLength = 255

// maxBalance is the first value that no longer fits decimal(12,2)
var maxBalance = decimal.New(1, 10)

// Exponent bounds, checked before anything rescales the value. A rescale
// allocates a big.Int of 10^|exp|.
const (
	maxExponent = 10  // 1e10 is already maxBalance
	minExponent = -20 // More fractional digits than any sane client sends
)

// ParseAmount parses a decimal string such as "12.50" and validates it
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return ValidateAmount(d)
}

// ValidateAmount checks that d is strictly positive, has at most two fractional
// digits and fits a balance column. The result is rounded to Scale.
func ValidateAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if exp := d.Exponent(); exp >= maxExponent || exp < minExponent {
		return decimal.Zero, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	if d.GreaterThanOrEqual(maxBalance) {
		return decimal.Zero, fmt.Errorf("%w: must be less than %s", ErrInvalidAmount, maxBalance.String())
	}
	rounded := d.Round(Scale)
	if !rounded.Equal(d) {
		return decimal.Zero, fmt.Errorf("%w: at most %d decimal places are allowed", ErrInvalidAmount, Scale)
	}
	return rounded, nil
}

// FormatAmount renders an amount or balance with exactly two fractional digits
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
