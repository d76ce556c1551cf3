package domain

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "givebridge/pkg/domain-errors"
)

// Amount is a monetary value in minor units (cents). All ledger arithmetic is
// integer-only; the decimal form exists only at the API boundary.
type Amount int64

// ParseAmount converts a decimal string such as "10.00" or "7.5" into minor
// units. At most two fractional digits are accepted and negative values are
// rejected; positivity (> 0) is a per-operation rule enforced by callers.
func ParseAmount(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount is required")
	}
	if strings.HasPrefix(raw, "-") {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount must not be negative")
	}

	whole, frac, _ := strings.Cut(raw, ".")
	// ParseInt tolerates signs, so both parts must be checked digit by digit
	// or inputs like "7.-5" would slip through as valid amounts.
	if whole == "" || !allDigits(whole) || !allDigits(frac) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid amount")
	}
	if len(frac) > 2 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount supports at most two decimal places")
	}
	// Pad "7.5" to "7.50" so a digit is always worth one cent.
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid amount")
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid amount")
	}
	return Amount(units*100 + cents), nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// String renders the amount with two decimal places.
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }
