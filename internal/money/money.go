// Package money formats integer cent amounts for display.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCents renders cents as a fixed two-decimal amount followed by the
// currency code, e.g. 1999 "EUR" -> "19.99 EUR".
func FormatCents(cents int64, currency string) string {
	amount := decimal.New(cents, -2).StringFixed(2)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}

// ParseCents parses a decimal amount ("19.99") into cents, rounding half away
// from zero at the third decimal.
func ParseCents(amount string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
