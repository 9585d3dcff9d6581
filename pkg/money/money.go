// Package money converts between integer minor units (how amounts are stored)
// and currency-aware display or decimal forms.
package money

import (
	"fmt"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Format renders minor units as a localized currency string, e.g. -123456
// with USD becomes "-$1,234.56".
func Format(minorUnits int64, currencyCode string) string {
	return gomoney.New(minorUnits, currencyCode).Display()
}

// MajorUnits converts minor units to the currency's major unit as a float.
// Display only; arithmetic stays in minor units.
func MajorUnits(minorUnits int64, currencyCode string) float64 {
	return gomoney.New(minorUnits, currencyCode).AsMajorUnits()
}

// ParseMajorUnits converts a decimal string like "1234.56" into minor units
// for the given currency, rounding half away from zero.
func ParseMajorUnits(s, currencyCode string) (int64, error) {
	currency := gomoney.GetCurrency(currencyCode)
	if currency == nil {
		return 0, fmt.Errorf("unknown currency %q", currencyCode)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d.Shift(int32(currency.Fraction)).Round(0).IntPart(), nil
}
