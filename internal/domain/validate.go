package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims surrounding whitespace and NFC-normalizes s so that
// visually identical names compare equal in the store's UNIQUE indexes.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ValidateName rejects empty names.
func ValidateName(op, field, name string) error {
	if NormalizeName(name) == "" {
		return Validation(op, field, "must not be empty")
	}
	return nil
}

// ValidateLineQuantity enforces quantity > 0 on line entries.
func ValidateLineQuantity(op string, q int64) error {
	if q <= 0 {
		return Validation(op, "quantity", "must be greater than 0, got %d", q)
	}
	return nil
}

// ValidateStockQuantity enforces quantity >= 0 on item stock and thresholds.
func ValidateStockQuantity(op, field string, q int64) error {
	if q < 0 {
		return Validation(op, field, "must not be negative, got %d", q)
	}
	return nil
}

// ValidatePrice enforces price >= 0.
func ValidatePrice(op, field string, p decimal.Decimal) error {
	if p.IsNegative() {
		return Validation(op, field, "must not be negative, got %s", p.String())
	}
	return nil
}

// ParseMoney parses a decimal amount, returning a VALIDATION error on bad input.
func ParseMoney(op, field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, Validation(op, field, "invalid amount %q", s)
	}
	return d, nil
}

// FormatMoney renders an amount with two decimal places.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
