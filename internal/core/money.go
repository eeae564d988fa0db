// Package core provides the invoice domain types and money handling.
//
// Amounts are carried as decimal.Decimal. This file parses the formats found
// in the source spreadsheets and renders values in Brazilian notation.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a cell value into a decimal amount.
//
// Plain numbers ("1234.5", "-10") are parsed as-is. Values carrying a comma
// are read in Brazilian notation, where '.' groups thousands and ',' is the
// decimal separator, unless a '.' follows the last ',' as in "1,234.50".
// A leading "R$" is ignored.
//
// Examples:
//
//	ParseAmount("1234.5")      -> 1234.5
//	ParseAmount("1.234,56")    -> 1234.56
//	ParseAmount("R$ -12,30")   -> -12.3
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, " ", "")
	switch comma := strings.LastIndex(s, ","); {
	case comma < 0:
	case strings.LastIndex(s, ".") > comma:
		// "1,234.50": commas group thousands.
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatBRL renders an amount as "R$ 1.234,50".
func FormatBRL(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "R$ " + sign + b.String() + "," + frac
}
