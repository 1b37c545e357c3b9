// Package core holds the calendar rules, configuration types and persisted
// state of a cash-flow cycle. Amounts are whole rupees stored as int64.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

const currencySymbol = "₹"

// ParseAmount converts a user or spreadsheet amount to whole rupees.
//
// It accepts an optional currency prefix, thousands separators and a
// fractional part, which is rounded half-up. Negative values are rejected.
//
// Examples:
//
//	ParseAmount("1200")     -> 1200, nil
//	ParseAmount("₹1,200")   -> 1200, nil
//	ParseAmount("Rs 99.50") -> 100, nil
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, currencySymbol)
	s = strings.TrimPrefix(s, "Rs.")
	s = strings.TrimPrefix(s, "Rs")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if len(fracPart) > 0 && fracPart[0] >= '5' {
		v++
	}
	return v, nil
}

// FormatAmount renders v with the currency symbol and thousands separators.
func FormatAmount(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + currencySymbol + b.String()
	}
	return currencySymbol + b.String()
}
