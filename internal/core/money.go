// Package core provides the ledger's value types and money handling.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between minor units and display representations.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToMinor converts a decimal string to minor units with proper
// rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// performs half-up rounding on the third decimal place. The result is always
// positive minor units. Returns an error for invalid formats, negative
// values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToMinor("12.34") -> 1234, nil
//	ParseDecimalToMinor("12,34") -> 1234, nil
//	ParseDecimalToMinor("12.345") -> 1234, nil (rounds down)
//	ParseDecimalToMinor("12.346") -> 1235, nil (rounds up)
func ParseDecimalToMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracMinor int64 = 0
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracMinor = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracMinor += d2
			if len(fracPart) > 2 {
				if fracPart[2] >= '5' {
					fracMinor++
				}
			}
		}
	}
	minor := iv*100 + fracMinor
	if minor <= 0 {
		return 0, ErrInvalidAmount
	}
	return minor, nil
}

// FormatMinor renders minor units as a plain decimal string, e.g. 1234 ->
// "12.34". Used for prompts and logs; calculations stay in minor units.
func FormatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
