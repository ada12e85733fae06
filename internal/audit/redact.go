package audit

import "regexp"

// Placeholder tokens written in place of redacted material.
const (
	PlaceholderCard   = "[REDACTED-CARD]"
	PlaceholderNumber = "[REDACTED-NUMBER]"
	PlaceholderEmail  = "[REDACTED-EMAIL]"
)

var (
	// Four groups of four digits, optionally separated by spaces or dashes.
	cardPattern = regexp.MustCompile(`\b(?:\d{4}[ -]?){3}\d{4}\b`)

	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// Account-number-like runs of 10 or more digits.
	longDigitPattern = regexp.MustCompile(`\d{10,}`)
)

// Redact replaces card-like numbers, emails, and long digit runs with fixed
// placeholders. Card matching runs first so a contiguous 16-digit number is
// tagged as a card rather than a generic digit run.
func Redact(s string) string {
	s = cardPattern.ReplaceAllString(s, PlaceholderCard)
	s = emailPattern.ReplaceAllString(s, PlaceholderEmail)
	s = longDigitPattern.ReplaceAllString(s, PlaceholderNumber)
	return s
}
