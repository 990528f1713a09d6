package domain

import "regexp"

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,6}$`)

// ValidTicker reports whether s is a well-formed Ticker per spec §3:
// uppercase ASCII, 1-6 characters.
func ValidTicker(s string) bool {
	return tickerPattern.MatchString(s)
}
