package capa

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	NumberPrefix = "CAPA-"
	numberDigits = 6
)

// FormatNumber renders a counter value as CAPA-NNNNNN.
func FormatNumber(seq uint64) string {
	return fmt.Sprintf("%s%0*d", NumberPrefix, numberDigits, seq)
}

// ParseNumber accepts "CAPA-000012", "capa-12" or a bare "12" and returns the canonical form.
func ParseNumber(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", missing("number")
	}
	digits := trimmed
	if len(trimmed) >= len(NumberPrefix) && strings.EqualFold(trimmed[:len(NumberPrefix)], NumberPrefix) {
		digits = trimmed[len(NumberPrefix):]
	}
	seq, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || seq == 0 {
		return "", invalidValue("number", raw)
	}
	return FormatNumber(seq), nil
}
