package shared

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText trims s and puts it in Unicode NFC form.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// TooLong reports a field longer than limit characters.
func TooLong(field string, limit int) error {
	return Invalid(field, fmt.Sprintf("must be at most %d characters", limit))
}
