package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanText trims surrounding whitespace, collapses inner whitespace runs to a
// single space, and applies Unicode NFC so visually identical Thai input
// stores and compares equal.
func CleanText(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return norm.NFC.String(strings.Join(fields, " "))
}
