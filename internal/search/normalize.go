package search

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser is language-agnostic so Cyrillic product names title-case the
// same way Latin ones do.
var titleCaser = cases.Title(language.Und)

// NormalizeName canonicalizes a recognized product name: whitespace is
// collapsed and the words are title-cased, so "  ceramic   mug " becomes
// "Ceramic Mug". Empty input stays empty.
func NormalizeName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return titleCaser.String(strings.Join(fields, " "))
}
