// Package utils holds tiny helpers with no domain knowledge.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def for empty or unparseable
// input. Used for the page and page_size query parameters, where a bad
// value should fall back to the default rather than fail the request.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
