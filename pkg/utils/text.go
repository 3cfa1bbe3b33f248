package utils

import (
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	multiSpace   = regexp.MustCompile(`[ \t]{2,}`)
)

// SanitizeText strips control characters that OCR engines sometimes leak
// into extracted text. Newlines and tabs are kept so line structure
// survives.
func SanitizeText(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// CollapseSpaces reduces runs of spaces and tabs to a single space and
// trims the ends of the line.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}
