package utils

import "github.com/microcosm-cc/bluemonday"

var (
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks while keeping safe markup.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// SanitizeStrict strips all markup; used for names, bios and other plain-text fields.
func SanitizeStrict(input string) string {
	return stripper.Sanitize(input)
}
