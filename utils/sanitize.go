package utils

import "github.com/microcosm-cc/bluemonday"

var (
	ugcPolicy   = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// Sanitize cleans user-generated HTML content (post and comment bodies) to
// prevent XSS while keeping a safe markup subset.
func Sanitize(input string) string {
	return ugcPolicy.Sanitize(input)
}

// SanitizePlain strips all markup. Used for titles and profile fields.
func SanitizePlain(input string) string {
	return plainPolicy.Sanitize(input)
}
