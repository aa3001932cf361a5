package guard

import (
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// StripMarkup removes anything that looks like a tag and trims the result.
// It does not interpret content.
func StripMarkup(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}
