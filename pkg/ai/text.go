package ai

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var markupPolicy = bluemonday.StrictPolicy()

// StripMarkup removes HTML tags and returns the remaining plain text. The policy escapes
// what it keeps, so entities are decoded again: results go to JSON and to the model,
// never into an HTML page.
func StripMarkup(value string) string {
	return strings.TrimSpace(html.UnescapeString(markupPolicy.Sanitize(value)))
}
