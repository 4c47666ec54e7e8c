package datautil

import (
	"regexp"
	"strings"
)

// quotePattern matches the quote-v2 text convention used by chat clients:
// "> quote #<16 hex message id>\n\n<text>".
var quotePattern = regexp.MustCompile(`(?s)^> quote #([0-9a-fA-F]{16})\n\n(.*)$`)

// Quote is a reference to an earlier message embedded in a text body.
type Quote struct {
	MessageID string
	Text      string
}

// ParseQuote extracts a quote reference from a text message body. The second
// return value is false when the text does not carry a quote.
func ParseQuote(text string) (Quote, bool) {
	m := quotePattern.FindStringSubmatch(text)
	if m == nil {
		return Quote{}, false
	}
	return Quote{MessageID: strings.ToLower(m[1]), Text: m[2]}, true
}

// FormatQuote renders a quote reference back into the text convention.
func FormatQuote(q Quote) string {
	return "> quote #" + strings.ToLower(q.MessageID) + "\n\n" + q.Text
}
