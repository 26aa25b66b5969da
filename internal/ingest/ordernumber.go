package ingest

import "regexp"

// Tried in order; the first pattern with a match wins.
var orderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`#(\d{4,})`),
	regexp.MustCompile(`(?i)order\s*#?\s*(\d{4,})`),
	regexp.MustCompile(`\b(\d{5,6})\b`),
}

// ExtractOrderNumber finds the first order number in text
func ExtractOrderNumber(text string) (string, bool) {
	for _, pattern := range orderPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// TicketOrderNumber searches the thread and then the subject
func TicketOrderNumber(t Ticket) (string, bool) {
	return ExtractOrderNumber(t.MessageText() + " " + t.Subject)
}
