package session

import (
	"strings"

	"github.com/orsinium-labs/stopwords"
)

// titleWordLimit bounds how many significant words a derived title keeps.
const titleWordLimit = 6

var titleStopwords = stopwords.MustGet("en")

// DeriveTitle builds a short session title from the first prompt by keeping
// its significant words. "show me total sales by region over time" becomes
// "total sales region time".
func DeriveTitle(prompt string) string {
	words := strings.Fields(prompt)
	kept := make([]string, 0, titleWordLimit)
	for _, w := range words {
		trimmed := strings.Trim(w, ".,;:!?\"'()")
		if trimmed == "" {
			continue
		}
		if titleStopwords != nil && titleStopwords.Contains(strings.ToLower(trimmed)) {
			continue
		}
		kept = append(kept, trimmed)
		if len(kept) == titleWordLimit {
			break
		}
	}
	if len(kept) == 0 {
		trimmed := strings.TrimSpace(prompt)
		if trimmed == "" {
			return DefaultTitle
		}
		if runes := []rune(trimmed); len(runes) > 60 {
			trimmed = string(runes[:60])
		}
		return trimmed
	}
	return strings.Join(kept, " ")
}
