package dedup

import (
	"strings"
	"unicode"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
)

// Stop words that carry no signal for similarity comparison.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "being": {}, "have": {},
	"has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"would": {}, "could": {}, "should": {}, "may": {}, "might": {},
}

const minTokenLen = 3

// hashText picks the richest text field available for fingerprinting:
// content first, then description, then title.
func hashText(s domain.Story) string {
	text := s.Content
	if text == "" {
		text = s.Description
	}
	if text == "" {
		text = s.Title
	}
	return normalizeText(text)
}

// normalizeText lowercases, strips punctuation, collapses whitespace and
// drops stop words and tokens shorter than three characters.
func normalizeText(text string) string {
	return strings.Join(tokenize(text), " ")
}

func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	var tokens []string
	for _, word := range strings.Fields(b.String()) {
		if len(word) < minTokenLen {
			continue
		}
		if _, skip := stopWords[word]; skip {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}
