package selector

import (
	"strings"
	"unicode"
)

// minKeywordLength drops short words such as "do" and "it" from keywords.
const minKeywordLength = 3

var stopwords = map[string]bool{
	"and": true, "are": true, "but": true, "can": true, "does": true, "for": true,
	"from": true, "has": true, "have": true, "how": true, "into": true, "its": true,
	"not": true, "of": true, "that": true, "the": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "this": true, "those": true, "use": true,
	"used": true, "using": true, "was": true, "what": true, "when": true, "where": true,
	"which": true, "who": true, "why": true, "will": true, "with": true, "you": true,
	"your": true, "about": true, "also": true, "any": true, "all": true, "step": true,
	"code": true,
}

var suffixes = []string{"ality", "ation", "ing", "ion", "ers", "ies", "ed", "er", "es", "s"}

// normalize lower-cases text and replaces everything that is not a letter or
// digit with a single space.
func normalize(text string) string {
	var b strings.Builder
	space := true
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenize(text string) []string {
	return strings.Fields(normalize(text))
}

// stem strips one common English suffix while keeping at least four letters,
// so "explaining", "explained" and "explains" all become "explain".
func stem(word string) string {
	for _, suffix := range suffixes {
		if strings.HasSuffix(word, suffix) && len(word)-len(suffix) >= 4 {
			return strings.TrimSuffix(word, suffix)
		}
	}
	return word
}

// keywords returns the distinct stems of the meaningful words in texts, in
// order of first appearance.
func keywords(texts ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, text := range texts {
		for _, word := range tokenize(text) {
			if len(word) < minKeywordLength || stopwords[word] {
				continue
			}
			s := stem(word)
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// quotedPhrases returns the text between pairs of straight or curly double
// quotes.
func quotedPhrases(text string) []string {
	text = strings.NewReplacer("“", `"`, "”", `"`).Replace(text)

	var phrases []string
	for {
		_, rest, ok := strings.Cut(text, `"`)
		if !ok {
			return phrases
		}
		phrase, after, ok := strings.Cut(rest, `"`)
		if !ok {
			return phrases
		}
		if p := strings.TrimSpace(phrase); p != "" {
			phrases = append(phrases, p)
		}
		text = after
	}
}

// isPlaceholder reports whether a phrase word stands for "anything": a lone
// upper-case letter such as X (but not the words I and A), or a bracketed
// name such as [thing] or <code>.
func isPlaceholder(word string) bool {
	if word == "*" {
		return true
	}
	runes := []rune(word)
	if len(runes) == 1 {
		return unicode.IsUpper(runes[0]) && runes[0] != 'I' && runes[0] != 'A'
	}
	if len(runes) >= 2 {
		first, last := runes[0], runes[len(runes)-1]
		return (first == '[' && last == ']') || (first == '<' && last == '>') || (first == '{' && last == '}')
	}
	return false
}
