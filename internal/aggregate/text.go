package aggregate

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenPattern matches runs of letters and digits; everything else is a
// separator. Keeps tokenization deterministic across platforms.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// stopwords are excluded from theme extraction. Similarity keeps them:
// TF-IDF already discounts terms both documents share.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "can": {}, "do": {}, "for": {}, "from": {},
	"has": {}, "have": {}, "if": {}, "in": {}, "is": {}, "it": {},
	"its": {}, "not": {}, "of": {}, "on": {}, "or": {}, "that": {},
	"the": {}, "this": {}, "to": {}, "was": {}, "were": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}

// normalizeText lowercases and collapses whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// tokenize splits text into lowercase alphanumeric tokens.
func tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

// significantTokens filters stopwords and single-character tokens.
func significantTokens(s string) []string {
	var out []string
	for _, tok := range tokenize(s) {
		if len(tok) < 2 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// wordCount counts whitespace-separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

// splitSentences breaks text into sentences on terminal punctuation.
// Newlines also terminate a sentence so list items count individually.
func splitSentences(s string) []string {
	var sentences []string
	var b strings.Builder

	flush := func() {
		sent := strings.TrimSpace(b.String())
		if sent != "" {
			sentences = append(sentences, sent)
		}
		b.Reset()
	}

	for _, r := range s {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			flush()
		case '\n':
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()

	return sentences
}

// splitParagraphs breaks text on blank lines.
func splitParagraphs(s string) []string {
	var paragraphs []string
	for _, p := range strings.Split(s, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// meanSentenceLength returns the average word count per sentence, 0 for
// empty text.
func meanSentenceLength(s string) float64 {
	sentences := splitSentences(s)
	if len(sentences) == 0 {
		return 0
	}
	total := 0
	for _, sent := range sentences {
		total += wordCount(sent)
	}
	return float64(total) / float64(len(sentences))
}

// containsAnyFold reports whether s contains any of the needles,
// case-insensitively.
func containsAnyFold(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// hasLetter reports whether s contains at least one letter.
func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
