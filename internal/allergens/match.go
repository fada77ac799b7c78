package allergens

import (
	"regexp"
	"sort"
	"strings"
)

// Match returns the tokens that appear in text as case-insensitive literal substrings,
// in token order. The result is never nil. Case folding is the same as Highlight's.
func Match(text string, tokens []string) []string {
	hits := []string{}
	if text == "" || len(tokens) == 0 {
		return hits
	}
	for _, token := range tokens {
		needle := strings.TrimSpace(token)
		if needle == "" {
			continue
		}
		if foldPattern([]string{needle}).MatchString(text) {
			hits = append(hits, token)
		}
	}
	return hits
}

// Span is a contiguous piece of scanned text, flagged when it is an allergen occurrence.
type Span struct {
	Text    string `json:"text"`
	IsMatch bool   `json:"is_match"`
}

// Highlight splits text into ordered spans whose concatenation is the original text.
// Tokens are matched literally and case-insensitively; the longest token wins at any
// position.
func Highlight(text string, tokens []string) []Span {
	spans := []Span{}
	if text == "" {
		return spans
	}

	pattern := highlightPattern(tokens)
	if pattern == nil {
		return append(spans, Span{Text: text})
	}

	cursor := 0
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		if loc[0] > cursor {
			spans = append(spans, Span{Text: text[cursor:loc[0]]})
		}
		spans = append(spans, Span{Text: text[loc[0]:loc[1]], IsMatch: true})
		cursor = loc[1]
	}
	if cursor < len(text) {
		spans = append(spans, Span{Text: text[cursor:]})
	}
	return spans
}

func highlightPattern(tokens []string) *regexp.Regexp {
	clean := NormalizeTokens(tokens)
	if len(clean) == 0 {
		return nil
	}
	sort.SliceStable(clean, func(i, j int) bool {
		return len(clean[i]) > len(clean[j])
	})
	return foldPattern(clean)
}

// foldPattern matches any of literals under Unicode simple case folding.
func foldPattern(literals []string) *regexp.Regexp {
	quoted := make([]string, len(literals))
	for i, literal := range literals {
		quoted[i] = regexp.QuoteMeta(literal)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}
