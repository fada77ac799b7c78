package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrParseFailed is returned when model output cannot be decoded as JSON.
var ErrParseFailed = errors.New("failed to parse response")

const snippetLimit = 200

var jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// Parse decodes content into T. It tries the raw content, then the first fenced code block,
// then the outermost {...} span, and wraps ErrParseFailed when all three fail.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	for _, candidate := range candidates(content) {
		var attempt T
		if err := json.Unmarshal([]byte(candidate), &attempt); err == nil {
			return attempt, nil
		}
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, Snippet(content))
}

func candidates(content string) []string {
	out := []string{content}
	if matches := jsonBlockRegex.FindStringSubmatch(content); len(matches) >= 2 {
		out = append(out, strings.TrimSpace(matches[1]))
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		out = append(out, content[start:end+1])
	}
	return out
}

// Snippet shortens content for log and error messages.
func Snippet(content string) string {
	if utf8.RuneCountInString(content) <= snippetLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:snippetLimit]) + "..."
}
