// Package synopsis holds the prompt and response cleanup shared by the
// LLM-backed synopsis generators.
package synopsis

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/ainews/internal/news"
)

// ErrEmpty is returned when a model answers with no usable text.
var ErrEmpty = errors.New("synopsis: empty response")

// MaxPromptContentRunes bounds the article text sent to a model.
const MaxPromptContentRunes = 4000

// Sampling settings shared by all providers.
const (
	Temperature = 0.3
	MaxTokens   = 150
)

var (
	bracketNote      = regexp.MustCompile(`(?i)[\[(]\s*(note|disclaimer)\b[^\])]*[\])]`)
	leadingLabel     = regexp.MustCompile(`(?i)^\s*(summary|synopsis|tl;dr)\s*:\s*`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	noteLinePrefixes = []string{"note:", "disclaimer:", "as an ai"}
)

// BuildPrompt renders the 2-3 sentence summary request for item.
func BuildPrompt(item *news.Item) string {
	content := strings.TrimSpace(item.Summary + " " + item.ExtractedContent)
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) > MaxPromptContentRunes {
		content = string([]rune(content)[:MaxPromptContentRunes]) + " [TRUNCATED]"
	}

	return fmt.Sprintf(`Summarize this AI/tech news article in 2-3 concise sentences that highlight the key points:

Title: %s
Content: %s

Focus on what's new, important, and actionable. Keep it under 150 words.`, item.Title, content)
}

// Clean strips labels and model disclaimers from a response and returns
// ErrEmpty if nothing is left.
func Clean(text string) (string, error) {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isNoteLine(line) {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.Join(kept, " ")
	out = bracketNote.ReplaceAllString(out, "")
	out = leadingLabel.ReplaceAllString(out, "")
	out = strings.TrimSpace(whitespaceRun.ReplaceAllString(out, " "))
	if out == "" {
		return "", ErrEmpty
	}
	return out, nil
}

func isNoteLine(line string) bool {
	lower := strings.ToLower(line)
	for _, prefix := range noteLinePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
