// Package tokenizer estimates token counts for providers that do not report usage.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// CountTokens estimates tokens as the larger of a word-based and a character-based
// guess (about 3/4 of a word, or 4 characters, per token for English).
func CountTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	byWords := len(strings.Fields(text)) * 4 / 3
	byChars := (utf8.RuneCountInString(text) + 3) / 4
	return max(byWords, byChars, 1)
}

// CountMessages estimates a chat prompt, adding the per-message overhead chat
// formats spend on roles and separators.
func CountMessages(contents ...string) int {
	total := 0
	for _, c := range contents {
		total += CountTokens(c) + 4
	}
	return total
}
