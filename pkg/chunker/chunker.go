// Package chunker splits text into contiguous, non-overlapping character windows.
// Sizes and offsets are counted in runes, not bytes.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	StrategyFixed    = "fixed"
	StrategySentence = "sentence"
)

// Window is a slice of the input text. Concatenating all windows in Index order
// reproduces the input exactly.
type Window struct {
	Index int
	Start int // rune offset, inclusive
	End   int // rune offset, exclusive
	Text  string
}

// Split dispatches on strategy; unknown strategies fall back to fixed windows.
func Split(text string, size int, strategy string) []Window {
	if strategy == StrategySentence {
		return Sentence(text, size)
	}
	return Fixed(text, size)
}

// Fixed cuts text every size runes. The last window may be shorter.
func Fixed(text string, size int) []Window {
	if size <= 0 {
		size = 1
	}
	runes := []rune(text)
	windows := make([]Window, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		windows = append(windows, Window{
			Index: len(windows),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
	}
	return windows
}

// Sentence packs whole sentences into windows of at most size runes. A sentence
// longer than size is cut with Fixed.
func Sentence(text string, size int) []Window {
	if size <= 0 {
		size = 1
	}

	var windows []Window
	var current strings.Builder
	currentLen, offset := 0, 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		windows = append(windows, Window{
			Index: len(windows),
			Start: offset,
			End:   offset + currentLen,
			Text:  current.String(),
		})
		offset += currentLen
		current.Reset()
		currentLen = 0
	}

	for _, s := range splitSentences(text) {
		n := utf8.RuneCountInString(s)
		if currentLen > 0 && currentLen+n > size {
			flush()
		}
		if n > size {
			for _, part := range Fixed(s, size) {
				current.WriteString(part.Text)
				currentLen = part.End - part.Start
				flush()
			}
			continue
		}
		current.WriteString(s)
		currentLen += n
	}
	flush()

	return windows
}

// splitSentences keeps terminators and the following space with the sentence so
// the pieces concatenate back to the input.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && runes[i+1] == ' ' {
			continue
		}
		if r == ' ' && i > 0 && (runes[i-1] == '.' || runes[i-1] == '!' || runes[i-1] == '?') {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}

	return sentences
}
