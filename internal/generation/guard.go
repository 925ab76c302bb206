package generation

import (
	"strings"
	"unicode/utf8"
)

const (
	// RepetitionWindow is the substring length, in runes, compared when
	// looking for decode loops.
	RepetitionWindow = 50
	// RepetitionThreshold is how many times a window may appear before the
	// output is cut.
	RepetitionThreshold = 3
)

// TruncateRepetition cuts text at the start of the second occurrence of
// the first window-rune substring seen threshold times. Text without such
// a loop is returned unchanged.
func TruncateRepetition(text string, window, threshold int) string {
	if window <= 0 || threshold < 2 || utf8.RuneCountInString(text) < window*threshold {
		return text
	}

	// Byte offset of every rune, plus the end.
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))

	type seen struct {
		count  int
		second int
	}
	windows := make(map[string]*seen)
	for i := 0; i+window < len(offsets); i++ {
		w := text[offsets[i]:offsets[i+window]]
		s, ok := windows[w]
		if !ok {
			windows[w] = &seen{count: 1}
			continue
		}
		s.count++
		if s.count == 2 {
			s.second = offsets[i]
		}
		if s.count >= threshold {
			return strings.TrimRight(text[:s.second], " \t\r\n")
		}
	}
	return text
}
