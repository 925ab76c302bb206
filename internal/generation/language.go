package generation

import "regexp"

// Language is the language an answer is written in.
type Language string

const (
	English Language = "en"
	Korean  Language = "ko"
)

var (
	// Hangul syllables and jamo.
	hangulRe = regexp.MustCompile(`[\x{AC00}-\x{D7AF}\x{1100}-\x{11FF}]`)
	// CJK unified ideographs.
	hanRe = regexp.MustCompile(`[\x{4E00}-\x{9FFF}]`)
)

// Detect returns Korean when text contains Hangul and English otherwise.
func Detect(text string) Language {
	if hangulRe.MatchString(text) {
		return Korean
	}
	return English
}

// strayScript reports whether an answer meant to be in lang contains
// script from an unrelated language family. Small Korean models drift
// into Chinese.
func strayScript(lang Language, text string) bool {
	return lang == Korean && hanRe.MatchString(text)
}
