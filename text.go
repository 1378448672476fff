package batchz

import "unicode/utf8"

// summariseText counts characters (runes, not bytes) and words. A word is a
// maximal run of characters other than the space character; tabs and
// newlines belong to words.
func summariseText(text string) TextSummary {
	words := 0
	inWord := false
	for _, r := range text {
		switch {
		case r == ' ':
			inWord = false
		case !inWord:
			words++
			inWord = true
		}
	}
	return TextSummary{
		Characters: utf8.RuneCountInString(text),
		Words:      words,
	}
}
