package counter

import "unicode/utf8"

// CharCounter counts runes, whitespace included.
type CharCounter struct{}

// Count returns the rune count of text.
func (CharCounter) Count(text string) int {
	return utf8.RuneCountInString(text)
}

// Name returns "characters".
func (CharCounter) Name() string { return "characters" }
