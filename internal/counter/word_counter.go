package counter

import "strings"

// WordCounter counts whitespace-separated words.
type WordCounter struct{}

// Count returns len(strings.Fields(text)).
func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// Name returns "words".
func (WordCounter) Name() string { return "words" }
