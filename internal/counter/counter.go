// Package counter measures corpus text in different units.
//
// Words are whitespace-separated fields and give the n-gram length of an
// entity span. Characters are Unicode code points. Tokens are BPE tokens of the
// cl100k_base encoding, useful to size a corpus before feeding it to a
// transformer model.
package counter

import (
	"fmt"
	"strings"
)

// Counter counts units of text.
type Counter interface {
	Count(text string) int
	Name() string
}

// CountingMethod selects a unit.
type CountingMethod int

const (
	// Words splits on Unicode whitespace (default)
	Words CountingMethod = iota
	// Characters counts runes
	Characters
	// Tokens counts cl100k_base BPE tokens
	Tokens
)

// String returns the flag spelling of the method.
func (cm CountingMethod) String() string {
	switch cm {
	case Words:
		return "words"
	case Characters:
		return "characters"
	case Tokens:
		return "tokens"
	default:
		return "unknown"
	}
}

// ParseCountingMethod parses the flag spelling of a method.
func ParseCountingMethod(s string) (CountingMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "words", "word":
		return Words, nil
	case "characters", "chars", "char":
		return Characters, nil
	case "tokens", "token":
		return Tokens, nil
	default:
		return Words, fmt.Errorf("unknown counting unit %q", s)
	}
}

// NewCounter returns the counter for method. Only Tokens can fail, when the
// BPE encoding cannot be loaded.
func NewCounter(method CountingMethod) (Counter, error) {
	switch method {
	case Characters:
		return CharCounter{}, nil
	case Tokens:
		tc, err := NewTokenCounter()
		if err != nil {
			return nil, err
		}
		return tc, nil
	default:
		return WordCounter{}, nil
	}
}
