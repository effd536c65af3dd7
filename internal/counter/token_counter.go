package counter

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts cl100k_base tokens. Safe for concurrent use.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

// NewTokenCounter loads the cl100k_base encoding.
func NewTokenCounter() (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cl100k_base encoding: %w", err)
	}
	return &TokenCounter{encoding: encoding}, nil
}

// Count returns the number of BPE tokens in text.
func (tc *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	n := len(tc.encoding.Encode(text, nil, nil))
	slog.Debug("Token count calculated", "textLength", len(text), "tokenCount", n)
	return n
}

// Name returns the encoding-qualified unit name.
func (tc *TokenCounter) Name() string {
	return "tokens (cl100k_base)"
}
