// Package corpus loads token-tagged and plain-text corpora into memory.
//
// Two on-disk conventions are supported:
//
//   - the tabular (CoNLL-like) format: one "token<SEP>tag" line per token
//     (or "token<SEP>key<SEP>predicted" for predicted corpora), sentences
//     separated by a blank line;
//   - the plain format: one sentence per line, optionally annotated inline with
//     bracketed labels that follow the word they tag ("Lisboa <B-LOC>").
//
// Malformed lines are dropped silently; an unreadable path is always reported
// with ErrFileAccess.
package corpus

import (
	"errors"
	"strings"
)

// ErrFileAccess is returned when an input path cannot be opened or read.
var ErrFileAccess = errors.New("file access error")

// DefaultSeparator is the column separator of tabular corpora.
const DefaultSeparator = " "

// Token is a single word of a sentence.
type Token struct {
	Index     int    // 0-based position within the sentence
	Text      string // surface form
	Tag       string // gold tag (or key column for predicted corpora); "O" outside entities
	Predicted string // predicted tag, only set for three-column corpora
}

// Sentence is an ordered run of tokens. Sentences loaded from plain files
// carry their raw Text; tokens are only present when tags were parsed.
type Sentence struct {
	Tokens []Token
	Text   string
}

// Texts returns the token texts in order.
func (s Sentence) Texts() []string {
	out := make([]string, len(s.Tokens))
	for i, tok := range s.Tokens {
		out[i] = tok.Text
	}
	return out
}

// Tags returns the per-token tags in order.
func (s Sentence) Tags() []string {
	out := make([]string, len(s.Tokens))
	for i, tok := range s.Tokens {
		out[i] = tok.Tag
	}
	return out
}

// Predictions returns the per-token predicted tags in order.
func (s Sentence) Predictions() []string {
	out := make([]string, len(s.Tokens))
	for i, tok := range s.Tokens {
		out[i] = tok.Predicted
	}
	return out
}

// Lines renders each token as "token<sep>tag", or "token<sep>key<sep>predicted"
// when predicted is true.
func (s Sentence) Lines(sep string, predicted bool) []string {
	out := make([]string, len(s.Tokens))
	for i, tok := range s.Tokens {
		if predicted {
			out[i] = tok.Text + sep + tok.Tag + sep + tok.Predicted
			continue
		}
		out[i] = tok.Text + sep + tok.Tag
	}
	return out
}

// String returns the raw text of the sentence, or its tokens joined by a space.
func (s Sentence) String() string {
	if s.Text != "" {
		return s.Text
	}
	return strings.Join(s.Texts(), " ")
}

// Corpus is the ordered collection of sentences loaded from one source file.
type Corpus struct {
	Source    string
	Separator string
	Predicted bool
	Sentences []Sentence
}

// Len returns the number of sentences.
func (c *Corpus) Len() int {
	return len(c.Sentences)
}

// Tokens returns the token texts of every sentence.
func (c *Corpus) Tokens() [][]string {
	out := make([][]string, len(c.Sentences))
	for i, s := range c.Sentences {
		out[i] = s.Texts()
	}
	return out
}

// Tags returns the tags (or keys) of every sentence.
func (c *Corpus) Tags() [][]string {
	out := make([][]string, len(c.Sentences))
	for i, s := range c.Sentences {
		out[i] = s.Tags()
	}
	return out
}

// Predictions returns the predicted tags of every sentence. It is only
// meaningful for corpora loaded in predicted mode.
func (c *Corpus) Predictions() [][]string {
	out := make([][]string, len(c.Sentences))
	for i, s := range c.Sentences {
		out[i] = s.Predictions()
	}
	return out
}

// TokenTags returns the combined "token<sep>tag" lines of every sentence.
func (c *Corpus) TokenTags() [][]string {
	out := make([][]string, len(c.Sentences))
	for i, s := range c.Sentences {
		out[i] = s.Lines(c.Separator, c.Predicted)
	}
	return out
}

// Plain returns the raw line of every sentence.
func (c *Corpus) Plain() []string {
	out := make([]string, len(c.Sentences))
	for i, s := range c.Sentences {
		out[i] = s.String()
	}
	return out
}
