// Package ner defines the external capabilities the tool is built around: a
// sequence tagger that labels the tokens of one sentence, and a splitter that
// cuts raw text into sentences.
//
// The core packages only depend on the Tagger and Splitter interfaces, so any
// model (or a test fake) can be plugged in. A prose-backed implementation of
// both is provided.
package ner

import (
	"context"
	"strings"

	"github.com/chriscorrea/ptner/internal/label"
)

// Token is one predicted token.
type Token struct {
	Index int    // 0-based position within the sentence
	Text  string // surface form
	Tag   string // IOB tag, "O" outside entities
}

// Span is a contiguous run of tokens of one sentence sharing a category.
type Span struct {
	Category string
	Text     string // member token texts joined by a space
	Indices  []int  // contiguous, ascending
}

// Entity is an (entity text, category) pair collected for reporting.
type Entity struct {
	Text     string
	Category string
}

// Entity returns the reportable pair of the span.
func (s Span) Entity() Entity {
	return Entity{Text: s.Text, Category: s.Category}
}

// Prediction is the tagger output for one sentence.
type Prediction struct {
	Tokens []Token
	Spans  []Span
}

// Tags returns the per-token tags in order.
func (p Prediction) Tags() []string {
	tags := make([]string, len(p.Tokens))
	for i, tok := range p.Tokens {
		tags[i] = tok.Tag
	}
	return tags
}

// TaggedString renders the prediction inline: every entity token is followed
// by its bracketed tag, e.g. "Ana <B-PER> mora em Braga <B-LOC>".
func (p Prediction) TaggedString() string {
	var sb strings.Builder
	for i, tok := range p.Tokens {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(tok.Text)
		if tok.Tag != "" && tok.Tag != label.Outside {
			sb.WriteByte(' ')
			sb.WriteString(label.Bracket(tok.Tag))
		}
	}
	return sb.String()
}

// Labels returns the bracketed B-/I- labels of every span category in the
// prediction, e.g. "<B-PER>", "<I-PER>".
func (p Prediction) Labels() []string {
	var labels []string
	seen := make(map[string]struct{})
	for _, span := range p.Spans {
		for _, l := range []string{"<B-" + span.Category + ">", "<I-" + span.Category + ">"} {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			labels = append(labels, l)
		}
	}
	return labels
}

// Tagger labels the tokens of a single sentence.
type Tagger interface {
	// Predict tags sentence. When useTokenizer is false the sentence is
	// tokenized on whitespace only.
	Predict(ctx context.Context, sentence string, useTokenizer bool) (Prediction, error)
}

// Loader loads a tagger from a model path.
type Loader func(modelPath string) (Tagger, error)

// Splitter cuts raw text into ordered sentences.
type Splitter interface {
	Split(text string) ([]string, error)
}

// SplitterFunc adapts a plain function to the Splitter interface.
type SplitterFunc func(text string) ([]string, error)

// Split calls f(text).
func (f SplitterFunc) Split(text string) ([]string, error) {
	return f(text)
}

// LineSplitter treats every non-blank line as one sentence.
var LineSplitter = SplitterFunc(func(text string) ([]string, error) {
	var sentences []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			sentences = append(sentences, line)
		}
	}
	return sentences, nil
})

// SpansFromTags builds spans from an IOB tag sequence. B-X opens a span, I-X
// continues an open span of category X and otherwise opens a new one, and a
// bare category (no prefix) behaves like I-. Malformed sequences never fail.
func SpansFromTags(tokens []Token) []Span {
	var spans []Span
	open := -1 // index into spans of the span being extended

	for i, tok := range tokens {
		if tok.Tag == "" || tok.Tag == label.Outside {
			open = -1
			continue
		}

		category := label.Category(tok.Tag)
		continues := !label.IsBegin(tok.Tag) &&
			open >= 0 &&
			spans[open].Category == category &&
			spans[open].Indices[len(spans[open].Indices)-1] == i-1

		if continues {
			spans[open].Indices = append(spans[open].Indices, i)
			spans[open].Text += " " + tok.Text
			continue
		}

		spans = append(spans, Span{Category: category, Text: tok.Text, Indices: []int{i}})
		open = len(spans) - 1
	}
	return spans
}
