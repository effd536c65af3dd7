package ner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/chriscorrea/ptner/internal/corpus"
	"github.com/chriscorrea/ptner/internal/label"
)

// modelFiles are the files prose reads from a model directory.
var modelFiles = []string{
	filepath.Join("Maxent", "mapping.gob"),
	filepath.Join("Maxent", "weights.gob"),
	filepath.Join("Maxent", "labels.gob"),
}

// ProseTagger tags sentences with a prose named-entity model.
type ProseTagger struct {
	model *prose.Model // nil means prose's bundled model
}

// LoadProse loads a prose model saved on disk. An empty modelPath selects the
// model bundled with prose.
func LoadProse(modelPath string) (Tagger, error) {
	if modelPath == "" {
		slog.Debug("Using bundled prose model")
		return &ProseTagger{}, nil
	}

	info, err := os.Stat(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: model %q: %w", corpus.ErrFileAccess, modelPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: model %q is not a directory", corpus.ErrFileAccess, modelPath)
	}
	for _, name := range modelFiles {
		if _, err := os.Stat(filepath.Join(modelPath, name)); err != nil {
			return nil, fmt.Errorf("%w: model %q: %w", corpus.ErrFileAccess, modelPath, err)
		}
	}

	slog.Debug("Loading prose model from disk", "path", modelPath)
	model, err := modelFromDisk(modelPath)
	if err != nil {
		return nil, err
	}
	return &ProseTagger{model: model}, nil
}

// modelFromDisk turns the panics prose raises on unreadable model files into errors.
func modelFromDisk(modelPath string) (model *prose.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			model = nil
			err = fmt.Errorf("%w: model %q: %v", corpus.ErrFileAccess, modelPath, r)
		}
	}()
	return prose.ModelFromDisk(modelPath), nil
}

// Predict tags a single sentence.
func (t *ProseTagger) Predict(ctx context.Context, sentence string, useTokenizer bool) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	opts := []prose.DocOpt{prose.WithSegmentation(false)}
	if t.model != nil {
		opts = append(opts, prose.UsingModel(t.model))
	}

	doc, err := prose.NewDocument(sentence, opts...)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to tag sentence: %w", err)
	}

	raw := doc.Tokens()
	tokens := make([]Token, len(raw))
	for i, tok := range raw {
		tokens[i] = Token{Index: i, Text: tok.Text}
	}
	spans := entitySpans(tokens, doc.Entities())
	retag(tokens, spans)

	if useTokenizer {
		return Prediction{Tokens: tokens, Spans: spans}, nil
	}

	words := alignToWords(strings.Fields(sentence), tokens)
	return Prediction{Tokens: words, Spans: SpansFromTags(words)}, nil
}

// entitySpans locates every prose entity in tokens. prose labels each token of
// a multi-word entity on its own, so the entity list is the only reliable
// source of span boundaries. Entities are matched in order, each starting at
// or after the end of the previous one; an entity that cannot be located is
// skipped.
func entitySpans(tokens []Token, entities []prose.Entity) []Span {
	var spans []Span
	from := 0

	for _, ent := range entities {
		parts := strings.Split(ent.Text, " ")
		start := findRun(tokens, parts, from)
		if start < 0 {
			slog.Debug("Entity not found in tokens", "entity", ent.Text, "label", ent.Label)
			continue
		}

		span := Span{Category: ent.Label, Text: ent.Text}
		for i := range parts {
			span.Indices = append(span.Indices, start+i)
		}
		spans = append(spans, span)
		from = start + len(parts)
	}
	return spans
}

// findRun returns the first index at or after from where the texts of tokens
// equal parts, or -1.
func findRun(tokens []Token, parts []string, from int) int {
	for start := from; start+len(parts) <= len(tokens); start++ {
		match := true
		for i, p := range parts {
			if tokens[start+i].Text != p {
				match = false
				break
			}
		}
		if match {
			return start
		}
	}
	return -1
}

// retag sets IOB tags from spans: B- on the first member, I- on the rest and
// "O" everywhere else.
func retag(tokens []Token, spans []Span) {
	for i := range tokens {
		tokens[i].Tag = label.Outside
	}
	for _, span := range spans {
		for n, idx := range span.Indices {
			if n == 0 {
				tokens[idx].Tag = "B-" + span.Category
				continue
			}
			tokens[idx].Tag = "I-" + span.Category
		}
	}
}

// alignToWords maps model sub-tokens back onto whitespace words. Each word
// consumes sub-tokens until their concatenated text covers it and takes the
// first non-O tag among them; a B- word followed by words of the same entity
// keeps the model's I- tags.
func alignToWords(words []string, subTokens []Token) []Token {
	tokens := make([]Token, len(words))
	next := 0

	for i, word := range words {
		tokens[i] = Token{Index: i, Text: word, Tag: "O"}

		covered := 0
		for next < len(subTokens) && covered < len(word) {
			sub := subTokens[next]
			next++
			covered += len(sub.Text)
			if tokens[i].Tag == "O" && sub.Tag != "O" {
				tokens[i].Tag = sub.Tag
			}
		}
	}

	if next != len(subTokens) {
		slog.Debug("Sub-token alignment left tokens unused", "words", len(words), "subTokens", len(subTokens), "used", next)
	}
	return tokens
}

// ProseSplitter segments text into sentences with prose's segmenter.
type ProseSplitter struct{}

// Split returns the sentences of text in order, without blank entries.
func (ProseSplitter) Split(text string) ([]string, error) {
	doc, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to segment text: %w", err)
	}

	var sentences []string
	for _, s := range doc.Sentences() {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences, nil
}
