package corpus

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/chriscorrea/ptner/internal/label"
)

// DefaultEncoding is used when no input encoding is given.
const DefaultEncoding = "utf-8"

// TabularOptions controls how a tabular corpus is parsed.
type TabularOptions struct {
	Encoding  string // input encoding name (default utf-8)
	Separator string // column separator (default single space)
	Predicted bool   // three columns: token, gold key, predicted tag
}

// PlainOptions controls how a plain corpus is parsed.
type PlainOptions struct {
	Encoding         string   // input encoding name (default utf-8)
	WithEntities     bool     // parse inline "<LABEL>" annotations into tokens
	AcceptableLabels []string // when non-empty, only these labels (or their categories) are attached
}

// readText reads path and decodes it from the named encoding into UTF-8.
func readText(path, encodingName string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a valid file name: %w", ErrFileAccess, path, err)
	}

	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	enc, err := htmlindex.Get(encodingName)
	if err != nil {
		return "", fmt.Errorf("unsupported encoding %q: %w", encodingName, err)
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %q as %s: %w", path, encodingName, err)
	}

	// normalise line endings so block splitting works on CRLF files too
	text := strings.ReplaceAll(string(decoded), "\r\n", "\n")
	return text, nil
}

// LoadTabular reads a tabular corpus. Sentences are separated by a blank line;
// lines with the wrong column count or an empty column are dropped, and so is
// any sentence left without lines.
func LoadTabular(path string, opts TabularOptions) (*Corpus, error) {
	text, err := readText(path, opts.Encoding)
	if err != nil {
		return nil, err
	}

	sep := opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	columns := 2
	if opts.Predicted {
		columns = 3
	}

	c := &Corpus{Source: path, Separator: sep, Predicted: opts.Predicted}
	dropped := 0

	for _, block := range strings.Split(strings.TrimSpace(text), "\n\n") {
		var tokens []Token
		for _, line := range strings.Split(block, "\n") {
			tok, ok := parseTabularLine(line, sep, columns)
			if !ok {
				if strings.TrimSpace(line) != "" {
					dropped++
				}
				continue
			}
			tok.Index = len(tokens)
			tokens = append(tokens, tok)
		}
		if len(tokens) == 0 {
			continue
		}
		c.Sentences = append(c.Sentences, Sentence{Tokens: tokens})
	}

	slog.Debug("Loaded tabular corpus", "path", path, "sentenceCount", len(c.Sentences), "droppedLines", dropped)
	return c, nil
}

// parseTabularLine splits one line into its columns.
func parseTabularLine(line, sep string, columns int) (Token, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Token{}, false
	}

	fields := strings.Split(line, sep)
	if len(fields) != columns {
		return Token{}, false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
		if fields[i] == "" {
			return Token{}, false
		}
	}

	tok := Token{Text: fields[0], Tag: fields[1]}
	if columns == 3 {
		tok.Predicted = fields[2]
	}
	return tok, true
}

// LoadPlain reads a plain corpus, one sentence per non-blank line.
func LoadPlain(path string, opts PlainOptions) (*Corpus, error) {
	text, err := readText(path, opts.Encoding)
	if err != nil {
		return nil, err
	}

	var acceptable label.Set
	if len(opts.AcceptableLabels) > 0 {
		acceptable = label.NewSet(opts.AcceptableLabels)
	}

	c := &Corpus{Source: path, Separator: DefaultSeparator}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s := Sentence{Text: line}
		if opts.WithEntities {
			s.Tokens = ParsePlainTagged(line, acceptable)
		}
		c.Sentences = append(c.Sentences, s)
	}

	slog.Debug("Loaded plain corpus", "path", path, "sentenceCount", len(c.Sentences), "withEntities", opts.WithEntities)
	return c, nil
}

// ParsePlainTagged turns an inline-annotated line into tokens. A bracketed
// label right after a word is attached to that word (when acceptable is nil or
// accepts it); every other word is tagged "O". Labels are never emitted as words.
func ParsePlainTagged(line string, acceptable label.Set) []Token {
	var parts []string
	for _, p := range strings.Split(line, " ") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	var tokens []Token
	for i := 0; i < len(parts); i++ {
		if label.IsBracketed(parts[i]) {
			// orphan label with no word before it
			continue
		}

		tok := Token{Index: len(tokens), Text: parts[i], Tag: label.Outside}
		if i+1 < len(parts) && label.IsBracketed(parts[i+1]) {
			tag := label.Unbracket(parts[i+1])
			if acceptable == nil || acceptable.Accepts(tag) {
				tok.Tag = tag
			}
			i++
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
