package app

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/chriscorrea/ptner/internal/corpus"
	"github.com/chriscorrea/ptner/internal/counter"
	"github.com/chriscorrea/ptner/internal/label"
	"github.com/chriscorrea/ptner/internal/output"
)

// CorpusOptions configures the corpus-level commands. Not every field applies
// to every command.
type CorpusOptions struct {
	Encoding        string   // input encoding, default utf-8
	Separator       string   // token/tag separator, default " "
	Predicted       bool     // tabular input has a predicted third column
	Accept          []string // acceptable categories or labels
	UnacceptedLabel string   // replacement tag for unacceptable categories, default "O"
	KnownLabels     []string // bracketed labels for FilterPlainCorpus; derived from the input when empty
	Shuffle         bool     // shuffle written sentences
}

func (o CorpusOptions) separator() string {
	if o.Separator == "" {
		return corpus.DefaultSeparator
	}
	return o.Separator
}

func loaded(w io.Writer, c *corpus.Corpus) {
	if w != nil {
		fmt.Fprintf(w, "A dataset with %d sentences was loaded!\n", c.Len())
	}
}

// FilterCorpus loads the tabular corpus at in, replaces every tag whose
// category is not in opts.Accept with opts.UnacceptedLabel and writes the
// filtered corpus to out. Summaries go to w unless it is nil.
func FilterCorpus(w io.Writer, in, out string, opts CorpusOptions) error {
	if len(opts.Accept) == 0 {
		return fmt.Errorf("%w: no acceptable categories given", ErrConfiguration)
	}
	unaccepted := opts.UnacceptedLabel
	if unaccepted == "" {
		unaccepted = label.Outside
	}

	store := corpus.NewStore()
	c, err := store.LoadTabular(in, corpus.TabularOptions{
		Encoding:  opts.Encoding,
		Separator: opts.Separator,
		Predicted: opts.Predicted,
	})
	if err != nil {
		return err
	}
	loaded(w, c)

	_, lines, err := store.FilterByCategories(opts.Accept, unaccepted)
	if err != nil {
		return err
	}
	if err := output.Write(out, output.Tabular, lines, opts.Shuffle); err != nil {
		return err
	}

	slog.Debug("Filtered tabular corpus", "in", in, "out", out, "sentenceCount", len(lines))
	return nil
}

// FilterPlainCorpus removes the inline labels of unacceptable categories from
// every line of the plain tagged corpus at in and writes the result to out.
func FilterPlainCorpus(w io.Writer, in, out string, opts CorpusOptions) error {
	if len(opts.Accept) == 0 {
		return fmt.Errorf("%w: no acceptable categories given", ErrConfiguration)
	}

	c, err := corpus.LoadPlain(in, corpus.PlainOptions{Encoding: opts.Encoding})
	if err != nil {
		return err
	}
	loaded(w, c)

	lines := c.Plain()
	known := opts.KnownLabels
	if len(known) == 0 {
		known = bracketedLabels(lines)
	}

	filtered := make([]string, len(lines))
	for i, line := range lines {
		filtered[i] = label.FilterPlainTagged(line, known, opts.Accept)
	}
	if err := output.WriteLines(out, filtered, opts.Shuffle); err != nil {
		return err
	}

	slog.Debug("Filtered plain corpus", "in", in, "out", out, "sentenceCount", len(filtered), "labelCount", len(known))
	return nil
}

// bracketedLabels collects the distinct "<LABEL>" tokens of lines in first-seen order.
func bracketedLabels(lines []string) []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, line := range lines {
		for _, tok := range strings.Fields(line) {
			if !label.IsBracketed(tok) {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			labels = append(labels, tok)
		}
	}
	return labels
}

// ConvertPlainToTabular reads a plain corpus with inline entity labels and
// writes it as a tabular corpus. Labels outside opts.Accept are dropped when
// opts.Accept is set; unlabelled words are tagged "O".
func ConvertPlainToTabular(w io.Writer, in, out string, opts CorpusOptions) error {
	c, err := corpus.LoadPlain(in, corpus.PlainOptions{
		Encoding:         opts.Encoding,
		WithEntities:     true,
		AcceptableLabels: opts.Accept,
	})
	if err != nil {
		return err
	}
	loaded(w, c)

	sep := opts.separator()
	sentences := make([][]string, 0, c.Len())
	for _, s := range c.Sentences {
		if len(s.Tokens) == 0 {
			continue
		}
		sentences = append(sentences, s.Lines(sep, false))
	}
	if err := output.Write(out, output.Tabular, sentences, opts.Shuffle); err != nil {
		return err
	}

	slog.Debug("Converted plain corpus", "in", in, "out", out, "sentenceCount", len(sentences))
	return nil
}

// Stats summarizes a corpus.
type Stats struct {
	Source     string
	Sentences  int
	Tokens     int
	Size       int
	Unit       string
	Labels     []string       // distinct labels, I- labels excluded, first-seen order
	Categories map[string]int // entity count per category
}

// WriteTo renders the summary.
func (s Stats) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "source: %s\n", s.Source)
	fmt.Fprintf(&b, "sentences: %d\n", s.Sentences)
	fmt.Fprintf(&b, "tokens: %d\n", s.Tokens)
	fmt.Fprintf(&b, "%s: %d\n", s.Unit, s.Size)
	if len(s.Labels) > 0 {
		fmt.Fprintf(&b, "labels: %s\n", strings.Join(s.Labels, " "))
	}

	categories := make([]string, 0, len(s.Categories))
	for c := range s.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(&b, "CATEGORY:%s %d\n", c, s.Categories[c])
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// CorpusStats loads the corpus at path (plain with inline labels when plain is
// set, tabular otherwise) and counts its sentences, tokens, entities per
// category and its size in unit.
func CorpusStats(path string, plain bool, unit counter.CountingMethod, opts CorpusOptions) (Stats, error) {
	cnt, err := counter.NewCounter(unit)
	if err != nil {
		return Stats{}, err
	}

	var c *corpus.Corpus
	if plain {
		c, err = corpus.LoadPlain(path, corpus.PlainOptions{Encoding: opts.Encoding, WithEntities: true})
	} else {
		c, err = corpus.LoadTabular(path, corpus.TabularOptions{
			Encoding:  opts.Encoding,
			Separator: opts.Separator,
			Predicted: opts.Predicted,
		})
	}
	if err != nil {
		return Stats{}, err
	}

	tags := c.Tags()
	if c.Predicted {
		tags = c.Predictions()
	}

	stats := Stats{
		Source:     path,
		Sentences:  c.Len(),
		Unit:       cnt.Name(),
		Labels:     label.UniqueLabels(tags),
		Categories: make(map[string]int),
	}

	texts := make([]string, 0, c.Len())
	for _, s := range c.Sentences {
		stats.Tokens += len(s.Tokens)
		texts = append(texts, strings.Join(s.Texts(), " "))
	}
	for _, sentence := range tags {
		for i, tag := range sentence {
			if tag == label.Outside || tag == "" {
				continue
			}
			cat := label.Category(tag)
			// a span starts at B-, or at a tag whose category differs from the previous one
			if label.IsBegin(tag) || i == 0 || label.Category(sentence[i-1]) != cat {
				stats.Categories[cat]++
			}
		}
	}
	stats.Size = cnt.Count(strings.Join(texts, "\n"))

	slog.Debug("Computed corpus stats", "path", path, "sentenceCount", stats.Sentences, "tokenCount", stats.Tokens, "unit", stats.Unit)
	return stats, nil
}
