package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriscorrea/ptner/internal/aggregate"
	"github.com/chriscorrea/ptner/internal/corpus"
	"github.com/chriscorrea/ptner/internal/ner"
	"github.com/chriscorrea/ptner/internal/output"
)

// fakeTagger tags whitespace tokens from a fixed dictionary.
type fakeTagger struct {
	tags         map[string]string
	err          error
	calls        int
	useTokenizer []bool
}

func (f *fakeTagger) Predict(_ context.Context, sentence string, useTokenizer bool) (ner.Prediction, error) {
	f.calls++
	f.useTokenizer = append(f.useTokenizer, useTokenizer)
	if f.err != nil {
		return ner.Prediction{}, f.err
	}

	var tokens []ner.Token
	for i, w := range strings.Fields(sentence) {
		tag, ok := f.tags[w]
		if !ok {
			tag = "O"
		}
		tokens = append(tokens, ner.Token{Index: i, Text: w, Tag: tag})
	}
	return ner.Prediction{Tokens: tokens, Spans: ner.SpansFromTags(tokens)}, nil
}

func newFakeTagger() *fakeTagger {
	return &fakeTagger{tags: map[string]string{
		"Maria":  "B-PER",
		"da":     "I-PER",
		"Silva":  "I-PER",
		"Ana":    "B-PER",
		"Lisboa": "B-LOC",
		"Porto":  "B-LOC",
		"Alegre": "I-LOC",
	}}
}

func readyOrchestrator(t *testing.T) (*Orchestrator, *fakeTagger) {
	t.Helper()
	tagger := newFakeTagger()
	o := New(nil, nil)
	o.UseTagger(tagger)
	o.SetOutput(&bytes.Buffer{})
	return o, tagger
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Quiet = true
	return cfg
}

func TestTagTextWithoutTagger(t *testing.T) {
	o := New(nil, nil)
	assert.Equal(t, Idle, o.State())

	_, err := o.TagText(context.Background(), "x", "Maria chegou", quietConfig())
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = o.TagDirectory(context.Background(), t.TempDir(), quietConfig())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, Idle, o.State())
}

func TestLoad(t *testing.T) {
	tagger := newFakeTagger()
	var gotPath string
	o := New(func(path string) (ner.Tagger, error) {
		gotPath = path
		return tagger, nil
	}, nil)

	require.NoError(t, o.Load("models/pt"))
	assert.Equal(t, "models/pt", gotPath)
	assert.Equal(t, Ready, o.State())

	failing := New(func(string) (ner.Tagger, error) { return nil, errors.New("no model") }, nil)
	err := failing.Load("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Equal(t, Idle, failing.State())

	assert.ErrorIs(t, New(nil, nil).Load("x"), ErrNotReady)
}

func TestConfigErrorsBeforeWork(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		target error
	}{
		{"mask without categories or names", func(c *Config) { c.Mask = true }, ErrNotReady},
		{"mask with empty placeholder", func(c *Config) {
			c.Mask = true
			c.MaskCategories = []string{"PER"}
			c.Placeholder = " "
		}, ErrNotReady},
		{"files without directory", func(c *Config) { c.WriteFiles = true }, ErrConfiguration},
		{"unknown format", func(c *Config) { c.OutputFormat = output.Unknown }, output.ErrUnknownFormat},
		{"empty separator", func(c *Config) { c.Separator = "" }, ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, tagger := readyOrchestrator(t)
			cfg := quietConfig()
			tt.modify(&cfg)

			_, err := o.TagText(context.Background(), "doc", "Maria chegou", cfg)
			assert.ErrorIs(t, err, tt.target)
			assert.Zero(t, tagger.calls)
			assert.Empty(t, o.Scopes())
		})
	}
}

func TestTagTextRendering(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Config)
		expected [][]string
	}{
		{
			name:     "plain unmasked",
			modify:   func(*Config) {},
			expected: [][]string{{"Maria <B-PER> da <I-PER> Silva <I-PER> chegou a Lisboa <B-LOC>"}},
		},
		{
			name:   "tabular unmasked",
			modify: func(c *Config) { c.OutputFormat = output.Tabular },
			expected: [][]string{{
				"Maria B-PER", "da I-PER", "Silva I-PER", "chegou O", "a O", "Lisboa B-LOC",
			}},
		},
		{
			name: "plain masked",
			modify: func(c *Config) {
				c.Mask = true
				c.MaskCategories = []string{"PER"}
			},
			expected: [][]string{{"<MASK> chegou a Lisboa"}},
		},
		{
			name: "tabular masked with separator",
			modify: func(c *Config) {
				c.Mask = true
				c.MaskCategories = []string{"PER", "LOC"}
				c.OutputFormat = output.Tabular
				c.Separator = "\t"
			},
			expected: [][]string{{"<MASK>\tB-PER", "chegou\tO", "a\tO", "<MASK>\tB-LOC"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := readyOrchestrator(t)
			cfg := quietConfig()
			tt.modify(&cfg)

			res, err := o.TagText(context.Background(), "doc", "Maria da Silva chegou a Lisboa", cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res.Sentences)
			assert.Equal(t, "doc", res.Scope)
			assert.Equal(t, Ready, o.State())

			stored, ok := o.Result("doc")
			require.True(t, ok)
			assert.Equal(t, res, stored)
		})
	}
}

func TestTagTextMasksNameList(t *testing.T) {
	o, _ := readyOrchestrator(t)
	cfg := quietConfig()
	cfg.Mask = true
	cfg.NameList = []string{"Joao"}

	res, err := o.TagText(context.Background(), "doc", "JOÃO encontrou Ana", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"<MASK> encontrou Ana"}, res.Lines())
}

func TestTagTextNameListFile(t *testing.T) {
	names := filepath.Join(t.TempDir(), "names.txt")
	require.NoError(t, os.WriteFile(names, []byte("Joao\n\nBeatriz\n"), 0o644))

	o, _ := readyOrchestrator(t)
	cfg := quietConfig()
	cfg.Mask = true
	cfg.NameListFile = names

	res, err := o.TagText(context.Background(), "doc", "Beatriz e joão", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"<MASK> e <MASK>"}, res.Lines())
}

func TestTagTextUsesSplitter(t *testing.T) {
	tagger := newFakeTagger()
	splitter := ner.SplitterFunc(func(text string) ([]string, error) {
		return strings.Split(text, ". "), nil
	})
	o := New(nil, splitter)
	o.UseTagger(tagger)

	cfg := quietConfig()
	cfg.UseTokenizer = false
	res, err := o.TagText(context.Background(), "doc", "Ana saiu. Maria chegou", cfg)
	require.NoError(t, err)
	assert.Len(t, res.Sentences, 2)
	assert.Equal(t, []bool{false, false}, tagger.useTokenizer)
}

func TestTagTextRejectsEmptyID(t *testing.T) {
	o, _ := readyOrchestrator(t)
	_, err := o.TagText(context.Background(), "  ", "Ana", quietConfig())
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestTaggerFailure(t *testing.T) {
	o, tagger := readyOrchestrator(t)
	tagger.err = errors.New("model crashed")

	_, err := o.TagText(context.Background(), "doc", "Ana", quietConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")
	assert.Equal(t, Ready, o.State())
	_, ok := o.Result("doc")
	assert.False(t, ok)
}

func TestTagTextCancelled(t *testing.T) {
	o, tagger := readyOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.TagText(ctx, "doc", "Ana saiu", quietConfig())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, tagger.calls)
}

func TestReportsAccumulateAcrossScopes(t *testing.T) {
	o, _ := readyOrchestrator(t)
	cfg := quietConfig()
	cfg.ReportEntities = true
	ctx := context.Background()

	_, err := o.TagText(ctx, "a", "Maria foi a Lisboa\nAna ficou", cfg)
	require.NoError(t, err)
	_, err = o.TagText(ctx, "b", "Maria foi a Porto Alegre", cfg)
	require.NoError(t, err)

	repA, ok := o.Report("a")
	require.True(t, ok)
	assert.Equal(t, []aggregate.EntityRecord{
		{Text: "Maria", Count: 1, Category: "PER"},
		{Text: "Lisboa", Count: 1, Category: "LOC"},
		{Text: "Ana", Count: 1, Category: "PER"},
	}, repA.Records)

	all, ok := o.Report(AllScopes)
	require.True(t, ok)
	assert.Equal(t, "CATEGORY:LOC\n\n"+
		"Lisboa: 1\n"+
		"Porto Alegre: 1\n"+
		"\n"+
		"CATEGORY:PER\n\n"+
		"Maria: 2\n"+
		"Ana: 1\n"+
		"\n"+
		"-------\n"+
		"1-gram: 3\n"+
		"2-gram: 1\n", all.String())

	// re-tagging a scope replaces its contribution
	_, err = o.TagText(ctx, "a", "Ana ficou", cfg)
	require.NoError(t, err)
	all, _ = o.Report(AllScopes)
	assert.Equal(t, []aggregate.EntityRecord{
		{Text: "Ana", Count: 1, Category: "PER"},
		{Text: "Maria", Count: 1, Category: "PER"},
		{Text: "Porto Alegre", Count: 1, Category: "LOC"},
	}, all.Records)
	assert.Equal(t, []string{"a", "b"}, o.Scopes())

	o.Reset()
	assert.Empty(t, o.Scopes())
	assert.Empty(t, o.KnownLabels())
	_, ok = o.Report(AllScopes)
	assert.False(t, ok)
	assert.Equal(t, Ready, o.State())
}

func TestNoReportUnlessRequested(t *testing.T) {
	o, _ := readyOrchestrator(t)
	_, err := o.TagText(context.Background(), "a", "Maria foi a Lisboa", quietConfig())
	require.NoError(t, err)

	_, ok := o.Report("a")
	assert.False(t, ok)
	_, ok = o.Report(AllScopes)
	assert.False(t, ok)
}

func TestKnownLabels(t *testing.T) {
	o, _ := readyOrchestrator(t)
	_, err := o.TagText(context.Background(), "a", "Maria foi a Lisboa\nAna ficou", quietConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"<B-PER>", "<I-PER>", "<B-LOC>", "<I-LOC>"}, o.KnownLabels())
}

func TestTagTextSummary(t *testing.T) {
	o, _ := readyOrchestrator(t)
	var buf bytes.Buffer
	o.SetOutput(&buf)

	cfg := DefaultConfig()
	_, err := o.TagText(context.Background(), "noticia", "Ana saiu\nMaria chegou", cfg)
	require.NoError(t, err)
	assert.Equal(t, "noticia: 2 sentences tagged\n", buf.String())
}

func TestTagDirectory(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(filepath.Join(in, "b.txt"), []byte("Ana saiu\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.txt"), []byte("Maria da Silva chegou\n\nLisboa acordou\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.md"), []byte("Porto Alegre\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(in, "sub.txt"), 0o755))

	o, _ := readyOrchestrator(t)
	cfg := quietConfig()
	cfg.Mask = true
	cfg.MaskCategories = []string{"PER"}
	cfg.ReportEntities = true
	cfg.WriteFiles = true
	cfg.OutputDir = out
	cfg.OutputFormat = output.Tabular

	results, err := o.TagDirectory(context.Background(), in, cfg)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.txt", results[0].Scope)
	assert.Equal(t, "b.txt", results[1].Scope)
	assert.Equal(t, []string{"a.txt", "b.txt"}, o.Scopes())

	tagged, err := os.ReadFile(filepath.Join(out, "ptTagged-a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "<MASK> B-PER\nchegou O\n\nLisboa B-LOC\nacordou O\n\n", string(tagged))

	repA, _ := o.Report("a.txt")
	entities, err := os.ReadFile(filepath.Join(out, "ptEntities-a.txt"))
	require.NoError(t, err)
	assert.Equal(t, repA.String(), string(entities))

	all, _ := o.Report(AllScopes)
	allData, err := os.ReadFile(filepath.Join(out, "ptEntities-all.txt"))
	require.NoError(t, err)
	assert.Equal(t, all.String(), string(allData))
	assert.Contains(t, all.String(), "Maria da Silva: 1\n")
	assert.Contains(t, all.String(), "Ana: 1\n")

	_, err = os.Stat(filepath.Join(out, "ptTagged-notes.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestTagDirectorySplitsSentences(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.txt"), []byte("Ana saiu. Maria chegou\n"), 0o644))

	splitter := ner.SplitterFunc(func(text string) ([]string, error) {
		return strings.Split(text, ". "), nil
	})
	o := New(nil, splitter)
	o.UseTagger(newFakeTagger())

	cfg := quietConfig()
	results, err := o.TagDirectory(context.Background(), in, cfg)
	require.NoError(t, err)
	assert.Len(t, results[0].Sentences, 1)

	cfg.SplitSentences = true
	results, err = o.TagDirectory(context.Background(), in, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana <B-PER> saiu", "Maria <B-PER> chegou"}, results[0].Lines())
}

func TestTagDirectoryMissingFolder(t *testing.T) {
	o, _ := readyOrchestrator(t)
	_, err := o.TagDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), quietConfig())
	assert.ErrorIs(t, err, corpus.ErrFileAccess)
	assert.Contains(t, err.Error(), "missing")
}

// syncBuffer guards a bytes.Buffer shared with the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTagDirectorySummaries(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.txt"), []byte("Ana saiu\nMaria chegou\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "b.txt"), []byte("Lisboa acordou\n"), 0o644))

	o, _ := readyOrchestrator(t)
	var buf syncBuffer
	o.SetOutput(&buf)

	_, err := o.TagDirectory(context.Background(), in, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(buf.String(), "\ra.txt: 2 sentences tagged\nb.txt: 1 sentences tagged\n"),
		"summaries follow the cleared spinner line, got %q", buf.String())
}

func TestReservedScope(t *testing.T) {
	o, tagger := readyOrchestrator(t)
	cfg := quietConfig()
	cfg.ReportEntities = true
	ctx := context.Background()

	for _, id := range []string{AllScopes, "all.txt", "out/all"} {
		_, err := o.TagText(ctx, id, "Maria chegou", cfg)
		assert.ErrorIs(t, err, ErrConfiguration, id)
	}
	assert.Zero(t, tagger.calls)

	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.txt"), []byte("Ana saiu\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "all.txt"), []byte("Maria chegou\n"), 0o644))
	_, err := o.TagDirectory(ctx, in, cfg)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, tagger.calls)
	assert.Empty(t, o.Scopes())
}

func TestAllScopesReportKeptApart(t *testing.T) {
	o, _ := readyOrchestrator(t)
	cfg := quietConfig()
	cfg.ReportEntities = true
	ctx := context.Background()

	_, err := o.TagText(ctx, "first", "Maria foi a Lisboa", cfg)
	require.NoError(t, err)
	_, err = o.TagText(ctx, "second", "Ana ficou", cfg)
	require.NoError(t, err)

	first, ok := o.Report("first")
	require.True(t, ok)
	assert.Len(t, first.Records, 2)

	all, ok := o.Report(AllScopes)
	require.True(t, ok)
	assert.Len(t, all.Records, 3)
	assert.Equal(t, []string{"first", "second"}, o.Scopes())
}

func TestScopeFileName(t *testing.T) {
	tests := []struct {
		scope    string
		expected string
	}{
		{"a.txt", "a.txt"},
		{"noticia", "noticia.txt"},
		{"dir/sub/doc.md", "doc.md"},
		{"../escape", "escape.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.scope, func(t *testing.T) {
			assert.Equal(t, tt.expected, scopeFileName(tt.scope))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "processing", Processing.String())
}
