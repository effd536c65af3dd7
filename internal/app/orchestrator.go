// Package app drives tagging runs and the corpus-level commands of ptner.
//
// The Orchestrator owns the tagger capability and the per-scope state of a
// session: rendered sentences and entity reports keyed by scope (a file name
// or a caller-supplied text id), plus the report over every scope seen so far.
// State accumulates across calls until Reset is called.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chriscorrea/ptner/internal/aggregate"
	"github.com/chriscorrea/ptner/internal/corpus"
	"github.com/chriscorrea/ptner/internal/fetch"
	"github.com/chriscorrea/ptner/internal/mask"
	"github.com/chriscorrea/ptner/internal/ner"
	"github.com/chriscorrea/ptner/internal/output"
	"github.com/chriscorrea/ptner/internal/spinner"
)

// AllScopes is the scope key of the report aggregated over every scope. It
// is reserved: no file or text id may use it.
const AllScopes = "all"

// State is the lifecycle state of an Orchestrator.
type State int

const (
	// Idle means no tagger is loaded
	Idle State = iota
	// Ready means a tagger is loaded and no scope is being processed
	Ready
	// Processing means the sentences of a scope are being tagged
	Processing
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// Result holds the rendered sentences of one scope. For the plain format each
// sentence is a single rendered line; for the tabular format each sentence is
// its list of "token<SEP>tag" lines.
type Result struct {
	Scope     string
	Format    output.Format
	Sentences [][]string
}

// Lines returns one joined line per sentence.
func (r Result) Lines() []string {
	lines := make([]string, len(r.Sentences))
	for i, s := range r.Sentences {
		lines[i] = strings.Join(s, " ")
	}
	return lines
}

// Orchestrator tags scopes with an external tagger and keeps their results.
// A single mutex serializes every call.
type Orchestrator struct {
	mu       sync.Mutex
	loader   ner.Loader
	splitter ner.Splitter
	tagger   ner.Tagger
	state    State
	stderr   io.Writer

	order    []string // scopes in first-processed order
	results  map[string]Result
	entities map[string][]ner.Entity
	reports  map[string]aggregate.Report
	all      *aggregate.Report // report over every scope, nil until computed

	labels     []string
	seenLabels map[string]struct{}
}

// New creates an idle Orchestrator. loader is used by Load; a nil splitter
// treats every line of an ad-hoc text as a sentence.
func New(loader ner.Loader, splitter ner.Splitter) *Orchestrator {
	if splitter == nil {
		splitter = ner.LineSplitter
	}
	o := &Orchestrator{
		loader:   loader,
		splitter: splitter,
		stderr:   os.Stderr,
	}
	o.resetLocked()
	return o
}

// SetOutput redirects progress and summary messages (stderr by default).
func (o *Orchestrator) SetOutput(w io.Writer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stderr = w
}

// Load loads the tagger at modelPath with the configured loader.
func (o *Orchestrator) Load(modelPath string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.loader == nil {
		return fmt.Errorf("%w: no tagger loader configured", ErrNotReady)
	}
	tagger, err := o.loader(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load tagger %q: %w", modelPath, err)
	}
	o.tagger = tagger
	o.state = Ready
	slog.Debug("Tagger loaded", "model", modelPath)
	return nil
}

// UseTagger installs an already loaded tagger.
func (o *Orchestrator) UseTagger(t ner.Tagger) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tagger = t
	if t == nil {
		o.state = Idle
		return
	}
	o.state = Ready
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Reset clears every stored result, report and known label. The tagger stays loaded.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetLocked()
}

func (o *Orchestrator) resetLocked() {
	o.order = nil
	o.results = make(map[string]Result)
	o.entities = make(map[string][]ner.Entity)
	o.reports = make(map[string]aggregate.Report)
	o.all = nil
	o.labels = nil
	o.seenLabels = make(map[string]struct{})
}

// Result returns the stored rendering of a scope.
func (o *Orchestrator) Result(scope string) (Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.results[scope]
	return r, ok
}

// Report returns the entity report of a scope, or of AllScopes.
func (o *Orchestrator) Report(scope string) (aggregate.Report, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if scope == AllScopes {
		if o.all == nil {
			return aggregate.Report{}, false
		}
		return *o.all, true
	}
	r, ok := o.reports[scope]
	return r, ok
}

// Scopes lists the processed scopes in first-processed order.
func (o *Orchestrator) Scopes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.order...)
}

// KnownLabels lists the bracketed B-/I- labels seen in every prediction so far.
func (o *Orchestrator) KnownLabels() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.labels...)
}

// begin validates cfg and the tagger before any work is done.
func (o *Orchestrator) begin(cfg Config) (*mask.Masker, error) {
	if o.tagger == nil {
		return nil, fmt.Errorf("%w: no tagger loaded", ErrNotReady)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg.masker()
}

// checkScope rejects scope ids that would shadow the AllScopes report or its
// output file.
func checkScope(scope string) error {
	if scope == AllScopes || scopeFileName(scope) == scopeFileName(AllScopes) {
		return fmt.Errorf("%w: scope %q is reserved for the report over all scopes", ErrConfiguration, scope)
	}
	return nil
}

func (o *Orchestrator) summary(scope string, res Result) {
	fmt.Fprintf(o.stderr, "%s: %d sentences tagged\n", scope, len(res.Sentences))
}

// TagDirectory tags every file directly under dir whose name ends with
// cfg.FileExtension, one scope per file, in name order. Each non-blank line of
// a file is a sentence (further split when cfg.SplitSentences is set).
func (o *Orchestrator) TagDirectory(ctx context.Context, dir string, cfg Config) ([]Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	masker, err := o.begin(cfg)
	if err != nil {
		return nil, err
	}

	files, err := fetch.ListFiles(dir, cfg.FileExtension)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", corpus.ErrFileAccess, err)
	}
	for _, name := range files {
		if err := checkScope(name); err != nil {
			return nil, err
		}
	}

	var sp *spinner.Spinner
	if !cfg.Quiet {
		sp = spinner.New(ctx, o.stderr, "Tagging...")
		sp.Start()
		defer sp.Stop()
	}

	results := make([]Result, 0, len(files))
	for i, name := range files {
		if sp != nil {
			sp.Progress("Tagging", i+1, len(files), name)
		}

		c, err := corpus.LoadPlain(filepath.Join(dir, name), corpus.PlainOptions{Encoding: cfg.Encoding})
		if err != nil {
			return results, err
		}

		sentences := c.Plain()
		if cfg.SplitSentences {
			if sentences, err = o.splitAll(sentences); err != nil {
				return results, err
			}
		}

		res, err := o.tagScope(ctx, name, sentences, cfg, masker)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	if err := o.finishAllScopes(cfg); err != nil {
		return results, err
	}

	// summaries wait for the spinner goroutine to stop writing
	if sp != nil {
		sp.Stop()
		for _, res := range results {
			o.summary(res.Scope, res)
		}
	}

	slog.Debug("Tagged directory", "dir", dir, "fileCount", len(files))
	return results, nil
}

// TagText tags an ad-hoc text under scope id. The text is split into
// sentences with the orchestrator's splitter.
func (o *Orchestrator) TagText(ctx context.Context, id, text string, cfg Config) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if strings.TrimSpace(id) == "" {
		return Result{}, fmt.Errorf("%w: empty text id", ErrConfiguration)
	}
	if err := checkScope(id); err != nil {
		return Result{}, err
	}
	masker, err := o.begin(cfg)
	if err != nil {
		return Result{}, err
	}

	sentences, err := o.splitter.Split(text)
	if err != nil {
		return Result{}, fmt.Errorf("failed to split text %q: %w", id, err)
	}

	res, err := o.tagScope(ctx, id, sentences, cfg, masker)
	if err != nil {
		return Result{}, err
	}
	if err := o.finishAllScopes(cfg); err != nil {
		return res, err
	}
	if !cfg.Quiet {
		o.summary(id, res)
	}
	return res, nil
}

func (o *Orchestrator) splitAll(lines []string) ([]string, error) {
	var sentences []string
	for _, line := range lines {
		split, err := o.splitter.Split(line)
		if err != nil {
			return nil, fmt.Errorf("failed to split sentence: %w", err)
		}
		sentences = append(sentences, split...)
	}
	return sentences, nil
}

// tagScope tags the sentences of one scope and stores the outcome under scope,
// replacing any previous entry.
func (o *Orchestrator) tagScope(ctx context.Context, scope string, sentences []string, cfg Config, masker *mask.Masker) (Result, error) {
	o.state = Processing
	defer func() { o.state = Ready }()

	res := Result{Scope: scope, Format: cfg.OutputFormat}
	var entities []ner.Entity

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		pred, err := o.tagger.Predict(ctx, sentence, cfg.UseTokenizer)
		if err != nil {
			return Result{}, fmt.Errorf("tagging %q failed: %w", scope, err)
		}
		o.recordLabels(pred)

		res.Sentences = append(res.Sentences, render(pred, cfg, masker))
		if cfg.ReportEntities {
			for _, span := range pred.Spans {
				entities = append(entities, span.Entity())
			}
		}
	}

	if _, seen := o.results[scope]; !seen {
		o.order = append(o.order, scope)
	}
	o.results[scope] = res

	if cfg.ReportEntities {
		o.entities[scope] = entities
		o.reports[scope] = aggregate.Aggregate(entities)
	}

	if cfg.WriteFiles {
		if err := o.writeScope(scope, res, cfg); err != nil {
			return res, err
		}
	}

	slog.Debug("Tagged scope", "scope", scope, "sentenceCount", len(res.Sentences), "entityCount", len(entities))
	return res, nil
}

// render produces the stored form of one predicted sentence.
func render(pred ner.Prediction, cfg Config, masker *mask.Masker) []string {
	if masker != nil {
		masked := masker.Apply(pred.Tokens, pred.Spans, cfg.Separator)
		if cfg.OutputFormat == output.Tabular {
			return masked.Lines
		}
		return []string{strings.Join(masked.Tokens, " ")}
	}

	if cfg.OutputFormat == output.Tabular {
		lines := make([]string, len(pred.Tokens))
		for i, tok := range pred.Tokens {
			lines[i] = tok.Text + cfg.Separator + tok.Tag
		}
		return lines
	}
	return []string{pred.TaggedString()}
}

func (o *Orchestrator) recordLabels(pred ner.Prediction) {
	for _, l := range pred.Labels() {
		if _, ok := o.seenLabels[l]; ok {
			continue
		}
		o.seenLabels[l] = struct{}{}
		o.labels = append(o.labels, l)
	}
}

// finishAllScopes recomputes the AllScopes report from every stored scope.
func (o *Orchestrator) finishAllScopes(cfg Config) error {
	if !cfg.ReportEntities {
		return nil
	}

	var all []ner.Entity
	for _, scope := range o.order {
		all = append(all, o.entities[scope]...)
	}
	report := aggregate.Aggregate(all)
	o.all = &report

	if cfg.WriteFiles {
		path := filepath.Join(cfg.OutputDir, "ptEntities-"+scopeFileName(AllScopes))
		if err := output.WriteReport(path, report); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) writeScope(scope string, res Result, cfg Config) error {
	name := scopeFileName(scope)
	if err := output.Write(filepath.Join(cfg.OutputDir, "ptTagged-"+name), res.Format, res.Sentences, cfg.Shuffle); err != nil {
		return err
	}
	if cfg.ReportEntities {
		if err := output.WriteReport(filepath.Join(cfg.OutputDir, "ptEntities-"+name), o.reports[scope]); err != nil {
			return err
		}
	}
	return nil
}

// scopeFileName makes a scope id safe to use as a file name.
func scopeFileName(scope string) string {
	name := filepath.Base(filepath.Clean(scope))
	if filepath.Ext(name) == "" {
		name += ".txt"
	}
	return name
}
