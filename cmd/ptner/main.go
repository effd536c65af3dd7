package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/chriscorrea/ptner/internal/app"
	"github.com/chriscorrea/ptner/internal/counter"
	"github.com/chriscorrea/ptner/internal/ner"
	"github.com/chriscorrea/ptner/internal/output"

	"github.com/spf13/cobra"
)

// buildConfig constructs an app.Config from the config file (if any) and the
// flags that were explicitly set
func buildConfig(cmd *cobra.Command) (app.Config, error) {
	cfg := app.DefaultConfig()

	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		loaded, err := app.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	// flags override the file only when given on the command line
	flags := cmd.Flags()
	if flags.Changed("mask") {
		cfg.Mask, _ = flags.GetBool("mask")
	}
	if flags.Changed("mask-categories") {
		cfg.MaskCategories, _ = flags.GetStringSlice("mask-categories")
	}
	if flags.Changed("placeholder") {
		cfg.Placeholder, _ = flags.GetString("placeholder")
	}
	if flags.Changed("names") {
		cfg.NameList, _ = flags.GetStringSlice("names")
	}
	if flags.Changed("names-file") {
		cfg.NameListFile, _ = flags.GetString("names-file")
	}
	if flags.Changed("report") {
		cfg.ReportEntities, _ = flags.GetBool("report")
	}
	if flags.Changed("out-dir") {
		cfg.OutputDir, _ = flags.GetString("out-dir")
	}
	if flags.Changed("format") {
		name, _ := flags.GetString("format")
		format, err := output.ParseFormat(name)
		if err != nil {
			return cfg, err
		}
		cfg.OutputFormat = format
	}
	if flags.Changed("sep") {
		sep, _ := flags.GetString("sep")
		cfg.Separator = unescapeSeparator(sep)
	}
	if flags.Changed("shuffle") {
		cfg.Shuffle, _ = flags.GetBool("shuffle")
	}
	if flags.Changed("ext") {
		cfg.FileExtension, _ = flags.GetString("ext")
	}
	if flags.Changed("encoding") {
		cfg.Encoding, _ = flags.GetString("encoding")
	}
	if flags.Changed("split") {
		cfg.SplitSentences, _ = flags.GetBool("split")
	}
	if flags.Changed("no-tokenizer") {
		noTokenizer, _ := flags.GetBool("no-tokenizer")
		cfg.UseTokenizer = !noTokenizer
	}
	if flags.Changed("quiet") {
		cfg.Quiet, _ = flags.GetBool("quiet")
	}

	// an output directory means files are wanted
	cfg.WriteFiles = cfg.WriteFiles || cfg.OutputDir != ""

	return cfg, nil
}

// corpusOptions reads the flags shared by the corpus commands
func corpusOptions(cmd *cobra.Command) app.CorpusOptions {
	encoding, _ := cmd.Flags().GetString("encoding")
	sep, _ := cmd.Flags().GetString("sep")
	predicted, _ := cmd.Flags().GetBool("predicted")
	accept, _ := cmd.Flags().GetStringSlice("accept")
	unaccepted, _ := cmd.Flags().GetString("unaccepted-label")
	labels, _ := cmd.Flags().GetStringSlice("labels")
	shuffle, _ := cmd.Flags().GetBool("shuffle")

	return app.CorpusOptions{
		Encoding:        encoding,
		Separator:       unescapeSeparator(sep),
		Predicted:       predicted,
		Accept:          accept,
		UnacceptedLabel: unaccepted,
		KnownLabels:     labels,
		Shuffle:         shuffle,
	}
}

// unescapeSeparator lets "\t" be typed on the command line
func unescapeSeparator(sep string) string {
	return strings.ReplaceAll(sep, `\t`, "\t")
}

// setupLogger configures the default slog logger based on debug mode
func setupLogger(debug bool) {
	var level slog.Level
	if debug {
		level = slog.LevelDebug
	} else {
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// summaryWriter returns stderr, or nil when --quiet is set
func summaryWriter(cmd *cobra.Command) io.Writer {
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return nil
	}
	return os.Stderr
}

// newOrchestrator loads the tagger named by --model
func newOrchestrator(cmd *cobra.Command) (*app.Orchestrator, error) {
	model, _ := cmd.Flags().GetString("model")
	o := app.New(ner.LoadProse, ner.ProseSplitter{})
	if err := o.Load(model); err != nil {
		return nil, err
	}
	return o, nil
}

var rootCmd = &cobra.Command{
	Use:   "ptner",
	Short: "Prepare, tag and mask Portuguese NER corpora",
	Long: `ptner prepares Portuguese named-entity corpora: it filters entity categories,
converts between inline-tagged and tabular (CoNLL) files, tags folders or ad-hoc
text with a sequence tagger, masks entity spans and reports entity frequencies.

Examples:
  ptner tag corpus/ --out-dir tagged --format conll --report
  ptner text noticia.html --id noticia --mask --mask-categories PER
  ptner filter train.conll --accept PER,LOC --out train-per-loc.conll
  ptner stats train.conll --unit tokens`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		setupLogger(debug)
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag <folder>",
	Short: "Tag every file of a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}

		results, err := o.TagDirectory(ctx, args[0], cfg)
		if err != nil {
			return fmt.Errorf("tagging failed: %w", err)
		}

		// without an output directory the results go to stdout
		if !cfg.WriteFiles {
			for _, res := range results {
				printResult(res)
			}
			if cfg.ReportEntities {
				if rep, ok := o.Report(app.AllScopes); ok {
					fmt.Print(rep.String())
				}
			}
		}
		return nil
	},
}

var textCmd = &cobra.Command{
	Use:   "text [sources...]",
	Short: "Tag text from files, URLs or standard input",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sources := args
		if len(sources) == 0 {
			sources = []string{"-"}
		}
		selector, _ := cmd.Flags().GetString("selector")

		text, err := app.ReadSources(ctx, summaryWriter(cmd), sources, selector, cfg.Encoding)
		if err != nil {
			return err
		}

		o, err := newOrchestrator(cmd)
		if err != nil {
			return err
		}

		id, _ := cmd.Flags().GetString("id")
		res, err := o.TagText(ctx, id, text, cfg)
		if err != nil {
			return fmt.Errorf("tagging failed: %w", err)
		}

		if !cfg.WriteFiles {
			printResult(res)
			if rep, ok := o.Report(id); ok && cfg.ReportEntities {
				fmt.Print(rep.String())
			}
		}
		return nil
	},
}

func printResult(res app.Result) {
	if res.Format == output.Tabular {
		for _, s := range res.Sentences {
			fmt.Println(strings.Join(s, "\n"))
			fmt.Println()
		}
		return
	}
	for _, line := range res.Lines() {
		fmt.Println(line)
	}
}

var filterCmd = &cobra.Command{
	Use:   "filter <file>",
	Short: "Keep only acceptable categories in a tabular corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return app.FilterCorpus(summaryWriter(cmd), args[0], out, corpusOptions(cmd))
	},
}

var filterPlainCmd = &cobra.Command{
	Use:   "filter-plain <file>",
	Short: "Remove inline labels of unacceptable categories from a plain corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return app.FilterPlainCorpus(summaryWriter(cmd), args[0], out, corpusOptions(cmd))
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert an inline-tagged plain corpus to tabular",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return app.ConvertPlainToTabular(summaryWriter(cmd), args[0], out, corpusOptions(cmd))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Summarize a corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unitName, _ := cmd.Flags().GetString("unit")
		unit, err := counter.ParseCountingMethod(unitName)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		plain, _ := cmd.Flags().GetBool("plain")

		stats, err := app.CorpusStats(args[0], plain, unit, corpusOptions(cmd))
		if err != nil {
			return err
		}
		_, err = stats.WriteTo(os.Stdout)
		return err
	},
}

// addCorpusFlags registers the flags shared by the corpus commands
func addCorpusFlags(cmd *cobra.Command, withOut bool) {
	cmd.Flags().String("encoding", "utf-8", "Input encoding (e.g. utf-8, iso-8859-1)")
	cmd.Flags().String("sep", " ", `Token/tag separator ("\t" for tab)`)
	cmd.Flags().Bool("predicted", false, "Tabular input has a third predicted-tag column")
	cmd.Flags().StringSlice("accept", nil, "Acceptable categories, e.g. PER,LOC")
	if withOut {
		cmd.Flags().StringP("out", "o", "", "Output file")
		_ = cmd.MarkFlagRequired("out")
		cmd.Flags().Bool("shuffle", false, "Shuffle sentences in the output")
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress and summary messages")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "Enable debug logging")
	_ = rootCmd.PersistentFlags().MarkHidden("debug")

	// tagging flags
	for _, cmd := range []*cobra.Command{tagCmd, textCmd} {
		cmd.Flags().String("config", "", "YAML config file; explicit flags override it")
		cmd.Flags().String("model", "", "Tagger model directory (default: bundled model)")

		cmd.Flags().Bool("mask", false, "Replace entity spans with the placeholder")
		cmd.Flags().StringSlice("mask-categories", nil, "Categories to mask, e.g. PER,LOC")
		cmd.Flags().String("placeholder", "<MASK>", "Placeholder token")
		cmd.Flags().StringSlice("names", nil, "Extra names to mask, matched ignoring case and accents")
		cmd.Flags().String("names-file", "", "File with extra names to mask, one per line")

		cmd.Flags().Bool("report", false, "Report entity frequencies")
		cmd.Flags().String("out-dir", "", "Write tagged files and reports to this directory")
		cmd.Flags().String("format", "plain", "Output format: plain or conll")
		cmd.Flags().String("sep", " ", "Token/tag separator for conll output")
		cmd.Flags().Bool("shuffle", false, "Shuffle sentences in written files")
		cmd.Flags().String("encoding", "utf-8", "Input encoding")
		cmd.Flags().Bool("no-tokenizer", false, "Tokenize on whitespace only")
	}
	tagCmd.Flags().String("ext", ".txt", "Only tag files with this extension")
	tagCmd.Flags().Bool("split", false, "Split file lines into sentences")
	textCmd.Flags().String("id", "text", "Scope id of the text")
	textCmd.Flags().StringP("selector", "s", "", "CSS selector for HTML sources")

	addCorpusFlags(filterCmd, true)
	filterCmd.Flags().String("unaccepted-label", "O", "Tag written for unacceptable categories")
	_ = filterCmd.MarkFlagRequired("accept")

	addCorpusFlags(filterPlainCmd, true)
	filterPlainCmd.Flags().StringSlice("labels", nil, "Known bracketed labels (default: every label found in the file)")
	_ = filterPlainCmd.MarkFlagRequired("accept")

	addCorpusFlags(convertCmd, true)

	addCorpusFlags(statsCmd, false)
	statsCmd.Flags().Bool("plain", false, "Input is a plain corpus with inline labels")
	statsCmd.Flags().String("unit", "words", "Size unit: words, characters or tokens")

	rootCmd.AddCommand(tagCmd, textCmd, filterCmd, filterPlainCmd, convertCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
