package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chriscorrea/ptner/internal/corpus"
	"github.com/chriscorrea/ptner/internal/mask"
	"github.com/chriscorrea/ptner/internal/output"
)

var (
	// ErrNotReady is returned when tagging is requested before a tagger is
	// loaded, or masking is requested without its parameters.
	ErrNotReady = errors.New("not ready")
	// ErrConfiguration is returned for an invalid configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Config holds the options of a tagging run. Zero values are not meaningful
// defaults; start from DefaultConfig.
type Config struct {
	Mask           bool     `yaml:"mask"`            // replace entity spans with Placeholder
	MaskCategories []string `yaml:"mask_categories"` // categories to mask, e.g. PER, LOC
	Placeholder    string   `yaml:"placeholder"`     // default "<MASK>"
	NameList       []string `yaml:"names"`           // auxiliary names, matched ignoring case and diacritics
	NameListFile   string   `yaml:"names_file"`      // one name per line, appended to NameList

	ReportEntities bool `yaml:"report_entities"` // aggregate entity frequencies per scope

	WriteFiles    bool          `yaml:"write_files"`    // write rendered sentences and reports
	OutputDir     string        `yaml:"output_dir"`     // required with WriteFiles
	OutputFormat  output.Format `yaml:"output_format"`  // plain (default) or conll
	Separator     string        `yaml:"separator"`      // token/tag separator, default " "
	Shuffle       bool          `yaml:"shuffle"`        // shuffle sentences in written files
	FileExtension string        `yaml:"file_extension"` // folder scan filter, default ".txt"
	Encoding      string        `yaml:"encoding"`       // input encoding, default utf-8

	SplitSentences bool `yaml:"split_sentences"` // split folder file lines with the sentence splitter
	UseTokenizer   bool `yaml:"use_tokenizer"`   // let the tagger tokenize, default true
	Quiet          bool `yaml:"quiet"`           // suppress progress and summaries
}

// DefaultConfig returns a Config with documented defaults.
func DefaultConfig() Config {
	return Config{
		Placeholder:   mask.DefaultPlaceholder,
		OutputFormat:  output.Plain,
		Separator:     corpus.DefaultSeparator,
		FileExtension: ".txt",
		Encoding:      corpus.DefaultEncoding,
		UseTokenizer:  true,
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: %q: %w", corpus.ErrFileAccess, path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: invalid config file %q: %w", ErrConfiguration, path, err)
	}
	return cfg, nil
}

// Validate checks the configuration once, before any work is done.
func (c Config) Validate() error {
	if c.Mask {
		if len(c.MaskCategories) == 0 && len(c.NameList) == 0 && c.NameListFile == "" {
			return fmt.Errorf("%w: masking requires mask categories or a name list", ErrNotReady)
		}
		if strings.TrimSpace(c.Placeholder) == "" {
			return fmt.Errorf("%w: masking requires a placeholder token", ErrNotReady)
		}
	}
	if c.OutputFormat != output.Plain && c.OutputFormat != output.Tabular {
		return fmt.Errorf("%w: %w", ErrConfiguration, output.ErrUnknownFormat)
	}
	if c.Separator == "" {
		return fmt.Errorf("%w: empty token/tag separator", ErrConfiguration)
	}
	if c.WriteFiles && strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("%w: writing files requires an output directory", ErrConfiguration)
	}
	return nil
}

// names returns NameList plus the lines of NameListFile.
func (c Config) names() ([]string, error) {
	names := append([]string(nil), c.NameList...)
	if c.NameListFile == "" {
		return names, nil
	}

	list, err := corpus.LoadPlain(c.NameListFile, corpus.PlainOptions{Encoding: c.Encoding})
	if err != nil {
		return nil, fmt.Errorf("failed to load name list: %w", err)
	}
	return append(names, list.Plain()...), nil
}

// masker builds the span masker, or nil when masking is off.
func (c Config) masker() (*mask.Masker, error) {
	if !c.Mask {
		return nil, nil
	}
	names, err := c.names()
	if err != nil {
		return nil, err
	}
	return mask.New(c.MaskCategories, c.Placeholder, names), nil
}
