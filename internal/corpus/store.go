package corpus

import (
	"errors"
	"log/slog"

	"github.com/chriscorrea/ptner/internal/label"
)

// ErrNoCorpus is returned by Store operations that need a loaded corpus.
var ErrNoCorpus = errors.New("no corpus loaded")

// Store holds the most recently loaded corpus and its filtered views.
// Every load replaces the previous corpus wholesale.
type Store struct {
	current       *Corpus
	filteredTags  [][]string
	filteredLines [][]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// LoadTabular loads a tabular corpus and makes it the current one.
func (s *Store) LoadTabular(path string, opts TabularOptions) (*Corpus, error) {
	c, err := LoadTabular(path, opts)
	if err != nil {
		return nil, err
	}
	s.replace(c)
	return c, nil
}

// LoadPlain loads a plain corpus and makes it the current one.
func (s *Store) LoadPlain(path string, opts PlainOptions) (*Corpus, error) {
	c, err := LoadPlain(path, opts)
	if err != nil {
		return nil, err
	}
	s.replace(c)
	return c, nil
}

func (s *Store) replace(c *Corpus) {
	s.current = c
	s.filteredTags = nil
	s.filteredLines = nil
}

// Corpus returns the current corpus, or nil before the first load.
func (s *Store) Corpus() *Corpus {
	return s.current
}

// FilterByCategories filters the current corpus, keeping tags whose category is
// acceptable and replacing the others with maskLabel. The result replaces the
// stored filtered views; the loaded corpus itself is left as loaded.
func (s *Store) FilterByCategories(acceptableCategories []string, maskLabel string) ([][]string, [][]string, error) {
	if s.current == nil {
		return nil, nil, ErrNoCorpus
	}

	tags := s.current.Tags()
	if s.current.Predicted {
		tags = s.current.Predictions()
	}
	s.filteredTags, s.filteredLines = label.FilterTabular(tags, s.current.TokenTags(), acceptableCategories, maskLabel, s.current.Separator)

	slog.Debug("Stored filtered views", "source", s.current.Source, "sentenceCount", len(s.filteredTags))
	return s.filteredTags, s.filteredLines, nil
}

// Filtered returns the views produced by the last FilterByCategories call.
func (s *Store) Filtered() ([][]string, [][]string) {
	return s.filteredTags, s.filteredLines
}
