// Package output writes sentence collections and reports to disk.
//
// Files are written to a temporary file next to the target and renamed into
// place, so a failed write never leaves a partial file behind. Parent
// directories are created as needed.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnknownFormat is returned for an unrecognized output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Format defines the file layout of written sentences.
type Format int

const (
	// Plain writes one sentence per line (default)
	Plain Format = iota
	// Tabular writes one "token<SEP>tag" line per token and a blank line after each sentence
	Tabular
	// Unknown marks an unparseable format name
	Unknown
)

// String returns the canonical name of the format.
func (f Format) String() string {
	switch f {
	case Plain:
		return "plain"
	case Tabular:
		return "conll"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name. "conll", "CoNLL" and "tabular" select
// Tabular; "plain" and "Plain" select Plain.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "":
		return Plain, nil
	case "conll", "tabular":
		return Tabular, nil
	default:
		return Unknown, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	if f != Plain && f != Tabular {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Write writes sentences to path in the given format. For Tabular every inner
// slice holds the "token<SEP>tag" lines of one sentence; for Plain the inner
// slice holds the tokens of one sentence, joined with a single space. When
// shuffle is set the sentence order is randomized; the caller's slice is not
// modified. An unknown format writes nothing.
func Write(path string, format Format, sentences [][]string, shuffle bool) error {
	if format != Plain && format != Tabular {
		return fmt.Errorf("cannot write %q: %w", path, ErrUnknownFormat)
	}

	ordered := sentences
	if shuffle {
		ordered = make([][]string, len(sentences))
		copy(ordered, sentences)
		rand.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	err := writeFile(path, func(w *bufio.Writer) error {
		for _, sentence := range ordered {
			if format == Plain {
				if _, err := w.WriteString(strings.Join(sentence, " ") + "\n"); err != nil {
					return err
				}
				continue
			}
			for _, line := range sentence {
				if _, err := w.WriteString(line + "\n"); err != nil {
					return err
				}
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Debug("Wrote sentences", "path", path, "format", format.String(), "sentenceCount", len(ordered), "shuffled", shuffle)
	return nil
}

// WriteLines writes one line per entry, as Plain does for pre-joined sentences.
func WriteLines(path string, lines []string, shuffle bool) error {
	sentences := make([][]string, len(lines))
	for i, l := range lines {
		sentences[i] = []string{l}
	}
	return Write(path, Plain, sentences, shuffle)
}

// WriteReport writes a report (anything implementing io.WriterTo) to path.
func WriteReport(path string, report io.WriterTo) error {
	err := writeFile(path, func(w *bufio.Writer) error {
		_, err := report.WriteTo(w)
		return err
	})
	if err != nil {
		return err
	}
	slog.Debug("Wrote report", "path", path)
	return nil
}

// writeFile renders into a temp file in the target directory and renames it
// over path once everything was flushed.
func writeFile(path string, render func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	if err := render(w); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions on %q: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move output into %q: %w", path, err)
	}
	return nil
}
