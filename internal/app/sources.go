package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/chriscorrea/ptner/internal/corpus"
	"github.com/chriscorrea/ptner/internal/extract"
	"github.com/chriscorrea/ptner/internal/fetch"
)

// ReadSources reads every ad-hoc source (file, URL or "-" for stdin) and joins
// their text with blank lines. HTML sources are reduced to their main text, or
// to the elements matching selector when it is set. A failing source is
// reported to w and skipped; it is an error only when nothing could be read.
func ReadSources(ctx context.Context, w io.Writer, sources []string, selector, encoding string) (string, error) {
	if len(sources) == 0 {
		return "", fmt.Errorf("%w: no sources provided", ErrConfiguration)
	}

	var combined strings.Builder
	for _, source := range sources {
		text, err := readSource(ctx, source, selector, encoding)
		if err != nil {
			if w != nil {
				fmt.Fprintf(w, "Warning: failed to read source %q: %v\n", source, err)
			}
			continue
		}
		if combined.Len() > 0 {
			combined.WriteString("\n\n")
		}
		combined.WriteString(text)
	}

	if combined.Len() == 0 {
		return "", fmt.Errorf("%w: no text read from any source", corpus.ErrFileAccess)
	}
	return combined.String(), nil
}

func readSource(ctx context.Context, source, selector, encoding string) (string, error) {
	content, err := fetch.GetContent(ctx, source)
	if err != nil {
		return "", fmt.Errorf("failed to fetch content: %w", err)
	}
	defer content.Close()

	if content.HTML {
		var baseURL *url.URL
		if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
			baseURL, _ = url.Parse(source)
		}
		text, err := extract.ToText(content, selector, baseURL)
		if err != nil {
			return "", fmt.Errorf("failed to extract text: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("no text extracted")
		}
		return text, nil
	}

	var r io.Reader = content
	if encoding != "" && !strings.EqualFold(encoding, corpus.DefaultEncoding) {
		enc, err := htmlindex.Get(encoding)
		if err != nil {
			return "", fmt.Errorf("unsupported encoding %q: %w", encoding, err)
		}
		r = enc.NewDecoder().Reader(content)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text read")
	}
	return text, nil
}
