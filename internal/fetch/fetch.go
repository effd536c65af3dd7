// Package fetch resolves the inputs of a tagging run: the files of a corpus
// folder, and the ad-hoc sources (local files, URLs or standard input) whose
// text is tagged directly.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Size limits for ad-hoc sources.
const (
	MaxFileSizeBytes = 50 * 1024 * 1024
	MaxHTTPSizeBytes = 100 * 1024 * 1024
)

// HTTPRequestTimeout bounds a whole URL fetch.
const HTTPRequestTimeout = 30 * time.Second

var httpClient = &http.Client{
	Timeout: HTTPRequestTimeout,
	Transport: &http.Transport{
		DialContext:           (&net.Dialer{Timeout: HTTPRequestTimeout / 6}).DialContext,
		TLSHandshakeTimeout:   HTTPRequestTimeout / 6,
		ResponseHeaderTimeout: HTTPRequestTimeout / 2,
		DisableKeepAlives:     true,
	},
}

// limitedReadCloser fails reads once N bytes were consumed.
type limitedReadCloser struct {
	io.ReadCloser
	N      int64
	source string
}

func (l *limitedReadCloser) Read(p []byte) (n int, err error) {
	if l.N <= 0 {
		return 0, fmt.Errorf("content from %q exceeds size limit", l.source)
	}
	if int64(len(p)) > l.N {
		p = p[0:l.N]
	}
	n, err = l.ReadCloser.Read(p)
	l.N -= int64(n)
	return
}

// Content is an opened ad-hoc source.
type Content struct {
	io.ReadCloser
	Name string // file base name, URL or "stdin"
	HTML bool   // content should go through HTML extraction
}

// GetContent opens a source:
//   - "-" reads from standard input
//   - URLs starting with "http://" or "https://" are fetched via HTTP
//   - everything else is treated as a local file path
func GetContent(ctx context.Context, source string) (*Content, error) {
	switch {
	case source == "-":
		return &Content{
			ReadCloser: &limitedReadCloser{ReadCloser: os.Stdin, N: MaxFileSizeBytes, source: "stdin"},
			Name:       "stdin",
		}, nil
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return fetchURL(ctx, source)
	default:
		return fetchFile(source)
	}
}

func fetchURL(ctx context.Context, url string) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %q: %w", url, err)
	}
	req.Header.Set("User-Agent", "ptner/0.1")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %q: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request failed for URL %q: status %s", url, resp.Status)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size > MaxHTTPSizeBytes {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP content too large (%d bytes > %d bytes limit)", size, MaxHTTPSizeBytes)
		}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	slog.Debug("Fetched URL", "url", url, "contentType", mediaType)

	return &Content{
		ReadCloser: &limitedReadCloser{ReadCloser: resp.Body, N: MaxHTTPSizeBytes, source: url},
		Name:       url,
		HTML:       mediaType == "text/html" || mediaType == "application/xhtml+xml",
	}, nil
}

func fetchFile(path string) (*Content, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file %q does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access file %q: %w", path, err)
	}
	if info.Size() > MaxFileSizeBytes {
		return nil, fmt.Errorf("file %q is too large (%d bytes > %d bytes limit)", path, info.Size(), MaxFileSizeBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	return &Content{
		ReadCloser: f,
		Name:       filepath.Base(path),
		HTML:       ext == ".html" || ext == ".htm" || ext == ".xhtml",
	}, nil
}

// ListFiles returns the names of the regular files directly under dir whose
// name ends with ext, sorted. Subdirectories are not descended into.
func ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %q: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ext != "" && !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	slog.Debug("Listed corpus folder", "dir", dir, "extension", ext, "fileCount", len(names))
	return names, nil
}
