// Package extract reduces HTML sources to plain prose before tagging.
//
// The main article is located with go-readability (or a CSS selector), turned
// into Markdown to keep paragraph and list boundaries, and stripped of Markdown
// syntax so only running text reaches the tagger.
package extract

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

var (
	headingRe    = regexp.MustCompile(`(?m)^\s*#{1,6}\s+`)
	bulletRe     = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	quoteRe      = regexp.MustCompile(`(?m)^\s*>\s?`)
	imageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	emphasisRe   = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_\n]+?)(\*{1,3}|_{1,3})`)
	inlineCodeRe = regexp.MustCompile("`([^`]*)`")
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
)

// ToText extracts the readable text of an HTML document.
//
// Parameters:
//   - content: HTML input
//   - selector: optional CSS selector; when set only matching elements are kept
//   - baseURL: optional document URL for readability (can be nil)
//
// Paragraphs are separated by a blank line in the result.
func ToText(content io.Reader, selector string, baseURL *url.URL) (string, error) {
	var (
		markdown string
		err      error
	)
	if selector != "" {
		markdown, err = extractWithSelector(content, selector)
	} else {
		markdown, err = extractMainContent(content, baseURL)
	}
	if err != nil {
		return "", err
	}
	return StripMarkdown(markdown), nil
}

func extractMainContent(content io.Reader, baseURL *url.URL) (string, error) {
	if baseURL == nil {
		baseURL = &url.URL{}
	}

	article, err := readability.FromReader(content, baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract main content: %w", err)
	}
	return convertToMarkdown(article.Content)
}

func extractWithSelector(content io.Reader, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	selection := doc.Find(selector)
	if selection.Length() == 0 {
		return "", fmt.Errorf("no elements found matching selector: %s", selector)
	}

	var parts []string
	selection.Each(func(_ int, s *goquery.Selection) {
		if html, err := goquery.OuterHtml(s); err == nil {
			parts = append(parts, html)
		}
	})
	return convertToMarkdown(strings.Join(parts, "\n"))
}

func convertToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// StripMarkdown removes Markdown markup while keeping the text and the
// paragraph structure.
func StripMarkdown(markdown string) string {
	text := imageRe.ReplaceAllString(markdown, "")
	text = linkRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "")
	text = quoteRe.ReplaceAllString(text, "")
	text = emphasisRe.ReplaceAllString(text, "$2")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, `\`, "")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = blankRunRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}
