// Package mask replaces named-entity spans of selected categories with a
// placeholder token.
//
// A contiguous run of masked tokens collapses into a single placeholder, so
// "Maria da Silva chegou" becomes "<MASK> chegou" when the person span is masked.
// Tokens may also be masked through an auxiliary name list matched regardless of
// case and diacritics.
package mask

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/chriscorrea/ptner/internal/label"
	"github.com/chriscorrea/ptner/internal/ner"
)

// DefaultPlaceholder is the token that replaces a masked run.
const DefaultPlaceholder = "<MASK>"

// Masker holds the masking parameters shared by every sentence of a run.
type Masker struct {
	categories  label.Set
	placeholder string
	names       map[string]struct{}
}

// New creates a Masker for the given categories. An empty placeholder selects
// DefaultPlaceholder; names is the optional auxiliary name list.
func New(categories []string, placeholder string, names []string) *Masker {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	m := &Masker{
		categories:  label.NewSet(categories),
		placeholder: placeholder,
	}
	if len(names) > 0 {
		m.names = make(map[string]struct{}, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				m.names[n] = struct{}{}
			}
		}
	}
	return m
}

// Placeholder returns the replacement token.
func (m *Masker) Placeholder() string {
	return m.placeholder
}

// Result is the masked form of one sentence.
type Result struct {
	Tokens []string // masked token sequence
	Lines  []string // masked "token<sep>tag" sequence
	Masked int      // number of underlying tokens replaced
}

// Plan returns the set of token indices to replace: members of every span of a
// masked category, plus every token matching the name list.
func (m *Masker) Plan(tokens []ner.Token, spans []ner.Span) map[int]struct{} {
	plan := make(map[int]struct{})
	for _, span := range spans {
		if !m.categories.Has(span.Category) {
			continue
		}
		for _, idx := range span.Indices {
			plan[idx] = struct{}{}
		}
	}

	if len(m.names) > 0 {
		for _, tok := range tokens {
			if m.matchesName(tok.Text) {
				plan[tok.Index] = struct{}{}
			}
		}
	}
	return plan
}

func (m *Masker) matchesName(text string) bool {
	for _, v := range Variants(text) {
		if _, ok := m.names[v]; ok {
			return true
		}
	}
	return false
}

// Apply masks one sentence. The tag attached to a placeholder is the tag of
// the token at which the placeholder was emitted, i.e. the first token of the
// run. A sentence without masked tokens comes back unchanged.
func (m *Masker) Apply(tokens []ner.Token, spans []ner.Span, sep string) Result {
	plan := m.Plan(tokens, spans)

	res := Result{
		Tokens: make([]string, 0, len(tokens)),
		Lines:  make([]string, 0, len(tokens)),
	}
	for _, tok := range tokens {
		if _, masked := plan[tok.Index]; !masked {
			res.Tokens = append(res.Tokens, tok.Text)
			res.Lines = append(res.Lines, tok.Text+sep+tok.Tag)
			continue
		}

		res.Masked++
		if n := len(res.Tokens); n > 0 && res.Tokens[n-1] == m.placeholder {
			continue
		}
		res.Tokens = append(res.Tokens, m.placeholder)
		res.Lines = append(res.Lines, m.placeholder+sep+tok.Tag)
	}

	slog.Debug("Masked sentence", "tokens", len(tokens), "masked", res.Masked, "output", len(res.Tokens))
	return res
}

// Variants returns the case and diacritic variants a token is matched under:
// the original, lower, upper and capitalized forms, followed by the same four
// forms with diacritics stripped. Duplicates are removed, order is kept.
func Variants(token string) []string {
	stripped := StripDiacritics(token)
	candidates := []string{
		token,
		strings.ToLower(token),
		strings.ToUpper(token),
		capitalize(token),
		stripped,
		strings.ToLower(stripped),
		strings.ToUpper(stripped),
		capitalize(stripped),
	}

	seen := make(map[string]struct{}, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		variants = append(variants, c)
	}
	return variants
}

// StripDiacritics removes combining marks after canonical decomposition,
// so "João" becomes "Joao".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
