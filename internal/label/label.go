// Package label implements category filtering over entity tag sequences.
//
// Tags optionally carry a B- (begin) or I- (inside) positional prefix; the
// prefix-free form is the tag's category. Filtering decisions are always made on
// the category, while accepted tags keep their original prefixed form.
//
// Usage Example:
//
//	tags, lines := label.FilterTabular(tags, lines, []string{"PER", "LOC"}, "O", " ")
//	// tags of any other category become "O"
package label

import (
	"log/slog"
	"strings"
)

const (
	// Outside is the tag of tokens that belong to no entity.
	Outside = "O"

	beginPrefix  = "B-"
	insidePrefix = "I-"
)

// Category strips a leading B- or I- prefix from tag.
func Category(tag string) string {
	if strings.HasPrefix(tag, beginPrefix) {
		return tag[len(beginPrefix):]
	}
	if strings.HasPrefix(tag, insidePrefix) {
		return tag[len(insidePrefix):]
	}
	return tag
}

// IsInside reports whether tag continues an entity (I- prefix).
func IsInside(tag string) bool {
	return strings.HasPrefix(tag, insidePrefix)
}

// IsBegin reports whether tag opens an entity (B- prefix).
func IsBegin(tag string) bool {
	return strings.HasPrefix(tag, beginPrefix)
}

// Set is a lookup set of categories or labels.
type Set map[string]struct{}

// NewSet builds a Set from values; surrounding angle brackets are removed so
// "<PER>" and "PER" are the same member.
func NewSet(values []string) Set {
	set := make(Set, len(values))
	for _, v := range values {
		v = Unbracket(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

// Has reports whether v is a member of the set.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Accepts reports whether tag is accepted by the set, either by its exact
// (prefixed) form or by its category.
func (s Set) Accepts(tag string) bool {
	return s.Has(tag) || s.Has(Category(tag))
}

// Bracket renders a label in the inline plain-corpus form, e.g. "<B-PER>".
func Bracket(label string) string {
	return "<" + label + ">"
}

// Unbracket removes the surrounding angle brackets of an inline label, if any.
func Unbracket(token string) string {
	if IsBracketed(token) {
		return token[1 : len(token)-1]
	}
	return token
}

// IsBracketed reports whether token has the inline label form "<LABEL>".
func IsBracketed(token string) bool {
	if len(token) < 3 || token[0] != '<' || token[len(token)-1] != '>' {
		return false
	}
	inner := token[1 : len(token)-1]
	return !strings.ContainsAny(inner, "<> \t")
}

// FilterTag returns tag when its category is acceptable and maskLabel
// otherwise. The outside tag is never replaced.
func FilterTag(tag string, acceptable Set, maskLabel string) string {
	if tag == Outside {
		return tag
	}
	if acceptable.Has(Category(tag)) {
		return tag
	}
	return maskLabel
}

// FilterTabular applies the category filter to the tag-only view and to the
// combined "token<sep>tag" view of a tabular corpus. The inputs are not modified.
//
// For combined lines the tag is the portion after the last separator, which is
// the predicted column for three-column corpora.
func FilterTabular(sentencesTags, sentencesTokenTag [][]string, acceptableCategories []string, maskLabel, sep string) ([][]string, [][]string) {
	acceptable := NewSet(acceptableCategories)

	filteredTags := make([][]string, 0, len(sentencesTags))
	replaced := 0
	for _, sentence := range sentencesTags {
		out := make([]string, len(sentence))
		for i, tag := range sentence {
			out[i] = FilterTag(tag, acceptable, maskLabel)
			if out[i] != tag {
				replaced++
			}
		}
		filteredTags = append(filteredTags, out)
	}

	filteredLines := make([][]string, 0, len(sentencesTokenTag))
	for _, sentence := range sentencesTokenTag {
		out := make([]string, len(sentence))
		for i, line := range sentence {
			head, tag := splitLast(line, sep)
			out[i] = head + sep + FilterTag(tag, acceptable, maskLabel)
		}
		filteredLines = append(filteredLines, out)
	}

	slog.Debug("Filtered tabular corpus", "sentenceCount", len(filteredTags), "replacedTags", replaced)
	return filteredTags, filteredLines
}

// splitLast splits line at the last occurrence of sep.
func splitLast(line, sep string) (string, string) {
	if sep == "" {
		return line, ""
	}
	idx := strings.LastIndex(line, sep)
	if idx < 0 {
		return line, ""
	}
	return line[:idx], line[idx+len(sep):]
}

// FilterPlainTagged removes from a space-separated tagged sentence every token
// equal to a label of allKnownLabels whose category is not acceptable.
// Matching is whole-token equality, so words that merely contain a label are
// left untouched. Runs of spaces collapse to one.
func FilterPlainTagged(taggedSentence string, allKnownLabels, acceptableCategories []string) string {
	acceptable := NewSet(acceptableCategories)
	unacceptable := make(map[string]struct{})
	for _, l := range allKnownLabels {
		if !acceptable.Accepts(Unbracket(l)) {
			unacceptable[l] = struct{}{}
		}
	}

	kept := make([]string, 0)
	for _, tok := range strings.Split(taggedSentence, " ") {
		if tok == "" {
			continue
		}
		if _, drop := unacceptable[tok]; drop {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// UniqueLabels lists the distinct labels of a corpus in first-seen order,
// skipping I- labels.
func UniqueLabels(sentencesTags [][]string) []string {
	seen := make(map[string]struct{})
	var unique []string
	for _, sentence := range sentencesTags {
		for _, tag := range sentence {
			if IsInside(tag) {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			unique = append(unique, tag)
		}
	}
	return unique
}
