// Package aggregate builds entity frequency reports over tagged spans.
//
// A report groups (entity text, count, category) records by category and adds
// an n-gram histogram over the lengths, in words, of the distinct entities.
package aggregate

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/chriscorrea/ptner/internal/counter"
	"github.com/chriscorrea/ptner/internal/ner"
)

// EntityRecord is one distinct (text, category) pair with its occurrence count.
type EntityRecord struct {
	Text     string
	Count    int
	Category string
}

// CategoryGroup lists the records of one category.
type CategoryGroup struct {
	Category string
	Records  []EntityRecord
}

// NGram is one bucket of the n-gram histogram.
type NGram struct {
	Length int // span length in words
	Count  int // distinct entities with that length
}

// String renders the bucket as "<length>-gram: <count>".
func (n NGram) String() string {
	return fmt.Sprintf("%d-gram: %d", n.Length, n.Count)
}

// Report is the aggregated view of one scope.
type Report struct {
	Records []EntityRecord  // distinct pairs in first-seen order
	Groups  []CategoryGroup // sorted by category
	NGrams  []NGram         // sorted by length
}

// Aggregate counts entities. The count of a record is the number of entries with
// the same text, whatever their category, while every distinct (text, category)
// pair keeps its own record.
func Aggregate(entities []ner.Entity) Report {
	textCounts := make(map[string]int)
	for _, e := range entities {
		textCounts[e.Text]++
	}

	seen := make(map[ner.Entity]struct{})
	var rep Report
	for _, e := range entities {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		rep.Records = append(rep.Records, EntityRecord{Text: e.Text, Count: textCounts[e.Text], Category: e.Category})
	}

	rep.Groups = groupByCategory(rep.Records)
	rep.NGrams = ngramHistogram(rep.Records)

	slog.Debug("Aggregated entities", "entries", len(entities), "records", len(rep.Records), "categories", len(rep.Groups))
	return rep
}

// groupByCategory groups records by category; categories are sorted by name
// and records by descending count, then text.
func groupByCategory(records []EntityRecord) []CategoryGroup {
	index := make(map[string]int)
	var groups []CategoryGroup
	for _, r := range records {
		i, ok := index[r.Category]
		if !ok {
			i = len(groups)
			index[r.Category] = i
			groups = append(groups, CategoryGroup{Category: r.Category})
		}
		groups[i].Records = append(groups[i].Records, r)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Category < groups[j].Category
	})
	for _, g := range groups {
		sort.SliceStable(g.Records, func(i, j int) bool {
			if g.Records[i].Count != g.Records[j].Count {
				return g.Records[i].Count > g.Records[j].Count
			}
			return g.Records[i].Text < g.Records[j].Text
		})
	}
	return groups
}

func ngramHistogram(records []EntityRecord) []NGram {
	words := counter.WordCounter{}
	buckets := make(map[int]int)
	for _, r := range records {
		buckets[words.Count(r.Text)]++
	}

	histogram := make([]NGram, 0, len(buckets))
	for length, count := range buckets {
		histogram = append(histogram, NGram{Length: length, Count: count})
	}
	sort.Slice(histogram, func(i, j int) bool {
		return histogram[i].Length < histogram[j].Length
	})
	return histogram
}

// Histogram renders the n-gram buckets as "<length>-gram: <count>" lines.
func (r Report) Histogram() []string {
	lines := make([]string, len(r.NGrams))
	for i, n := range r.NGrams {
		lines[i] = n.String()
	}
	return lines
}

// Empty reports whether no entity was aggregated.
func (r Report) Empty() bool {
	return len(r.Records) == 0
}

// WriteTo writes the human-readable entities report:
//
//	CATEGORY:<name>
//
//	<entity-text>: <count>
//
//	-------
//	<n>-gram: <count>
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	for _, g := range r.Groups {
		fmt.Fprintf(&sb, "CATEGORY:%s\n\n", g.Category)
		for _, rec := range g.Records {
			fmt.Fprintf(&sb, "%s: %d\n", rec.Text, rec.Count)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("-------\n")
	for _, line := range r.Histogram() {
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// String returns the report as written by WriteTo.
func (r Report) String() string {
	var sb strings.Builder
	_, _ = r.WriteTo(&sb)
	return sb.String()
}
