package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chriscorrea/ptner/internal/ner"
)

func sentence(texts []string, tags []string) []ner.Token {
	tokens := make([]ner.Token, len(texts))
	for i := range texts {
		tokens[i] = ner.Token{Index: i, Text: texts[i], Tag: tags[i]}
	}
	return tokens
}

func TestApplyContiguousCollapse(t *testing.T) {
	tokens := sentence(
		[]string{"Ontem", "Maria", "da", "Silva", "chegou"},
		[]string{"O", "B-PER", "I-PER", "I-PER", "O"},
	)
	spans := []ner.Span{{Category: "PER", Text: "Maria da Silva", Indices: []int{1, 2, 3}}}

	res := New([]string{"PER"}, "<MASK>", nil).Apply(tokens, spans, " ")

	assert.Equal(t, []string{"Ontem", "<MASK>", "chegou"}, res.Tokens)
	assert.Equal(t, []string{"Ontem O", "<MASK> B-PER", "chegou O"}, res.Lines)
	assert.Equal(t, 3, res.Masked)
}

func TestApplyRunInsideSentence(t *testing.T) {
	tokens := sentence(
		[]string{"a", "b", "c", "d", "e"},
		[]string{"O", "B-X", "I-X", "I-X", "O"},
	)
	spans := []ner.Span{{Category: "X", Indices: []int{1, 2, 3}}}

	res := New([]string{"X"}, "<m>", nil).Apply(tokens, spans, " ")
	assert.Len(t, res.Tokens, 3)
	assert.Equal(t, "<m>", res.Tokens[1])

	// a run inside a longer sentence keeps the surrounding tokens
	tokens = sentence(
		[]string{"a", "b", "c", "d", "e", "f"},
		[]string{"O", "B-X", "I-X", "I-X", "O", "O"},
	)
	res = New([]string{"X"}, "<m>", nil).Apply(tokens, spans, " ")
	assert.Equal(t, []string{"a", "<m>", "e", "f"}, res.Tokens)
}

func TestApplyLeadingRun(t *testing.T) {
	tokens := sentence(
		[]string{"João", "Silva", "chegou"},
		[]string{"B-PER", "I-PER", "O"},
	)
	spans := []ner.Span{{Category: "PER", Indices: []int{0, 1}}}

	res := New([]string{"PER"}, "<MASK>", nil).Apply(tokens, spans, " ")
	assert.Equal(t, []string{"<MASK>", "chegou"}, res.Tokens)
	assert.Equal(t, []string{"<MASK> B-PER", "chegou O"}, res.Lines)
}

func TestApplyAdjacentSpansCollapse(t *testing.T) {
	tokens := sentence(
		[]string{"Ana", "Lisboa", "fim"},
		[]string{"B-PER", "B-LOC", "O"},
	)
	spans := []ner.Span{
		{Category: "PER", Indices: []int{0}},
		{Category: "LOC", Indices: []int{1}},
	}

	res := New([]string{"PER", "LOC"}, "", nil).Apply(tokens, spans, "\t")
	assert.Equal(t, []string{DefaultPlaceholder, "fim"}, res.Tokens)
	assert.Equal(t, []string{DefaultPlaceholder + "\tB-PER", "fim\tO"}, res.Lines)
}

func TestApplyUnmaskedCategoryIsIdentity(t *testing.T) {
	texts := []string{"A", "Petrobras", "lucrou"}
	tags := []string{"O", "B-ORG", "O"}
	tokens := sentence(texts, tags)
	spans := []ner.Span{{Category: "ORG", Indices: []int{1}}}

	res := New([]string{"PER"}, "<MASK>", nil).Apply(tokens, spans, " ")
	assert.Equal(t, texts, res.Tokens)
	assert.Equal(t, []string{"A O", "Petrobras B-ORG", "lucrou O"}, res.Lines)
	assert.Zero(t, res.Masked)
}

func TestApplyNameList(t *testing.T) {
	tokens := sentence(
		[]string{"O", "JOSE", "encontrou", "joão", "e", "Ana"},
		[]string{"O", "O", "O", "O", "O", "B-PER"},
	)
	spans := []ner.Span{{Category: "PER", Indices: []int{5}}}

	res := New([]string{"PER"}, "<MASK>", []string{"Jose", "Joao"}).Apply(tokens, spans, " ")
	assert.Equal(t, []string{"O", "<MASK>", "encontrou", "<MASK>", "e", "<MASK>"}, res.Tokens)
}

func TestVariants(t *testing.T) {
	got := Variants("José")
	for _, want := range []string{"José", "josé", "JOSÉ", "Jose", "jose", "JOSE"} {
		assert.Contains(t, got, want)
	}
	assert.Len(t, got, 6)

	assert.Equal(t, []string{"x", "X"}, Variants("x"))
	assert.Equal(t, []string{""}, Variants(""))
}

func TestStripDiacritics(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"João", "Joao"},
		{"açúcar", "acucar"},
		{"Ângela", "Angela"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, StripDiacritics(tt.in))
		})
	}
}
