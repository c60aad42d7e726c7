package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

func TestParseFinalAnswer(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind schema.QuestionKind
		want schema.Value
	}{
		{
			name: "number",
			raw:  `{"final_answer": 1200.5}`,
			kind: schema.KindNumber,
			want: schema.Value{Kind: schema.KindNumber, Number: 1200.5},
		},
		{
			name: "number NA sentinel",
			raw:  `{"final_answer": "N/A"}`,
			kind: schema.KindNumber,
			want: schema.Fallback(schema.KindNumber),
		},
		{
			name: "number wrong type rejected",
			raw:  `{"final_answer": "about 1200"}`,
			kind: schema.KindNumber,
			want: schema.Fallback(schema.KindNumber),
		},
		{
			name: "boolean false is genuine, not sentinel",
			raw:  `{"final_answer": false}`,
			kind: schema.KindBoolean,
			want: schema.Value{Kind: schema.KindBoolean, Bool: false},
		},
		{
			name: "boolean NA sentinel",
			raw:  `{"final_answer": "N/A"}`,
			kind: schema.KindBoolean,
			want: schema.Fallback(schema.KindBoolean),
		},
		{
			name: "name",
			raw:  `{"final_answer": "Jane Smith"}`,
			kind: schema.KindName,
			want: schema.Value{Kind: schema.KindName, Text: "Jane Smith"},
		},
		{
			name: "names list",
			raw:  `{"final_answer": ["Jane Smith", "John Doe"]}`,
			kind: schema.KindNames,
			want: schema.Value{Kind: schema.KindNames, Names: []string{"Jane Smith", "John Doe"}},
		},
		{
			name: "empty names list is genuine",
			raw:  `{"final_answer": []}`,
			kind: schema.KindNames,
			want: schema.Value{Kind: schema.KindNames, Names: []string{}},
		},
		{
			name: "missing field",
			raw:  `{}`,
			kind: schema.KindNumber,
			want: schema.Fallback(schema.KindNumber),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFinalAnswer(tt.raw, tt.kind)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFinalAnswer_SentinelIsDistinguishable(t *testing.T) {
	genuine := parseFinalAnswer(`{"final_answer": false}`, schema.KindBoolean)
	sentinel := parseFinalAnswer(`{"final_answer": "N/A"}`, schema.KindBoolean)
	assert.False(t, genuine.IsFallback())
	assert.True(t, sentinel.IsFallback())
}

func TestAnswerSchema_ShapePerKind(t *testing.T) {
	for _, kind := range []schema.QuestionKind{
		schema.KindNumber, schema.KindName, schema.KindBoolean, schema.KindNames,
	} {
		s := answerSchema(kind)
		props, ok := s["properties"].(map[string]any)
		require.Truef(t, ok, "kind %s", kind)
		assert.Contains(t, props, "final_answer")
		assert.Contains(t, props, "step_by_step_analysis")
		assert.Contains(t, props, "relevant_pages")
		assert.Equal(t, false, s["additionalProperties"])
	}
}

func TestBuildContext_PageDelimitersAndOrder(t *testing.T) {
	e := &OpenAIExtractor{} // no budget: no tokenizer involved
	ev := schema.Evidence{
		{Chunk: schema.Chunk{PageIndex: 7, Text: "revenue table"}},
		{Chunk: schema.Chunk{PageIndex: 2, Text: "footnotes"}},
	}

	got := e.buildContext(ev)
	assert.Contains(t, got, "--- Page 7 ---\nrevenue table")
	assert.Contains(t, got, "--- Page 2 ---\nfootnotes")
	assert.Less(t, strings.Index(got, "Page 7"), strings.Index(got, "Page 2"),
		"retrieval order preserved")
}
