package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaharaSurfer/trustbit-rag-challenge/extract"
	"github.com/SaharaSurfer/trustbit-rag-challenge/retriever"
	"github.com/SaharaSurfer/trustbit-rag-challenge/router"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// entityIndex serves fixed candidates per entity.
type entityIndex struct {
	typ    string
	cands  map[string][]schema.Candidate
	err    error
	failOn string // entity whose search returns err
}

func (s *entityIndex) Type() string { return s.typ }

func (s *entityIndex) Search(_ context.Context, _ string, entity string, _ int) ([]schema.Candidate, error) {
	if s.err != nil && (s.failOn == "" || s.failOn == entity) {
		return nil, s.err
	}
	return s.cands[entity], nil
}

// scriptedExtractor answers from a per-entity script keyed by the entity
// of the first evidence chunk.
type scriptedExtractor struct {
	mu      sync.Mutex
	answers map[string]schema.SubAnswer
	delays  map[string]time.Duration
	calls   []string
}

func (f *scriptedExtractor) Extract(ctx context.Context, _ string, evidence schema.Evidence, kind schema.QuestionKind) (*schema.SubAnswer, error) {
	entity := evidence[0].Chunk.Entity
	f.mu.Lock()
	f.calls = append(f.calls, entity)
	delay := f.delays[entity]
	sub, ok := f.answers[entity]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, extract.ErrExtraction
		}
	}
	if ctx.Err() != nil {
		return nil, extract.ErrExtraction
	}
	if !ok {
		return nil, extract.ErrExtraction
	}
	sub.Value.Kind = kind
	sub.Evidence = evidence
	return &sub, nil
}

func (f *scriptedExtractor) called(entity string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == entity {
			return true
		}
	}
	return false
}

func evidenceChunk(entity string, page int) schema.Candidate {
	return schema.Candidate{
		Chunk:  schema.Chunk{ID: entity + "-p" + string(rune('0'+page)), Entity: entity, PageIndex: page, Text: "text"},
		Score:  1,
		Source: schema.SourceSparse,
	}
}

func newTestOrchestrator(ex extract.Extractor, sparse *entityIndex) *Orchestrator {
	reg := router.NewRegistry()
	reg.Add("Acme Corp", "aaa111")
	reg.Add("Globex Inc", "bbb222")
	return &Orchestrator{
		Router:    &router.Router{Registry: reg},
		Retriever: &retriever.Hybrid{Sparse: sparse, Dense: &entityIndex{typ: "dense"}, KSparse: 10, KDense: 10, TopN: 5, RRFK: 60},
		Extractor: ex,
		Registry:  reg,
	}
}

func TestAnswer_SingleHappyPath(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]schema.SubAnswer{
		"Acme Corp": {Value: schema.Value{Number: 1200}, RelevantPages: []int{3}},
	}}
	sparse := &entityIndex{typ: "sparse", cands: map[string][]schema.Candidate{
		"Acme Corp": {evidenceChunk("Acme Corp", 3)},
	}}
	o := newTestOrchestrator(ex, sparse)

	ans, err := o.Answer(context.Background(), schema.Question{
		Text: "What was the total revenue of Acme Corp?", Kind: schema.KindNumber,
	})
	require.NoError(t, err)
	assert.False(t, ans.Value.IsFallback())
	assert.Equal(t, 1200.0, ans.Value.Number)
	require.Len(t, ans.References, 1)
	assert.Equal(t, schema.SourceReference{PDFSHA1: "aaa111", PageIndex: 3}, ans.References[0])
}

func TestAnswer_EmptyEvidenceYieldsSentinel(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]schema.SubAnswer{}}
	sparse := &entityIndex{typ: "sparse"}
	o := newTestOrchestrator(ex, sparse)

	ans, err := o.Answer(context.Background(), schema.Question{
		Text: "What was the total revenue of Acme Corp?", Kind: schema.KindNumber,
	})
	require.NoError(t, err)
	assert.True(t, ans.Value.IsFallback())
	assert.Empty(t, ans.References)
	assert.Empty(t, ex.calls, "extractor must not run without evidence")
}

func TestAnswer_RejectsUnsupportedPageClaims(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]schema.SubAnswer{
		"Acme Corp": {Value: schema.Value{Number: 42}, RelevantPages: []int{9}},
	}}
	sparse := &entityIndex{typ: "sparse", cands: map[string][]schema.Candidate{
		"Acme Corp": {evidenceChunk("Acme Corp", 3)},
	}}
	o := newTestOrchestrator(ex, sparse)

	ans, err := o.Answer(context.Background(), schema.Question{
		Text: "What was the headcount of Acme Corp?", Kind: schema.KindNumber,
	})
	require.NoError(t, err)
	assert.True(t, ans.Value.IsFallback())
	assert.Empty(t, ans.References)
}

func TestValidate_Idempotent(t *testing.T) {
	o := newTestOrchestrator(nil, nil)
	sub := &schema.SubAnswer{
		Entity:        "Acme Corp",
		Value:         schema.Value{Kind: schema.KindNumber, Number: 7},
		RelevantPages: []int{5, 3, 3},
		Evidence: schema.Evidence{
			{Chunk: schema.Chunk{ID: "1", PageIndex: 3}},
			{Chunk: schema.Chunk{ID: "2", PageIndex: 5}},
		},
	}

	o.validate(sub)
	once := *sub
	oncePages := append([]int(nil), sub.RelevantPages...)
	o.validate(sub)
	assert.Equal(t, once.Value, sub.Value)
	assert.Equal(t, oncePages, sub.RelevantPages)
	assert.Equal(t, []int{3, 5}, sub.RelevantPages)
}

func TestValidate_NegativeAnswerKeepsValueDropsPages(t *testing.T) {
	o := newTestOrchestrator(nil, nil)
	sub := &schema.SubAnswer{
		Value:         schema.Value{Kind: schema.KindBoolean, Bool: false},
		RelevantPages: []int{4},
		Evidence:      schema.Evidence{{Chunk: schema.Chunk{ID: "1", PageIndex: 4}}},
	}

	o.validate(sub)
	assert.False(t, sub.Value.IsFallback())
	assert.False(t, sub.Value.Bool)
	assert.Empty(t, sub.RelevantPages)
}

func TestAnswer_ComparativeKindSingleEntityKeepsValue(t *testing.T) {
	// A comparative question naming only one known company routes to the
	// single pipeline; its extraction claims no pages and must not be
	// rejected for that.
	ex := &scriptedExtractor{answers: map[string]schema.SubAnswer{
		"Acme Corp": {Value: schema.Value{Text: "Acme Corp"}},
	}}
	sparse := &entityIndex{typ: "sparse", cands: map[string][]schema.Candidate{
		"Acme Corp": {evidenceChunk("Acme Corp", 3)},
	}}
	o := newTestOrchestrator(ex, sparse)

	ans, err := o.Answer(context.Background(), schema.Question{
		Text: "Which company had higher revenue, Acme Corp or Hooli?",
		Kind: schema.KindComparative,
	})
	require.NoError(t, err)
	assert.False(t, ans.Value.IsFallback())
	assert.Equal(t, "Acme Corp", ans.Value.Text)
	assert.Empty(t, ans.References)
}

func TestAnswer_ComparativePicksHigher(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]schema.SubAnswer{
		"Acme Corp":  {Value: schema.Value{Number: 1200}, RelevantPages: []int{3}},
		"Globex Inc": {Value: schema.Value{Number: 900}, RelevantPages: []int{5}},
	}}
	sparse := &entityIndex{typ: "sparse", cands: map[string][]schema.Candidate{
		"Acme Corp":  {evidenceChunk("Acme Corp", 3)},
		"Globex Inc": {evidenceChunk("Globex Inc", 5)},
	}}
	o := newTestOrchestrator(ex, sparse)

	ans, err := o.Answer(context.Background(), schema.Question{
		Text: "Which company had higher revenue, Acme Corp or Globex Inc?",
		Kind: schema.KindComparative,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", ans.Value.Text)
	assert.Len(t, ans.References, 2)
}

func TestAnswer_ComparativePicksLowerOnLowIntent(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]schema.SubAnswer{
		"Acme Corp":  {Value: schema.Value{Number: 1200}, RelevantPages: []int{3}},
		"Globex Inc": {Value: schema.Value{Number: 900}, RelevantPages: []int{5}},
	}}
	sparse := &entityIndex{typ: "sparse", cands: map[string][]schema.Candidate{
		"Acme Corp":  {evidenceChunk("Acme Corp", 3)},
		"Globex Inc": {evidenceChunk("Globex Inc", 5)},
	}}
	o := newTestOrchestrator(ex, sparse)

	ans, err := o.Answer(context.Background(), schema.Question{
		Text: "Which company had the lowest operating costs, Acme Corp or Globex Inc?",
		Kind: schema.KindComparative,
	})
	require.NoError(t, err)
	assert.Equal(t, "Globex Inc", ans.Value.Text)
}

func TestAnswer_ComparativeMissingOperandFallsBack(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]schema.SubAnswer{
		"Acme Corp": {Value: schema.Value{Number: 1200}, RelevantPages: []int{3}},
		// Globex Inc has no script: its extraction fails.
	}}
	sparse := &entityIndex{typ: "sparse", cands: map[string][]schema.Candidate{
		"Acme Corp":  {evidenceChunk("Acme Corp", 3)},
		"Globex Inc": {evidenceChunk("Globex Inc", 5)},
	}}
	o := newTestOrchestrator(ex, sparse)

	ans, err := o.Answer(context.Background(), schema.Question{
		Text: "Which company had higher revenue, Acme Corp or Globex Inc?",
		Kind: schema.KindComparative,
	})
	require.NoError(t, err)
	assert.True(t, ans.Value.IsFallback())
	assert.Empty(t, ans.References)
}

func TestAnswerComparative_PartialOperandsPreservedPerEntity(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]schema.SubAnswer{
		"Acme Corp": {Value: schema.Value{Number: 100}, RelevantPages: []int{3}},
	}}
	sparse := &entityIndex{typ: "sparse", cands: map[string][]schema.Candidate{
		"Acme Corp": {evidenceChunk("Acme Corp", 3)},
		// Globex Inc has no indexed chunks: empty evidence, sentinel.
	}}
	o := newTestOrchestrator(ex, sparse)

	q := schema.Question{
		Text: "Which company had higher revenue, Acme Corp or Globex Inc?",
		Kind: schema.KindComparative,
	}
	plan, err := o.Router.Plan(context.Background(), q)
	require.NoError(t, err)
	agg, err := o.answerComparative(context.Background(), q, plan)
	require.NoError(t, err)

	assert.Equal(t, 100.0, agg.PerEntity["Acme Corp"].Value.Number)
	assert.False(t, agg.PerEntity["Acme Corp"].Value.IsFallback())
	assert.True(t, agg.PerEntity["Globex Inc"].Value.IsFallback())
	assert.True(t, agg.Comparison.IsFallback())
	assert.Empty(t, agg.References)
}

func TestAnswer_SlowSubqueryDoesNotAbortSiblings(t *testing.T) {
	ex := &scriptedExtractor{
		answers: map[string]schema.SubAnswer{
			"Acme Corp":  {Value: schema.Value{Number: 1200}, RelevantPages: []int{3}},
			"Globex Inc": {Value: schema.Value{Number: 900}, RelevantPages: []int{5}},
		},
		delays: map[string]time.Duration{"Acme Corp": 200 * time.Millisecond},
	}
	sparse := &entityIndex{typ: "sparse", cands: map[string][]schema.Candidate{
		"Acme Corp":  {evidenceChunk("Acme Corp", 3)},
		"Globex Inc": {evidenceChunk("Globex Inc", 5)},
	}}
	o := newTestOrchestrator(ex, sparse)
	o.SubqueryTimeout = 30 * time.Millisecond

	ans, err := o.Answer(context.Background(), schema.Question{
		Text: "Which company had higher revenue, Acme Corp or Globex Inc?",
		Kind: schema.KindComparative,
	})
	require.NoError(t, err)
	// The slow operand degrades, so the comparison falls back, but the
	// sibling must have been answered rather than cancelled.
	assert.True(t, ans.Value.IsFallback())
	assert.True(t, ex.called("Globex Inc"))
}

func TestAnswer_IndexUnavailableIsFatal(t *testing.T) {
	ex := &scriptedExtractor{}
	sparse := &entityIndex{typ: "sparse", err: retriever.ErrIndexUnavailable}
	o := newTestOrchestrator(ex, sparse)

	_, err := o.Answer(context.Background(), schema.Question{
		Text: "What was the total revenue of Acme Corp?", Kind: schema.KindNumber,
	})
	require.ErrorIs(t, err, retriever.ErrIndexUnavailable)
}

func TestAnswerAll_PerQuestionFailureDegrades(t *testing.T) {
	ex := &scriptedExtractor{answers: map[string]schema.SubAnswer{
		"Acme Corp": {Value: schema.Value{Number: 1200}, RelevantPages: []int{3}},
	}}
	sparse := &entityIndex{typ: "sparse", cands: map[string][]schema.Candidate{
		"Acme Corp": {evidenceChunk("Acme Corp", 3)},
	}}
	o := newTestOrchestrator(ex, sparse)

	questions := []schema.Question{
		{Text: "What was the total revenue of Acme Corp?", Kind: schema.KindNumber},
		{Text: "What was the total revenue of Hooli?", Kind: schema.KindNumber},
	}
	answers, err := o.AnswerAll(context.Background(), questions)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.False(t, answers[0].Value.IsFallback())
	// Unresolvable entity degrades to the sentinel instead of failing the batch.
	assert.True(t, answers[1].Value.IsFallback())
	assert.Equal(t, questions[1].Text, answers[1].QuestionText)
}

func TestAnswerAll_IndexUnavailableAbortsBatch(t *testing.T) {
	ex := &scriptedExtractor{}
	sparse := &entityIndex{typ: "sparse", err: retriever.ErrIndexUnavailable}
	o := newTestOrchestrator(ex, sparse)

	_, err := o.AnswerAll(context.Background(), []schema.Question{
		{Text: "What was the total revenue of Acme Corp?", Kind: schema.KindNumber},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, retriever.ErrIndexUnavailable))
}
