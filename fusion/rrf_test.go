package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

func cand(id string) schema.Candidate {
	return schema.Candidate{Chunk: schema.Chunk{ID: id}}
}

func TestRRF_MergesAndDeduplicates(t *testing.T) {
	sparse := []schema.Candidate{cand("a"), cand("b"), cand("c")}
	dense := []schema.Candidate{cand("b"), cand("d")}

	fused := RRF([][]schema.Candidate{sparse, dense}, 60)

	require.Len(t, fused, 4)
	// "b" scored in both lists (rank 2 sparse, rank 1 dense) and must win.
	assert.Equal(t, "b", fused[0].Chunk.ID)
	ids := map[string]int{}
	for _, c := range fused {
		ids[c.Chunk.ID]++
	}
	for id, n := range ids {
		assert.Equalf(t, 1, n, "chunk %s appears %d times", id, n)
	}
}

func TestRRF_ScoreFormula(t *testing.T) {
	fused := RRF([][]schema.Candidate{{cand("a")}, {cand("a")}}, 60)
	require.Len(t, fused, 1)
	assert.InDelta(t, 2.0/61.0, fused[0].Score, 1e-12)
}

func TestRRF_TieBreaksByFirstAppearance(t *testing.T) {
	// Same rank in disjoint lists: identical scores, input order decides.
	fused := RRF([][]schema.Candidate{{cand("x")}, {cand("y")}}, 60)
	require.Len(t, fused, 2)
	assert.Equal(t, "x", fused[0].Chunk.ID)
	assert.Equal(t, "y", fused[1].Chunk.ID)
}

func TestRRF_Deterministic(t *testing.T) {
	lists := [][]schema.Candidate{
		{cand("a"), cand("b"), cand("c"), cand("d")},
		{cand("c"), cand("a"), cand("e")},
	}
	first := RRF(lists, 60)
	for i := 0; i < 10; i++ {
		again := RRF(lists, 60)
		assert.Equal(t, first, again)
	}
}

func TestRRF_EmptyInput(t *testing.T) {
	assert.Empty(t, RRF(nil, 60))
	assert.Empty(t, RRF([][]schema.Candidate{{}, {}}, 60))
}
