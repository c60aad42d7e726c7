package fusion

import (
	"sort"

	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// RRF merges multiple ranked candidate lists with Reciprocal Rank Fusion.
// A chunk retrieved by several indexes accumulates 1/(k+rank) per list and
// appears once in the output. Ties break by first-appearance order across
// the input lists, which keeps the result deterministic.
func RRF(lists [][]schema.Candidate, k int) []schema.Candidate {
	if k <= 0 {
		k = 60
	}
	type agg struct {
		cand  schema.Candidate
		score float64
		order int
	}
	scores := make(map[string]*agg)
	order := 0

	for _, list := range lists {
		for rank, cand := range list {
			id := cand.Chunk.ID
			if id == "" {
				continue
			}
			a, ok := scores[id]
			if !ok {
				a = &agg{cand: cand, order: order}
				scores[id] = a
				order++
			}
			a.score += 1.0 / (float64(k) + float64(rank+1))
		}
	}

	out := make([]*agg, 0, len(scores))
	for _, a := range scores {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].order < out[j].order
	})

	fused := make([]schema.Candidate, 0, len(out))
	for _, a := range out {
		c := a.cand
		c.Score = a.score
		fused = append(fused, c)
	}
	return fused
}
