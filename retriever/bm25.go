package retriever

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// BM25Index is the sparse keyword index. It is built once as a pure
// function of the chunk corpus and never mutated afterwards; a corpus
// change requires a rebuild. Each entity gets its own sub-index so that
// document frequencies and length normalization reflect only that
// entity's report.
type BM25Index struct {
	byEntity map[string]*entityIndex
}

type entityIndex struct {
	chunks   []schema.Chunk
	lengths  []int
	avgLen   float64
	postings map[string][]posting // term -> chunk occurrences
}

type posting struct {
	chunkIdx int
	freq     int
}

// NewBM25Index builds the index from the full corpus.
func NewBM25Index(chunks []schema.Chunk) *BM25Index {
	idx := &BM25Index{byEntity: make(map[string]*entityIndex)}
	for _, c := range chunks {
		ei := idx.byEntity[c.Entity]
		if ei == nil {
			ei = &entityIndex{postings: make(map[string][]posting)}
			idx.byEntity[c.Entity] = ei
		}
		terms := tokenize(c.Text)
		chunkIdx := len(ei.chunks)
		ei.chunks = append(ei.chunks, c)
		ei.lengths = append(ei.lengths, len(terms))

		counts := make(map[string]int, len(terms))
		for _, t := range terms {
			counts[t]++
		}
		for t, n := range counts {
			ei.postings[t] = append(ei.postings[t], posting{chunkIdx: chunkIdx, freq: n})
		}
	}
	for _, ei := range idx.byEntity {
		total := 0
		for _, l := range ei.lengths {
			total += l
		}
		if len(ei.lengths) > 0 {
			ei.avgLen = float64(total) / float64(len(ei.lengths))
		}
	}
	return idx
}

func (b *BM25Index) Type() string { return "sparse" }

// Search ranks the entity's chunks by BM25 score. Deterministic for a
// fixed query and corpus: ties break by chunk ordinal. An empty query or
// k <= 0 yields an empty result, not an error.
func (b *BM25Index) Search(_ context.Context, query string, entity string, k int) ([]schema.Candidate, error) {
	terms := tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return []schema.Candidate{}, nil
	}
	ei := b.byEntity[entity]
	if ei == nil || len(ei.chunks) == 0 {
		return []schema.Candidate{}, nil
	}

	n := float64(len(ei.chunks))
	scores := make(map[int]float64)
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		plist := ei.postings[t]
		if len(plist) == 0 {
			continue
		}
		idf := math.Log(1 + (n-float64(len(plist))+0.5)/(float64(len(plist))+0.5))
		for _, p := range plist {
			tf := float64(p.freq)
			norm := tf + bm25K1*(1-bm25B+bm25B*float64(ei.lengths[p.chunkIdx])/ei.avgLen)
			scores[p.chunkIdx] += idf * tf * (bm25K1 + 1) / norm
		}
	}
	if len(scores) == 0 {
		return []schema.Candidate{}, nil
	}

	matched := make([]int, 0, len(scores))
	for i := range scores {
		matched = append(matched, i)
	}
	sort.Slice(matched, func(i, j int) bool {
		si, sj := scores[matched[i]], scores[matched[j]]
		if si != sj {
			return si > sj
		}
		return ei.chunks[matched[i]].Ordinal < ei.chunks[matched[j]].Ordinal
	})
	if len(matched) > k {
		matched = matched[:k]
	}

	out := make([]schema.Candidate, 0, len(matched))
	for _, i := range matched {
		out = append(out, schema.Candidate{
			Chunk:  ei.chunks[i],
			Score:  scores[i],
			Source: schema.SourceSparse,
		})
	}
	return out, nil
}

// tokenize lowercases and splits on anything that is not a letter or
// digit. Intentionally simple: financial report text is English prose and
// tables, and determinism matters more than linguistic finesse here.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
