package retriever

import (
	"context"
	"sync"
	"time"

	"github.com/SaharaSurfer/trustbit-rag-challenge/cache"
	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
	"github.com/SaharaSurfer/trustbit-rag-challenge/fusion"
	"github.com/SaharaSurfer/trustbit-rag-challenge/metrics"
	"github.com/SaharaSurfer/trustbit-rag-challenge/rerank"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// Hybrid produces the best available evidence set for one
// (question text, entity) pair: entity-scoped sparse and dense candidates,
// deduplicated, reranked, truncated to TopN.
//
// Both indexes are read-only during the query phase; a Hybrid is safe for
// concurrent use by many in-flight questions.
type Hybrid struct {
	Sparse   Index
	Dense    Index
	Reranker rerank.Reranker // nil: fall back to fusion order
	KSparse  int
	KDense   int
	TopN     int
	RRFK     int
	Cache    *cache.EvidenceCache // optional
}

// Retrieve runs the hybrid retrieval algorithm. An empty result is a
// valid outcome meaning "no evidence" and is not distinguishable from
// "entity has no indexed chunks"; callers must not infer entity absence
// from it. Index errors are fatal and propagate.
func (h *Hybrid) Retrieve(ctx context.Context, query string, entity string) (schema.Evidence, error) {
	if h.Cache != nil {
		if ev, ok := h.Cache.Get(cache.Key(entity, query)); ok {
			return ev, nil
		}
	}

	// Both backends may be I/O bound; query them in parallel.
	var (
		wg        sync.WaitGroup
		sparse    []schema.Candidate
		dense     []schema.Candidate
		sparseErr error
		denseErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		sparse, sparseErr = h.Sparse.Search(ctx, query, entity, h.KSparse)
		metrics.ObserveIndex(h.Sparse.Type(), start, len(sparse))
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		dense, denseErr = h.Dense.Search(ctx, query, entity, h.KDense)
		metrics.ObserveIndex(h.Dense.Type(), start, len(dense))
	}()
	wg.Wait()
	if sparseErr != nil {
		return nil, sparseErr
	}
	if denseErr != nil {
		return nil, denseErr
	}

	// Union in sparse-then-dense order; the reranker dedups by chunk ID
	// and breaks ties by this insertion order.
	union := make([]schema.Candidate, 0, len(sparse)+len(dense))
	union = append(union, sparse...)
	union = append(union, dense...)
	if len(union) == 0 {
		logger.Debugf("hybrid: no candidates for entity %q", entity)
		return schema.Evidence{}, nil
	}

	var ev schema.Evidence
	if h.Reranker != nil {
		reranked, err := h.Reranker.Rerank(ctx, query, union, h.TopN)
		if err != nil {
			return nil, err
		}
		ev = reranked
	} else {
		fused := fusion.RRF([][]schema.Candidate{sparse, dense}, h.RRFK)
		if h.TopN > 0 && len(fused) > h.TopN {
			fused = fused[:h.TopN]
		}
		ev = make(schema.Evidence, 0, len(fused))
		for _, c := range fused {
			ev = append(ev, schema.SearchResult{Chunk: c.Chunk, Score: c.Score})
		}
	}
	metrics.ObserveEvidence(len(ev))

	if h.Cache != nil {
		h.Cache.Set(cache.Key(entity, query), ev)
	}
	return ev, nil
}
