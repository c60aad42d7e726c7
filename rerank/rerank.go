package rerank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/SaharaSurfer/trustbit-rag-challenge/config"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// Reranker reorders a candidate set with a second-pass relevance model.
// Scores are comparable only within one rerank call; scores from
// different models or versions must never be mixed.
type Reranker interface {
	// Score rates one (query, chunk text) pair, higher is more relevant.
	Score(ctx context.Context, query, text string) (float64, error)
	// Rerank deduplicates candidates by chunk ID (a chunk found by both
	// sparse and dense search counts once), scores each unique chunk,
	// sorts by non-increasing score and truncates to topN. Ties keep the
	// original candidate insertion order (sparse before dense).
	Rerank(ctx context.Context, query string, candidates []schema.Candidate, topN int) (schema.Evidence, error)
}

// New builds the configured reranker. Provider "none" returns nil: the
// hybrid retriever then falls back to fusion order.
func New(cfg config.RerankConfig, httpCfg *config.HTTPClientConfig) (Reranker, error) {
	switch cfg.Provider {
	case "http":
		return NewCrossEncoder(cfg, httpCfg), nil
	case "keyword", "":
		return &KeywordReranker{}, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown rerank provider %q", cfg.Provider)
	}
}

// dedupe keeps the first occurrence of each chunk ID, preserving input
// order.
func dedupe(candidates []schema.Candidate) []schema.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]schema.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.Chunk.ID]; ok {
			continue
		}
		seen[c.Chunk.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// rankByScores assembles evidence from unique candidates and their
// rerank scores: stable descending sort, truncate to topN.
func rankByScores(unique []schema.Candidate, scores []float64, topN int) schema.Evidence {
	ev := make(schema.Evidence, 0, len(unique))
	for i, c := range unique {
		ev = append(ev, schema.SearchResult{Chunk: c.Chunk, Score: scores[i]})
	}
	sort.SliceStable(ev, func(i, j int) bool { return ev[i].Score > ev[j].Score })
	if topN > 0 && len(ev) > topN {
		ev = ev[:topN]
	}
	return ev
}

// KeywordReranker is the local deterministic fallback scorer: keyword
// overlap weighted by position and frequency. No network, no model, used
// when a cross-encoder service is not configured.
type KeywordReranker struct {
	// MinKeywordLength filters query words considered keywords (default 3).
	MinKeywordLength int
}

func (k *KeywordReranker) Score(_ context.Context, query, text string) (float64, error) {
	minLen := k.MinKeywordLength
	if minLen == 0 {
		minLen = 3
	}
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) > minLen {
			keywords = append(keywords, w)
		}
	}
	doc := strings.ToLower(text)
	score := 0.0
	for _, kw := range keywords {
		if !strings.Contains(doc, kw) {
			continue
		}
		score += 0.1
		if pos := strings.Index(doc, kw); pos >= 0 && pos < len(doc)/4 {
			score += 0.1
		}
		freq := float64(strings.Count(doc, kw))
		if bonus := 0.05 * freq; bonus < 0.2 {
			score += bonus
		} else {
			score += 0.2
		}
	}
	return score, nil
}

func (k *KeywordReranker) Rerank(ctx context.Context, query string, candidates []schema.Candidate, topN int) (schema.Evidence, error) {
	unique := dedupe(candidates)
	scores := make([]float64, len(unique))
	for i, c := range unique {
		s, err := k.Score(ctx, query, c.Chunk.Text)
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}
	return rankByScores(unique, scores, topN), nil
}
