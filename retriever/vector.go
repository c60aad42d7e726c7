package retriever

import (
	"context"
	"fmt"

	"github.com/SaharaSurfer/trustbit-rag-challenge/embedding"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
	"github.com/SaharaSurfer/trustbit-rag-challenge/vectordb"
)

// DenseIndex implements Index over an embedding provider and a vector
// store. The query is embedded with the same model that built the store;
// see the invariant on embedding.Provider.
type DenseIndex struct {
	Embed embedding.Provider
	Store vectordb.Store
}

func (d *DenseIndex) Type() string { return "dense" }

func (d *DenseIndex) Search(ctx context.Context, query string, entity string, k int) ([]schema.Candidate, error) {
	if query == "" || k <= 0 {
		return []schema.Candidate{}, nil
	}
	vec, err := d.Embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrIndexUnavailable, err)
	}
	results, err := d.Store.Search(ctx, vec, entity, k)
	if err != nil {
		return nil, fmt.Errorf("%w: dense search: %v", ErrIndexUnavailable, err)
	}
	out := make([]schema.Candidate, 0, len(results))
	for _, r := range results {
		out = append(out, schema.Candidate{Chunk: r.Chunk, Score: r.Score, Source: schema.SourceDense})
	}
	return out, nil
}
