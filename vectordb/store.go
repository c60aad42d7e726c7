package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/SaharaSurfer/trustbit-rag-challenge/config"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// Store is the vector search backend of the dense index. Search is
// entity-scoped: chunks of other entities are filtered inside the store,
// before ranking, so off-entity results never reach callers.
type Store interface {
	// Upsert writes chunks with their embeddings. Index-build phase only.
	Upsert(ctx context.Context, chunks []schema.Chunk, vectors [][]float32) error
	// Search returns up to k results for the entity, ordered by
	// descending similarity under the metric fixed at construction.
	Search(ctx context.Context, vector []float32, entity string, k int) ([]schema.SearchResult, error)
	Close() error
}

// NewStore builds a store from configuration.
func NewStore(cfg *config.VectorDBConfig, dim int) (Store, error) {
	switch cfg.Provider {
	case "milvus":
		return newMilvusStore(cfg, dim)
	case "memory":
		return NewMemoryStore(cfg.Metric), nil
	default:
		return nil, fmt.Errorf("unknown vectordb provider %q", cfg.Provider)
	}
}

// MemoryStore is a brute-force in-process store for tests and small corpora.
type MemoryStore struct {
	mu      sync.RWMutex
	metric  string // IP or L2
	chunks  map[string][]schema.Chunk // by entity
	vectors map[string][][]float32
}

func NewMemoryStore(metric string) *MemoryStore {
	if metric == "" {
		metric = "IP"
	}
	return &MemoryStore{
		metric:  metric,
		chunks:  make(map[string][]schema.Chunk),
		vectors: make(map[string][][]float32),
	}
}

func (m *MemoryStore) Upsert(_ context.Context, chunks []schema.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range chunks {
		if j := m.indexOf(c.Entity, c.ID); j >= 0 {
			m.chunks[c.Entity][j] = c
			m.vectors[c.Entity][j] = vectors[i]
			continue
		}
		m.chunks[c.Entity] = append(m.chunks[c.Entity], c)
		m.vectors[c.Entity] = append(m.vectors[c.Entity], vectors[i])
	}
	return nil
}

func (m *MemoryStore) indexOf(entity, id string) int {
	for i, c := range m.chunks[entity] {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) Search(_ context.Context, vector []float32, entity string, k int) ([]schema.SearchResult, error) {
	if k <= 0 {
		return []schema.SearchResult{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks := m.chunks[entity]
	vecs := m.vectors[entity]
	out := make([]schema.SearchResult, 0, len(chunks))
	for i, c := range chunks {
		out = append(out, schema.SearchResult{Chunk: c, Score: m.similarity(vector, vecs[i])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// similarity maps both metrics onto "higher is better". For L2 the
// negated distance keeps the descending sort contract.
func (m *MemoryStore) similarity(a, b []float32) float64 {
	if m.metric == "L2" {
		var d float64
		for i := range a {
			diff := float64(a[i]) - float64(b[i])
			d += diff * diff
		}
		return -math.Sqrt(d)
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
