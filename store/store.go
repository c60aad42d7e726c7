package store

import (
	"context"

	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// ChunkStore holds the parsed report chunks, tagged by entity. Chunks are
// written once at index-build time and read-only during the query phase.
type ChunkStore interface {
	// Chunks returns all chunks tagged with the given entity, in ordinal
	// order. An unknown entity yields an empty slice, not an error.
	Chunks(ctx context.Context, entity string) ([]schema.Chunk, error)
	// All iterates the full corpus in (entity, ordinal) order.
	All(ctx context.Context) ([]schema.Chunk, error)
	// Put stores chunks. Only valid during the indexing phase.
	Put(ctx context.Context, chunks ...schema.Chunk) error
	Close() error
}

// MemoryStore is an in-process ChunkStore used in tests and small runs.
type MemoryStore struct {
	byEntity map[string][]schema.Chunk
	order    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byEntity: make(map[string][]schema.Chunk)}
}

func (m *MemoryStore) Put(_ context.Context, chunks ...schema.Chunk) error {
	for _, c := range chunks {
		if _, ok := m.byEntity[c.Entity]; !ok {
			m.order = append(m.order, c.Entity)
		}
		m.byEntity[c.Entity] = append(m.byEntity[c.Entity], c)
	}
	return nil
}

func (m *MemoryStore) Chunks(_ context.Context, entity string) ([]schema.Chunk, error) {
	out := make([]schema.Chunk, len(m.byEntity[entity]))
	copy(out, m.byEntity[entity])
	return out, nil
}

func (m *MemoryStore) All(_ context.Context) ([]schema.Chunk, error) {
	var out []schema.Chunk
	for _, e := range m.order {
		out = append(out, m.byEntity[e]...)
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
