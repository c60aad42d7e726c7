package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx,
		schema.Chunk{ID: "a2", Entity: "Acme Corp", Text: "second", PageIndex: 4, Ordinal: 1},
		schema.Chunk{ID: "a1", Entity: "Acme Corp", Text: "first", PageIndex: 3, Ordinal: 0},
		schema.Chunk{ID: "b1", Entity: "Globex Inc", Text: "other", PageIndex: 1, Ordinal: 0},
	))

	got, err := s.Chunks(ctx, "Acme Corp")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID, "chunks come back in ordinal order")
	assert.Equal(t, "a2", got[1].ID)
	assert.Equal(t, 3, got[0].PageIndex)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStore_UnknownEntityIsEmpty(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Chunks(context.Background(), "Hooli")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_PutReplacesByID(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, schema.Chunk{ID: "a1", Entity: "Acme Corp", Text: "old"}))
	require.NoError(t, s.Put(ctx, schema.Chunk{ID: "a1", Entity: "Acme Corp", Text: "new"}))

	got, err := s.Chunks(ctx, "Acme Corp")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Text)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx,
		schema.Chunk{ID: "a1", Entity: "Acme Corp", Ordinal: 0},
		schema.Chunk{ID: "b1", Entity: "Globex Inc", Ordinal: 0},
		schema.Chunk{ID: "a2", Entity: "Acme Corp", Ordinal: 1},
	))

	got, err := m.Chunks(ctx, "Acme Corp")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	all, err := m.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
