package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// SQLiteStore persists chunks in a local SQLite database. One writer at
// index-build time, many concurrent readers at query time.
type SQLiteStore struct {
	db *sql.DB
}

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	entity     TEXT NOT NULL,
	text       TEXT NOT NULL,
	page_index INTEGER NOT NULL,
	ordinal    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_entity ON chunks(entity, ordinal);
`

// NewSQLite opens (creating if needed) the chunk database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(chunkSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init chunk schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, chunks ...schema.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks(id, entity, text, page_index, ordinal) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Entity, c.Text, c.PageIndex, c.Ordinal); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Chunks(ctx context.Context, entity string) ([]schema.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity, text, page_index, ordinal FROM chunks WHERE entity = ? ORDER BY ordinal`, entity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *SQLiteStore) All(ctx context.Context) ([]schema.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity, text, page_index, ordinal FROM chunks ORDER BY entity, ordinal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanChunks(rows *sql.Rows) ([]schema.Chunk, error) {
	var out []schema.Chunk
	for rows.Next() {
		var c schema.Chunk
		if err := rows.Scan(&c.ID, &c.Entity, &c.Text, &c.PageIndex, &c.Ordinal); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
