package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
	"github.com/SaharaSurfer/trustbit-rag-challenge/config"
	"github.com/SaharaSurfer/trustbit-rag-challenge/embedding"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
	"github.com/SaharaSurfer/trustbit-rag-challenge/store"
	"github.com/SaharaSurfer/trustbit-rag-challenge/vectordb"
)

const embedBatchSize = 64

func newIndexCmd() *cobra.Command {
	var chunksPath string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Ingest report chunks and build the dense index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runIndex(cmd.Context(), cfg, chunksPath)
		},
	}
	cmd.Flags().StringVar(&chunksPath, "chunks", "", "JSON file with parsed report chunks")
	_ = cmd.MarkFlagRequired("chunks")
	return cmd
}

func runIndex(ctx context.Context, cfg *config.Config, chunksPath string) error {
	raw, err := os.ReadFile(chunksPath)
	if err != nil {
		return fmt.Errorf("read chunks: %w", err)
	}
	var chunks []schema.Chunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return fmt.Errorf("parse chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks in %s", chunksPath)
	}
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
	}

	st, err := openChunkStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Put(ctx, chunks...); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}
	logger.Infof("index: stored %d chunks", len(chunks))

	embed, err := embedding.NewProvider(cfg.Embedding)
	if err != nil {
		return err
	}
	vdb, err := vectordb.NewStore(&cfg.VectorDB, embed.Dimensions())
	if err != nil {
		return err
	}
	defer vdb.Close()

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := embed.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if err := vdb.Upsert(ctx, batch, vecs); err != nil {
			return fmt.Errorf("upsert batch at %d: %w", start, err)
		}
		logger.Debugf("index: upserted %d/%d", end, len(chunks))
	}
	logger.Infof("index: dense index built, %d vectors", len(chunks))
	return nil
}

func openChunkStore(cfg *config.Config) (store.ChunkStore, error) {
	switch cfg.Store.Provider {
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return store.NewSQLite(cfg.Store.Path)
	}
}
