package vectordb

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
	"github.com/SaharaSurfer/trustbit-rag-challenge/config"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

const (
	fieldID        = "id"
	fieldEntity    = "entity"
	fieldText      = "text"
	fieldPageIndex = "page_index"
	fieldOrdinal   = "ordinal"
	fieldVector    = "vector"
)

// milvusStore backs the dense index with a Milvus collection. The entity
// tag is a scalar field so search scoping is pushed down as a boolean
// expression.
type milvusStore struct {
	cli        client.Client
	collection string
	metric     entity.MetricType
	dim        int
}

func newMilvusStore(cfg *config.VectorDBConfig, dim int) (*milvusStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("milvus: embedding dimensions must be set")
	}
	cli, err := client.NewClient(context.Background(), client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus at %s: %w", cfg.Address, err)
	}
	metric := entity.IP
	if cfg.Metric == "L2" {
		metric = entity.L2
	}
	s := &milvusStore{cli: cli, collection: cfg.Collection, metric: metric, dim: dim}
	if err := s.ensureCollection(context.Background()); err != nil {
		cli.Close()
		return nil, err
	}
	return s, nil
}

func (s *milvusStore) ensureCollection(ctx context.Context) error {
	has, err := s.cli.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !has {
		sch := entity.NewSchema().WithName(s.collection).
			WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(fieldEntity).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256)).
			WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192)).
			WithField(entity.NewField().WithName(fieldPageIndex).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldOrdinal).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))
		if err := s.cli.CreateCollection(ctx, sch, 1); err != nil {
			return fmt.Errorf("create collection %s: %w", s.collection, err)
		}
		idx, err := entity.NewIndexHNSW(s.metric, 16, 200)
		if err != nil {
			return fmt.Errorf("build index params: %w", err)
		}
		if err := s.cli.CreateIndex(ctx, s.collection, fieldVector, idx, false); err != nil {
			return fmt.Errorf("create vector index: %w", err)
		}
		logger.Infof("milvus: created collection %s (dim=%d, metric=%s)", s.collection, s.dim, s.metric)
	}
	if err := s.cli.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("load collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *milvusStore) Upsert(ctx context.Context, chunks []schema.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	entities := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	pages := make([]int64, len(chunks))
	ordinals := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		entities[i] = c.Entity
		texts[i] = c.Text
		pages[i] = int64(c.PageIndex)
		ordinals[i] = int64(c.Ordinal)
	}
	_, err := s.cli.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldEntity, entities),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnInt64(fieldPageIndex, pages),
		entity.NewColumnInt64(fieldOrdinal, ordinals),
		entity.NewColumnFloatVector(fieldVector, s.dim, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert: %w", err)
	}
	return nil
}

func (s *milvusStore) Search(ctx context.Context, vector []float32, entityName string, k int) ([]schema.SearchResult, error) {
	if k <= 0 {
		return []schema.SearchResult{}, nil
	}
	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("build search params: %w", err)
	}
	results, err := s.cli.Search(ctx, s.collection, nil, entityExpr(entityName),
		[]string{fieldID, fieldEntity, fieldText, fieldPageIndex, fieldOrdinal},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector, s.metric, k, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}
	var out []schema.SearchResult
	for _, res := range results {
		idCol, _ := res.Fields.GetColumn(fieldID).(*entity.ColumnVarChar)
		entCol, _ := res.Fields.GetColumn(fieldEntity).(*entity.ColumnVarChar)
		textCol, _ := res.Fields.GetColumn(fieldText).(*entity.ColumnVarChar)
		pageCol, _ := res.Fields.GetColumn(fieldPageIndex).(*entity.ColumnInt64)
		ordCol, _ := res.Fields.GetColumn(fieldOrdinal).(*entity.ColumnInt64)
		if idCol == nil || textCol == nil {
			continue
		}
		for i := 0; i < res.ResultCount; i++ {
			c := schema.Chunk{}
			c.ID, _ = idCol.ValueByIdx(i)
			if entCol != nil {
				c.Entity, _ = entCol.ValueByIdx(i)
			}
			c.Text, _ = textCol.ValueByIdx(i)
			if pageCol != nil {
				p, _ := pageCol.ValueByIdx(i)
				c.PageIndex = int(p)
			}
			if ordCol != nil {
				o, _ := ordCol.ValueByIdx(i)
				c.Ordinal = int(o)
			}
			out = append(out, schema.SearchResult{Chunk: c, Score: float64(res.Scores[i])})
		}
	}
	return out, nil
}

func (s *milvusStore) Close() error { return s.cli.Close() }

// entityExpr builds the scalar filter for one entity. %q quotes and
// escapes the name once; no further escaping or the backslashes double up.
func entityExpr(name string) string {
	return fmt.Sprintf("%s == %q", fieldEntity, name)
}
