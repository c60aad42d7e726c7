package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SaharaSurfer/trustbit-rag-challenge/cache"
	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
	"github.com/SaharaSurfer/trustbit-rag-challenge/config"
	"github.com/SaharaSurfer/trustbit-rag-challenge/embedding"
	"github.com/SaharaSurfer/trustbit-rag-challenge/extract"
	"github.com/SaharaSurfer/trustbit-rag-challenge/orchestrator"
	"github.com/SaharaSurfer/trustbit-rag-challenge/rerank"
	"github.com/SaharaSurfer/trustbit-rag-challenge/retriever"
	"github.com/SaharaSurfer/trustbit-rag-challenge/router"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
	"github.com/SaharaSurfer/trustbit-rag-challenge/vectordb"
)

func newAnswerCmd() *cobra.Command {
	var (
		questionsPath string
		outPath       string
		concurrency   int
	)
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Answer a question set and write the submission file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runAnswer(cmd.Context(), cfg, questionsPath, outPath, concurrency)
		},
	}
	cmd.Flags().StringVar(&questionsPath, "questions", "questions.json", "JSON file with the question set")
	cmd.Flags().StringVarP(&outPath, "out", "o", "submission.json", "submission output file")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "max questions in flight")
	return cmd
}

func runAnswer(ctx context.Context, cfg *config.Config, questionsPath, outPath string, concurrency int) error {
	raw, err := os.ReadFile(questionsPath)
	if err != nil {
		return fmt.Errorf("read questions: %w", err)
	}
	var questions []schema.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return fmt.Errorf("parse questions: %w", err)
	}

	orch, closeFn, err := buildPipeline(ctx, cfg, concurrency)
	if err != nil {
		return err
	}
	defer closeFn()

	start := time.Now()
	answers, err := orch.AnswerAll(ctx, questions)
	if err != nil {
		return err
	}
	logger.Infof("answer: %d questions in %s", len(questions), time.Since(start).Round(time.Millisecond))

	sub := schema.Submission{
		TeamEmail:      cfg.Submission.TeamEmail,
		SubmissionName: cfg.Submission.Name,
		Answers:        answers,
	}
	out, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("write submission: %w", err)
	}
	logger.Infof("answer: submission written to %s", outPath)
	return nil
}

// buildPipeline wires the full stack: chunk store, both indexes, reranker,
// router, extractor. The returned closer releases store and vector DB
// connections.
func buildPipeline(ctx context.Context, cfg *config.Config, concurrency int) (*orchestrator.Orchestrator, func(), error) {
	st, err := openChunkStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	chunks, err := st.All(ctx)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("load chunks: %w", err)
	}
	logger.Infof("pipeline: %d chunks loaded", len(chunks))

	embed, err := embedding.NewProvider(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	vdb, err := vectordb.NewStore(&cfg.VectorDB, embed.Dimensions())
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	closeFn := func() {
		vdb.Close()
		st.Close()
	}

	rr, err := rerank.New(cfg.Rerank, &cfg.HTTP)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	var evCache *cache.EvidenceCache
	if cfg.Retrieval.CacheSize > 0 {
		evCache = cache.NewEvidenceCache(cfg.Retrieval.CacheSize,
			time.Duration(cfg.Retrieval.CacheTTLSeconds)*time.Second)
	}

	hybrid := &retriever.Hybrid{
		Sparse:   retriever.NewBM25Index(chunks),
		Dense:    &retriever.DenseIndex{Embed: embed, Store: vdb},
		Reranker: rr,
		KSparse:  cfg.Retrieval.KSparse,
		KDense:   cfg.Retrieval.KDense,
		TopN:     cfg.Retrieval.TopN,
		RRFK:     cfg.Retrieval.RRFK,
		Cache:    evCache,
	}

	registry, err := router.LoadRegistry(cfg.Registry.MappingCSV)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("load entity registry: %w", err)
	}

	extractor, err := extract.NewOpenAIExtractor(cfg.LLM)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	return &orchestrator.Orchestrator{
		Router:          &router.Router{Registry: registry, Rephraser: extractor},
		Retriever:       hybrid,
		Extractor:       extractor,
		Registry:        registry,
		SubqueryTimeout: time.Duration(cfg.Retrieval.SubqueryTimeoutMs) * time.Millisecond,
		MaxConcurrent:   concurrency,
	}, closeFn, nil
}
