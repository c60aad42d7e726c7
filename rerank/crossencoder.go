package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SaharaSurfer/trustbit-rag-challenge/common/httpx"
	"github.com/SaharaSurfer/trustbit-rag-challenge/common/logger"
	"github.com/SaharaSurfer/trustbit-rag-challenge/config"
	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// CrossEncoder calls an external cross-encoder scoring service.
// Request:  {"query":"...","documents":["..."],"model":"...","top_n":5}
// Response: {"results":[{"index":0,"relevance_score":0.93}]}
// On transport failure it degrades to the candidates' fused order rather
// than failing the question; reranking is an accuracy refinement, not a
// correctness requirement.
type CrossEncoder struct {
	Endpoint string
	Model    string
	APIKey   string
	Client   *httpx.Client
}

func NewCrossEncoder(cfg config.RerankConfig, httpCfg *config.HTTPClientConfig) *CrossEncoder {
	return &CrossEncoder{
		Endpoint: cfg.Endpoint,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		Client:   httpx.NewFromConfig(httpCfg),
	}
}

type crossEncoderReq struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopN      int      `json:"top_n,omitempty"`
}

type crossEncoderResp struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (m *CrossEncoder) Score(ctx context.Context, query, text string) (float64, error) {
	scores, err := m.scoreBatch(ctx, query, []string{text})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

func (m *CrossEncoder) Rerank(ctx context.Context, query string, candidates []schema.Candidate, topN int) (schema.Evidence, error) {
	unique := dedupe(candidates)
	if len(unique) == 0 {
		return schema.Evidence{}, nil
	}
	docs := make([]string, len(unique))
	for i, c := range unique {
		docs[i] = c.Chunk.Text
	}
	scores, err := m.scoreBatch(ctx, query, docs)
	if err != nil {
		logger.Warnf("rerank: cross-encoder failed, keeping fused order: %v", err)
		// Position-based scores preserve the incoming order and keep the
		// non-increasing score invariant intact.
		scores = make([]float64, len(unique))
		for i := range unique {
			scores[i] = float64(len(unique) - i)
		}
	}
	return rankByScores(unique, scores, topN), nil
}

func (m *CrossEncoder) scoreBatch(ctx context.Context, query string, docs []string) ([]float64, error) {
	body, _ := json.Marshal(crossEncoderReq{Query: query, Documents: docs, Model: m.Model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.APIKey)
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cross-encoder status %d", resp.StatusCode)
	}
	var cr crossEncoderResp
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode cross-encoder response: %w", err)
	}
	if len(cr.Results) == 0 {
		return nil, fmt.Errorf("cross-encoder returned no results")
	}
	scores := make([]float64, len(docs))
	for _, r := range cr.Results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = r.RelevanceScore
		}
	}
	return scores, nil
}
