package config

import "fmt"

// Validate checks cross-field consistency. It rejects configurations that
// would fail loudly at query time or, worse, degrade silently.
func (c *Config) Validate() error {
	switch c.Store.Provider {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store: sqlite provider requires path")
		}
	case "memory", "":
	default:
		return fmt.Errorf("store: unknown provider %q", c.Store.Provider)
	}

	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding: model is required")
		}
	case "":
		return fmt.Errorf("embedding: provider is required")
	default:
		return fmt.Errorf("embedding: unknown provider %q", c.Embedding.Provider)
	}

	switch c.VectorDB.Provider {
	case "milvus":
		if c.VectorDB.Address == "" {
			return fmt.Errorf("vectordb: milvus provider requires address")
		}
		if c.VectorDB.Metric != "IP" && c.VectorDB.Metric != "L2" {
			return fmt.Errorf("vectordb: metric must be IP or L2, got %q", c.VectorDB.Metric)
		}
	case "memory":
	default:
		return fmt.Errorf("vectordb: unknown provider %q", c.VectorDB.Provider)
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.Model == "" {
			return fmt.Errorf("llm: model is required")
		}
	case "":
		return fmt.Errorf("llm: provider is required")
	default:
		return fmt.Errorf("llm: unknown provider %q", c.LLM.Provider)
	}

	switch c.Rerank.Provider {
	case "http":
		if c.Rerank.Endpoint == "" {
			return fmt.Errorf("rerank: http provider requires endpoint")
		}
	case "keyword", "none", "":
	default:
		return fmt.Errorf("rerank: unknown provider %q", c.Rerank.Provider)
	}

	if c.Retrieval.TopN > c.Retrieval.KSparse+c.Retrieval.KDense {
		return fmt.Errorf("retrieval: top_n %d exceeds candidate budget %d",
			c.Retrieval.TopN, c.Retrieval.KSparse+c.Retrieval.KDense)
	}
	return nil
}
