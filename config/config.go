package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the question-answering pipeline.
type Config struct {
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Registry   RegistryConfig   `json:"registry" yaml:"registry"`
	Embedding  EmbeddingConfig  `json:"embedding" yaml:"embedding"`
	VectorDB   VectorDBConfig   `json:"vectordb" yaml:"vectordb"`
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval"`
	Rerank     RerankConfig     `json:"rerank" yaml:"rerank"`
	HTTP       HTTPClientConfig `json:"http" yaml:"http"`
	Submission SubmissionConfig `json:"submission" yaml:"submission"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level       string `json:"level,omitempty" yaml:"level,omitempty"`
	Development bool   `json:"development,omitempty" yaml:"development,omitempty"`
}

// StoreConfig locates the chunk store.
type StoreConfig struct {
	Provider string `json:"provider" yaml:"provider"` // Available options: sqlite, memory
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
}

// RegistryConfig locates the company-name to document-SHA1 mapping.
type RegistryConfig struct {
	MappingCSV string `json:"mapping_csv" yaml:"mapping_csv"`
}

// EmbeddingConfig defines the embedding model used for both index build
// and query encoding. The same model MUST be used for both; a mismatch
// silently degrades recall and is not detectable at runtime.
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // Available options: openai
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// VectorDBConfig defines the vector store backend.
type VectorDBConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // Available options: milvus, memory
	Address    string `json:"address,omitempty" yaml:"address,omitempty"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	// Metric is fixed at construction and must match the index build.
	Metric string `json:"metric,omitempty" yaml:"metric,omitempty"` // IP or L2
}

// LLMConfig configures the answer-extraction model.
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // Available options: openai
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// ContextBudget caps the aggregated evidence size in tokens.
	ContextBudget int `json:"context_budget,omitempty" yaml:"context_budget,omitempty"`
	Retries       int `json:"retries,omitempty" yaml:"retries,omitempty"`
}

// RetrievalConfig tunes the hybrid retriever.
type RetrievalConfig struct {
	KSparse int `json:"k_sparse,omitempty" yaml:"k_sparse,omitempty"`
	KDense  int `json:"k_dense,omitempty" yaml:"k_dense,omitempty"`
	TopN    int `json:"top_n,omitempty" yaml:"top_n,omitempty"`
	RRFK    int `json:"rrf_k,omitempty" yaml:"rrf_k,omitempty"`
	// SubqueryTimeoutMs bounds one subquery's retrieve+extract round trip.
	SubqueryTimeoutMs int `json:"subquery_timeout_ms,omitempty" yaml:"subquery_timeout_ms,omitempty"`
	CacheSize         int `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
	CacheTTLSeconds   int `json:"cache_ttl_seconds,omitempty" yaml:"cache_ttl_seconds,omitempty"`
}

// RerankConfig selects the reranking backend.
type RerankConfig struct {
	Provider string `json:"provider" yaml:"provider"` // Available options: http, keyword, none
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
}

// HTTPClientConfig tunes the shared outbound HTTP client.
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry                  int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	BackoffMinMs           int      `json:"backoff_min_ms,omitempty" yaml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `json:"backoff_max_ms,omitempty" yaml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty"`
}

// SubmissionConfig identifies the submission file.
type SubmissionConfig struct {
	TeamEmail string `json:"team_email,omitempty" yaml:"team_email,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Load reads a YAML config file, applies defaults and validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with baseline settings matching the tuned
// retrieval parameters (fetch 30, keep 5).
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Store:   StoreConfig{Provider: "sqlite", Path: "data/chunks.db"},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		VectorDB: VectorDBConfig{
			Provider:   "milvus",
			Collection: "financial_reports",
			Metric:     "IP",
		},
		LLM: LLMConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			Temperature:   0,
			MaxTokens:     2048,
			ContextBudget: 8000,
			Retries:       3,
		},
		Retrieval: RetrievalConfig{
			KSparse:           30,
			KDense:            30,
			TopN:              5,
			RRFK:              60,
			SubqueryTimeoutMs: 60000,
		},
		Rerank: RerankConfig{Provider: "keyword"},
	}
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Retrieval.KSparse <= 0 {
		c.Retrieval.KSparse = d.Retrieval.KSparse
	}
	if c.Retrieval.KDense <= 0 {
		c.Retrieval.KDense = d.Retrieval.KDense
	}
	if c.Retrieval.TopN <= 0 {
		c.Retrieval.TopN = d.Retrieval.TopN
	}
	if c.Retrieval.RRFK <= 0 {
		c.Retrieval.RRFK = d.Retrieval.RRFK
	}
	if c.Retrieval.SubqueryTimeoutMs <= 0 {
		c.Retrieval.SubqueryTimeoutMs = d.Retrieval.SubqueryTimeoutMs
	}
	if c.LLM.ContextBudget <= 0 {
		c.LLM.ContextBudget = d.LLM.ContextBudget
	}
	if c.LLM.Retries <= 0 {
		c.LLM.Retries = d.LLM.Retries
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = d.Embedding.Dimensions
	}
	if c.VectorDB.Metric == "" {
		c.VectorDB.Metric = d.VectorDB.Metric
	}
	if c.VectorDB.Collection == "" {
		c.VectorDB.Collection = d.VectorDB.Collection
	}
}
