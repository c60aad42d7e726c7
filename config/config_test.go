package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  provider: memory
vectordb:
  provider: memory
retrieval:
  top_n: 3
rerank:
  provider: none
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Provider)
	assert.Equal(t, 3, cfg.Retrieval.TopN)
	// Unset fields keep defaults.
	assert.Equal(t, 30, cfg.Retrieval.KSparse)
	assert.Equal(t, 30, cfg.Retrieval.KDense)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 60000, cfg.Retrieval.SubqueryTimeoutMs)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default is valid with memory vectordb",
			mutate: func(c *Config) { c.VectorDB.Provider = "memory" },
		},
		{
			name:    "milvus requires address",
			mutate:  func(c *Config) { c.VectorDB.Address = "" },
			wantErr: "requires address",
		},
		{
			name: "bad metric",
			mutate: func(c *Config) {
				c.VectorDB.Address = "localhost:19530"
				c.VectorDB.Metric = "COSINE"
			},
			wantErr: "metric must be IP or L2",
		},
		{
			name: "sqlite requires path",
			mutate: func(c *Config) {
				c.VectorDB.Provider = "memory"
				c.Store.Path = ""
			},
			wantErr: "requires path",
		},
		{
			name: "http rerank requires endpoint",
			mutate: func(c *Config) {
				c.VectorDB.Provider = "memory"
				c.Rerank.Provider = "http"
			},
			wantErr: "requires endpoint",
		},
		{
			name: "top_n bounded by candidate budget",
			mutate: func(c *Config) {
				c.VectorDB.Provider = "memory"
				c.Retrieval.TopN = 100
			},
			wantErr: "exceeds candidate budget",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
