package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caserag/internal/domain"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, EmbedderHashing, cfg.Embedder.Type)
	assert.Equal(t, 384, cfg.Embedder.Hashing.Dimension)
	assert.Equal(t, 800, cfg.Chunker.MaxSize)
	assert.Equal(t, 100, cfg.Chunker.Overlap)
	assert.Equal(t, 50, cfg.Chunker.MinLength)
	assert.Equal(t, StoreSQLite, cfg.VectorStore.Type)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 32, cfg.Ingest.BatchSize)
	assert.Equal(t, 2000, cfg.Ingest.PageSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caserag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: openai
  openai:
    model: text-embedding-3-large
chunker:
  max_size: 500
  overlap: 50
vector_store:
  type: qdrant
  qdrant:
    host: qdrant.internal
retrieval:
  top_k: 8
log:
  verbose: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EmbedderOpenAI, cfg.Embedder.Type)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 500, cfg.Chunker.MaxSize)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 50, cfg.Chunker.MinLength)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, "insurance_guidelines", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.True(t, cfg.Log.Verbose)
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caserag.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[embedder]
type = "ollama"

[embedder.ollama]
model = "mxbai-embed-large"
dimensions = 1024

[vector_store]
type = "memory"

[ingest]
batch_size = 16
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EmbedderOllama, cfg.Embedder.Type)
	require.NotNil(t, cfg.Embedder.Ollama)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedder.Ollama.Model)
	assert.Equal(t, 1024, cfg.Embedder.Ollama.Dimensions)
	assert.NotEmpty(t, cfg.Embedder.Ollama.BaseURL)
	assert.Equal(t, StoreMemory, cfg.VectorStore.Type)
	assert.Equal(t, 16, cfg.Ingest.BatchSize)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"overlap not below max size", "chunker:\n  max_size: 100\n  overlap: 100\n"},
		{"negative top_k", "retrieval:\n  top_k: -1\n"},
		{"unknown store", "vector_store:\n  type: chroma\n"},
		{"unknown embedder", "embedder:\n  type: word2vec\n"},
		{"malformed", "chunker: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.Retrieval.TopK = 9
			cfg.VectorStore.SQLite.Path = "/tmp/index.db"
			require.NoError(t, Save(path, cfg))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadDefault_PrefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("caserag.yaml", []byte("retrieval:\n  top_k: 3\n"), 0o600))

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "caserag.yaml", path)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "caserag", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestLoad_ExplicitZeroChunkerValues(t *testing.T) {
	for _, tt := range []struct{ name, content string }{
		{"caserag.yaml", "chunker:\n  max_size: 300\n  overlap: 0\n  min_length: 0\n"},
		{"caserag.toml", "[chunker]\nmax_size = 300\noverlap = 0\nmin_length = 0\n"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.name)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, ChunkerConfig{MaxSize: 300, Overlap: 0, MinLength: 0}, cfg.Chunker)
		})
	}
}

func TestLoad_OmittedChunkerValuesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caserag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ChunkerConfig{MaxSize: 800, Overlap: 100, MinLength: 50}, cfg.Chunker)
}
