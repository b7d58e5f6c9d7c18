// Package config loads the application configuration from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"caserag/internal/domain"
)

// Embedder types.
const (
	EmbedderHashing = "hashing"
	EmbedderOpenAI  = "openai"
	EmbedderOllama  = "ollama"
)

// Vector store types.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
	StoreQdrant = "qdrant"
)

// HashingEmbedderConfig configures the local hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension" toml:"dimension"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	Model       string `yaml:"model" toml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size" toml:"batch_size"`
	Dimensions  int    `yaml:"dimensions,omitempty" toml:"dimensions,omitempty"`
}

// OllamaEmbedderConfig configures the Ollama embedder.
type OllamaEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	Model       string `yaml:"model" toml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
	Dimensions  int    `yaml:"dimensions,omitempty" toml:"dimensions,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                `yaml:"type" toml:"type"`
	Hashing HashingEmbedderConfig `yaml:"hashing" toml:"hashing"`
	OpenAI  *OpenAIEmbedderConfig `yaml:"openai,omitempty" toml:"openai,omitempty"`
	Ollama  *OllamaEmbedderConfig `yaml:"ollama,omitempty" toml:"ollama,omitempty"`
}

// ChunkerConfig configures how pages are split into chunks. Sizes are in runes.
type ChunkerConfig struct {
	MaxSize   int `yaml:"max_size" toml:"max_size"`
	Overlap   int `yaml:"overlap" toml:"overlap"`
	MinLength int `yaml:"min_length" toml:"min_length"`
}

// SQLiteConfig locates the SQLite index file.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host        string `yaml:"host" toml:"host"`
	Port        int    `yaml:"port" toml:"port"`
	APIKey      string `yaml:"api_key" toml:"api_key"`
	UseTLS      bool   `yaml:"use_tls" toml:"use_tls"`
	Collection  string `yaml:"collection" toml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type" toml:"type"`
	SQLite SQLiteConfig  `yaml:"sqlite" toml:"sqlite"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty" toml:"qdrant,omitempty"`
}

// RetrievalConfig configures the query path.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" toml:"top_k"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	BatchSize    int    `yaml:"batch_size" toml:"batch_size"`
	DocumentsDir string `yaml:"documents_dir" toml:"documents_dir"`
	PageSize     int    `yaml:"page_size" toml:"page_size"`
}

// LogConfig configures diagnostics.
type LogConfig struct {
	Verbose bool `yaml:"verbose" toml:"verbose"`
}

var defaultChunker = ChunkerConfig{MaxSize: 800, Overlap: 100, MinLength: 50}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder" toml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker" toml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store" toml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" toml:"retrieval"`
	Ingest      IngestConfig      `yaml:"ingest" toml:"ingest"`
	Log         LogConfig         `yaml:"log" toml:"log"`
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	// Decoding over the defaults keeps explicit zeros, which are valid for
	// chunker.overlap and chunker.min_length.
	cfg := AppConfig{Chunker: defaultChunker}
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrConfiguration, path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./caserag.yaml first, then ~/.config/caserag/config.yaml.
// If neither exists, it writes defaults to ~/.config/caserag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "caserag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	var problems []string
	if c.Chunker.MaxSize <= 0 {
		problems = append(problems, fmt.Sprintf("chunker.max_size must be positive, got %d", c.Chunker.MaxSize))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.MaxSize {
		problems = append(problems, fmt.Sprintf("chunker.overlap must be in [0, max_size), got %d", c.Chunker.Overlap))
	}
	if c.Chunker.MinLength < 0 {
		problems = append(problems, "chunker.min_length must not be negative")
	}
	if c.Retrieval.TopK <= 0 {
		problems = append(problems, fmt.Sprintf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.Ingest.BatchSize <= 0 {
		problems = append(problems, fmt.Sprintf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize))
	}
	switch c.Embedder.Type {
	case EmbedderHashing, EmbedderOpenAI, EmbedderOllama:
	default:
		problems = append(problems, fmt.Sprintf("unknown embedder.type %q", c.Embedder.Type))
	}
	switch c.VectorStore.Type {
	case StoreSQLite, StoreMemory, StoreQdrant:
	default:
		problems = append(problems, fmt.Sprintf("unknown vector_store.type %q", c.VectorStore.Type))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "caserag", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig { return defaultConfig() }

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: EmbedderHashing},
		Chunker:     defaultChunker,
		VectorStore: VectorStoreConfig{Type: StoreSQLite},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = EmbedderHashing
	}
	if cfg.Embedder.Hashing.Dimension == 0 {
		cfg.Embedder.Hashing.Dimension = 384
	}
	if cfg.Embedder.Type == EmbedderOpenAI {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == EmbedderOllama {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = os.Getenv("OLLAMA_HOST")
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "nomic-embed-text"
		}
		if cfg.Embedder.Ollama.TimeoutSecs == 0 {
			cfg.Embedder.Ollama.TimeoutSecs = 30
		}
	}

	if cfg.Chunker.MaxSize == 0 {
		cfg.Chunker.MaxSize = defaultChunker.MaxSize
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = StoreSQLite
	}
	if cfg.VectorStore.SQLite.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.VectorStore.SQLite.Path = filepath.Join(home, ".caserag", "index.db")
		}
	}
	if cfg.VectorStore.Type == StoreQdrant {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.Host == "" {
			cfg.VectorStore.Qdrant.Host = "localhost"
		}
		if cfg.VectorStore.Qdrant.Port == 0 {
			cfg.VectorStore.Qdrant.Port = 6334
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "insurance_guidelines"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 32
	}
	if cfg.Ingest.DocumentsDir == "" {
		cfg.Ingest.DocumentsDir = filepath.Join("data", "documents")
	}
	if cfg.Ingest.PageSize == 0 {
		cfg.Ingest.PageSize = 2000
	}
}
