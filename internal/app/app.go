// Package app builds the long-lived components from configuration.
package app

import (
	"fmt"
	"time"

	"caserag/internal/chunker"
	"caserag/internal/config"
	"caserag/internal/domain"
	"caserag/internal/embedding/hashing"
	"caserag/internal/embedding/ollama"
	"caserag/internal/embedding/openai"
	"caserag/internal/loader"
	"caserag/internal/logger"
	"caserag/internal/service"
	"caserag/internal/vectorstore/memory"
	"caserag/internal/vectorstore/qdrant"
	"caserag/internal/vectorstore/sqlite"
)

// App holds the components shared by every command.
type App struct {
	Config  *config.AppConfig
	Service *service.RAGService
	Loader  *loader.Loader
	Index   domain.VectorIndex
}

// New builds an App. The caller must Close it.
func New(cfg *config.AppConfig) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ch, err := chunker.NewRecursiveChunker(cfg.Chunker.MaxSize, cfg.Chunker.Overlap,
		chunker.WithMinLength(cfg.Chunker.MinLength))
	if err != nil {
		return nil, err
	}
	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	index, err := NewIndex(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	logger.Debug("Using embedder %s and %s vector store", emb.Name(), cfg.VectorStore.Type)
	return &App{
		Config:  cfg,
		Service: service.NewRAGService(ch, emb, index),
		Loader:  loader.New(cfg.Ingest.PageSize),
		Index:   index,
	}, nil
}

// Close releases the vector index.
func (a *App) Close() error { return a.Index.Close() }

// NewEmbedder creates the configured embedder.
func NewEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case config.EmbedderHashing, "":
		return hashing.NewEmbedder(cfg.Hashing.Dimension)
	case config.EmbedderOpenAI:
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIEmbedderConfig{}
		}
		return openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
			BatchSize:  oc.BatchSize,
			Dimensions: oc.Dimensions,
		})
	case config.EmbedderOllama:
		oc := cfg.Ollama
		if oc == nil {
			oc = &config.OllamaEmbedderConfig{}
		}
		return ollama.New(ollama.Config{
			BaseURL:    oc.BaseURL,
			Model:      oc.Model,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
			Dimensions: oc.Dimensions,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedder type %q", domain.ErrConfiguration, cfg.Type)
	}
}

// NewIndex opens the configured vector index.
func NewIndex(cfg config.VectorStoreConfig) (domain.VectorIndex, error) {
	switch cfg.Type {
	case config.StoreSQLite, "":
		return sqlite.Open(cfg.SQLite.Path)
	case config.StoreMemory:
		return memory.NewStorage(), nil
	case config.StoreQdrant:
		qc := cfg.Qdrant
		if qc == nil {
			qc = &config.QdrantConfig{}
		}
		return qdrant.NewStorage(qdrant.Config{
			Host:       qc.Host,
			Port:       qc.Port,
			APIKey:     qc.APIKey,
			UseTLS:     qc.UseTLS,
			Collection: qc.Collection,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("%w: unknown vector store type %q", domain.ErrConfiguration, cfg.Type)
	}
}
