// Package ollama implements an embedder backed by a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"caserag/internal/domain"
	"caserag/internal/embedding"
	"caserag/internal/logger"
)

// DefaultBaseURL is used when neither config nor OLLAMA_HOST name a server.
const DefaultBaseURL = "http://localhost:11434"

var _ domain.Embedder = (*Embedder)(nil)

// Config configures the Ollama embedder.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
	MaxRetries int
}

// Embedder calls the Ollama /api/embed endpoint.
type Embedder struct {
	client     *api.Client
	model      string
	maxRetries int

	mu        sync.Mutex
	dimension int
}

// New creates an Ollama embedder. It does not contact the server.
func New(cfg Config) (*Embedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ollama url %q: %v", domain.ErrConfiguration, cfg.BaseURL, err)
	}
	return &Embedder{
		client:     api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		dimension:  cfg.Dimensions,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "ollama:" + e.model }

// Dimensions returns the configured or learnt vector size.
func (e *Embedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

// Ping checks that the server is reachable.
func (e *Embedder) Ping(ctx context.Context) error {
	if err := e.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("cannot connect to ollama server: %w", err)
	}
	return nil
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds all texts in one request, retrying with exponential backoff.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := &api.EmbedRequest{Model: e.model, Input: texts}

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		resp, err := e.client.Embed(ctx, req)
		if err == nil {
			if len(resp.Embeddings) != len(texts) {
				return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
			}
			e.learnDimension(len(resp.Embeddings[0]))
			return resp.Embeddings, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		delay := embedding.RetryDelay(attempt)
		logger.Debug("ollama embed attempt %d/%d failed: %v (retrying in %v)", attempt+1, e.maxRetries, err, delay)
		if err := embedding.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.maxRetries, lastErr)
}

func (e *Embedder) learnDimension(d int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		e.dimension = d
	}
}
