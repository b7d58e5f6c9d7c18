// Package retrieval ranks indexed passages against a case record.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"caserag/internal/domain"
	"caserag/internal/extractor"
	"caserag/internal/logger"
)

// Ensure Engine implements the Retriever port.
var _ domain.Retriever = (*Engine)(nil)

// Engine runs the query path: extract context, embed, search, re-rank, cite.
// It holds no mutable state and is safe for concurrent use when its embedder
// and index are.
type Engine struct {
	embedder   domain.Embedder
	index      domain.VectorIndex
	similarity SimilarityFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithSimilarity replaces the distance-to-similarity transform. Use it with
// indexes whose distance is not cosine distance.
func WithSimilarity(f SimilarityFunc) Option {
	return func(e *Engine) {
		if f != nil {
			e.similarity = f
		}
	}
}

// NewEngine creates an engine over a shared embedder and index.
func NewEngine(embedder domain.Embedder, index domain.VectorIndex, opts ...Option) *Engine {
	e := &Engine{embedder: embedder, index: index, similarity: CosineSimilarity}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve returns up to topK passages for c, best first.
func (e *Engine) Retrieve(ctx context.Context, c domain.Case, topK int) ([]domain.SearchResult, error) {
	return e.RetrieveFiltered(ctx, c, topK, nil)
}

// RetrieveFiltered is Retrieve with metadata constraints passed to the index.
func (e *Engine) RetrieveFiltered(ctx context.Context, c domain.Case, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrConfiguration, topK)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	count, err := e.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count index: %w", domain.ErrProvider, err)
	}
	if count == 0 {
		return nil, domain.ErrEmptyCorpus
	}

	qc := extractor.ExtractWithFilter(c, filter)
	logger.Debug("retrieval query %q boost=%v filters=%v", qc.QueryText, qc.BoostFields, qc.Filters)

	vec, err := e.embedder.Embed(ctx, qc.QueryText)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrProvider, err)
	}
	if d := e.embedder.Dimensions(); d > 0 && len(vec) != d {
		return nil, fmt.Errorf("%w: embedder %s returned %d values, want %d",
			domain.ErrDimensionMismatch, e.embedder.Name(), len(vec), d)
	}

	hits, err := e.index.Query(ctx, vec, topK, qc.Filters)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: query index: %w", domain.ErrProvider, err)
	}
	logger.Debug("index returned %d candidates of %d entries", len(hits), count)

	results := Rank(hits, c, qc, e.similarity)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
