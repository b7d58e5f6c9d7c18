// Package service wires chunking, embedding and indexing into the ingestion
// pipeline and exposes retrieval to the presentation layers.
package service

import (
	"context"
	"errors"
	"fmt"

	"caserag/internal/domain"
	"caserag/internal/logger"
	"caserag/internal/retrieval"
)

// DefaultBatchSize is the number of chunks embedded and upserted together.
const DefaultBatchSize = 32

// IngestOptions controls one ingestion run.
type IngestOptions struct {
	// Reset empties the index before writing. Without it, chunks with an
	// existing ChunkID overwrite the stored entry.
	Reset     bool
	BatchSize int
}

// IngestReport summarizes an ingestion run.
type IngestReport struct {
	Documents     int
	Pages         int
	Chunks        int
	Batches       int
	PreviousCount int
	Reset         bool
	Upserted      int
	FinalCount    int
}

// Stats describes the active index and embedder.
type Stats struct {
	Count      int
	Embedder   string
	Dimensions int
}

// RAGService is the application facade over the index.
type RAGService struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	index    domain.VectorIndex
	engine   *retrieval.Engine
}

// NewRAGService creates a service around shared components.
func NewRAGService(chunker domain.Chunker, embedder domain.Embedder, index domain.VectorIndex, opts ...retrieval.Option) *RAGService {
	return &RAGService{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		engine:   retrieval.NewEngine(embedder, index, opts...),
	}
}

// Retriever returns the query engine.
func (s *RAGService) Retriever() domain.Retriever { return s.engine }

// Search retrieves the topK passages for c, restricted by filter.
func (s *RAGService) Search(ctx context.Context, c domain.Case, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	return s.engine.RetrieveFiltered(ctx, c, topK, filter)
}

// Stats reports the index size and the embedder in use.
func (s *RAGService) Stats(ctx context.Context) (Stats, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: count index: %w", domain.ErrProvider, err)
	}
	return Stats{Count: n, Embedder: s.embedder.Name(), Dimensions: s.embedder.Dimensions()}, nil
}

// Count returns the number of indexed chunks.
func (s *RAGService) Count(ctx context.Context) (int, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count index: %w", domain.ErrProvider, err)
	}
	return n, nil
}

// pinger is implemented by embedders backed by a remote server.
type pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that the embedder can be reached. Local embedders always pass.
func (s *RAGService) Ping(ctx context.Context) error {
	p, ok := s.embedder.(pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}
	return nil
}

// Reset empties the index.
func (s *RAGService) Reset(ctx context.Context) error {
	if err := s.index.Reset(ctx); err != nil {
		return fmt.Errorf("%w: reset index: %w", domain.ErrProvider, err)
	}
	return nil
}

// Ingest chunks pages, embeds the chunks in batches and upserts each batch.
// A remote embedder is pinged first and the run stops before touching the
// index when it cannot be reached.
// With opts.Reset the index is emptied only once the first batch has been
// embedded, so an unreachable embedder leaves the existing entries in place.
// A failing batch stops the run; the returned *IngestError names the batches
// already written.
func (s *RAGService) Ingest(ctx context.Context, pages []domain.Page, opts IngestOptions) (IngestReport, error) {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize < 0 {
		return IngestReport{}, fmt.Errorf("%w: batch size must be positive, got %d", domain.ErrConfiguration, batchSize)
	}

	report := IngestReport{Pages: len(pages), Documents: countDocuments(pages)}
	prev, err := s.Count(ctx)
	if err != nil {
		return report, err
	}
	report.PreviousCount = prev
	report.FinalCount = prev

	chunks, err := s.chunker.Chunk(pages)
	if err != nil {
		return report, err
	}
	if err := checkUniqueIDs(chunks); err != nil {
		return report, err
	}
	report.Chunks = len(chunks)
	if len(chunks) == 0 {
		logger.Warn("No chunks produced from %d pages", len(pages))
		return report, nil
	}
	if err := s.Ping(ctx); err != nil {
		return report, err
	}
	if prev > 0 && !opts.Reset {
		logger.Info("Index holds %d entries; matching chunk ids will be overwritten", prev)
	}

	total := (len(chunks) + batchSize - 1) / batchSize
	report.Batches = total
	var succeeded []int
	for b := 0; b < total; b++ {
		start := b * batchSize
		end := min(start+batchSize, len(chunks))
		embedded, err := s.embedBatch(ctx, chunks[start:end])
		if err == nil && b == 0 && opts.Reset && prev > 0 {
			logger.Info("Resetting index (%d entries)", prev)
			if err = s.Reset(ctx); err == nil {
				report.Reset = true
			}
		}
		if err == nil {
			err = s.upsertBatch(ctx, embedded)
		}
		if err != nil {
			if n, cerr := s.index.Count(ctx); cerr == nil {
				report.FinalCount = n
			}
			return report, &domain.IngestError{Succeeded: succeeded, Failed: b + 1, Total: total, Err: err}
		}
		succeeded = append(succeeded, b+1)
		report.Upserted += end - start
		logger.Info("Batch %d/%d: %d chunks", b+1, total, end-start)
	}

	final, err := s.Count(ctx)
	if err != nil {
		return report, err
	}
	report.FinalCount = final
	return report, nil
}

func (s *RAGService) embedBatch(ctx context.Context, chunks []domain.Chunk) ([]domain.EmbeddedChunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed batch: %w", domain.ErrProvider, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", domain.ErrProvider, len(vectors), len(chunks))
	}

	want := s.embedder.Dimensions()
	embedded := make([]domain.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		if want > 0 && len(vectors[i]) != want {
			return nil, fmt.Errorf("%w: embedder %s returned %d values, want %d",
				domain.ErrDimensionMismatch, s.embedder.Name(), len(vectors[i]), want)
		}
		embedded[i] = domain.EmbeddedChunk{Chunk: c, Vector: vectors[i]}
	}
	return embedded, nil
}

func (s *RAGService) upsertBatch(ctx context.Context, embedded []domain.EmbeddedChunk) error {
	if err := s.index.Upsert(ctx, embedded); err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return err
		}
		return fmt.Errorf("%w: upsert batch: %w", domain.ErrProvider, err)
	}
	return nil
}

// checkUniqueIDs rejects a run in which two chunks share an id, which
// happens when two documents map to the same source id. Writing both would
// silently keep only the last.
func checkUniqueIDs(chunks []domain.Chunk) error {
	seen := make(map[string]string, len(chunks))
	for _, c := range chunks {
		if other, dup := seen[c.ChunkID]; dup {
			return fmt.Errorf("%w: chunk id %q produced by both %q and %q",
				domain.ErrConfiguration, c.ChunkID, other, c.SourceDocumentID)
		}
		seen[c.ChunkID] = c.SourceDocumentID
	}
	return nil
}

func countDocuments(pages []domain.Page) int {
	seen := make(map[string]struct{})
	for _, p := range pages {
		seen[p.SourceDocumentID] = struct{}{}
	}
	return len(seen)
}
