package domain

import "context"

// Embedder converts free text into a numeric vector representation.
// Implementations must be deterministic for identical input.
type Embedder interface {
	Name() string
	// Dimensions returns the vector size, or 0 while it is not yet known.
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch preserves input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex persists embedded chunks and supports similarity search.
// Upsert replaces entries with the same ChunkID.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []EmbeddedChunk) error
	// Query returns up to k hits ordered by the index, closest first.
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	// Reset removes every entry.
	Reset(ctx context.Context) error
	Close() error
}

// Chunker splits pages into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(pages []Page) ([]Chunk, error)
}

// Retriever is the entry point exposed to presentation layers.
type Retriever interface {
	Retrieve(ctx context.Context, c Case, topK int) ([]SearchResult, error)
	RetrieveFiltered(ctx context.Context, c Case, topK int, filter Filter) ([]SearchResult, error)
}
