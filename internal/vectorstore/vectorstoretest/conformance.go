// Package vectorstoretest provides a behavioural test suite shared by the
// VectorIndex backends.
package vectorstoretest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caserag/internal/domain"
)

// Factory returns a fresh, empty index.
type Factory func(t *testing.T) domain.VectorIndex

// Chunk builds an embedded chunk with a derived ChunkID.
func Chunk(source string, page, idx int, text string, vec ...float32) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			ChunkID:          domain.ChunkID(source, page, idx),
			SourceDocumentID: source,
			PageNumber:       page,
			ChunkIndex:       idx,
			Text:             text,
			Length:           len([]rune(text)),
		},
		Vector: vec,
	}
}

// Run exercises the VectorIndex contract against indexes built by newIndex.
func Run(t *testing.T, newIndex Factory) {
	ctx := context.Background()

	t.Run("empty index", func(t *testing.T) {
		idx := newIndex(t)
		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		hits, err := idx.Query(ctx, []float32{1, 0, 0}, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("query orders by distance", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Upsert(ctx, []domain.EmbeddedChunk{
			Chunk("far.txt", 1, 0, "far", 0, 0, 1),
			Chunk("near.txt", 2, 0, "near", 1, 0.1, 0),
			Chunk("mid.txt", 3, 4, "mid", 1, 1, 0),
		}))

		hits, err := idx.Query(ctx, []float32{1, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, domain.ChunkID("near.txt", 2, 0), hits[0].ChunkID)
		assert.Equal(t, "near", hits[0].Text)
		assert.Equal(t, domain.Metadata{SourceDocumentID: "near.txt", PageNumber: 2, ChunkIndex: 0}, hits[0].Metadata)
		assert.Equal(t, domain.ChunkID("mid.txt", 3, 4), hits[1].ChunkID)
		assert.Equal(t, 4, hits[1].Metadata.ChunkIndex)
		assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
		assert.GreaterOrEqual(t, hits[0].Distance, 0.0)
		assert.InDelta(t, 0.2929, hits[1].Distance, 1e-3)
	})

	t.Run("fewer entries than k", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Upsert(ctx, []domain.EmbeddedChunk{
			Chunk("a.txt", 1, 0, "a", 1, 0),
			Chunk("b.txt", 1, 0, "b", 0, 1),
		}))
		hits, err := idx.Query(ctx, []float32{1, 0}, 5, nil)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("upsert replaces by chunk id", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Upsert(ctx, []domain.EmbeddedChunk{Chunk("doc.txt", 1, 0, "old", 1, 0)}))
		require.NoError(t, idx.Upsert(ctx, []domain.EmbeddedChunk{Chunk("doc.txt", 1, 0, "new", 0, 1)}))

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		hits, err := idx.Query(ctx, []float32{0, 1}, 1, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "new", hits[0].Text)
		assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	})

	t.Run("filter by source", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Upsert(ctx, []domain.EmbeddedChunk{
			Chunk("Florida_Flood.pdf", 1, 0, "fl", 1, 0),
			Chunk("Texas_Hail.pdf", 1, 0, "tx", 1, 0),
			Chunk("Florida_Flood.pdf", 2, 0, "fl2", 0, 1),
		}))
		hits, err := idx.Query(ctx, []float32{1, 0}, 10, domain.Filter{domain.MetaSourceDocumentID: "Florida_Flood.pdf"})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		for _, h := range hits {
			assert.Equal(t, "Florida_Flood.pdf", h.Metadata.SourceDocumentID)
		}

		hits, err = idx.Query(ctx, []float32{1, 0}, 10, domain.Filter{
			domain.MetaSourceDocumentID: "Florida_Flood.pdf",
			domain.MetaPageNumber:       "2",
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "fl2", hits[0].Text)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Upsert(ctx, []domain.EmbeddedChunk{Chunk("a.txt", 1, 0, "a", 1, 0, 0)}))

		_, err := idx.Query(ctx, []float32{1, 0}, 1, nil)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		err = idx.Upsert(ctx, []domain.EmbeddedChunk{Chunk("b.txt", 1, 0, "b", 1, 0)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("reset", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Upsert(ctx, []domain.EmbeddedChunk{Chunk("a.txt", 1, 0, "a", 1, 0, 0)}))
		require.NoError(t, idx.Reset(ctx))

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		// a reset index accepts a new dimension
		require.NoError(t, idx.Upsert(ctx, []domain.EmbeddedChunk{Chunk("a.txt", 1, 0, "a", 1, 0)}))
		n, err = idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("concurrent readers", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Upsert(ctx, []domain.EmbeddedChunk{
			Chunk("a.txt", 1, 0, "a", 1, 0),
			Chunk("b.txt", 1, 0, "b", 0, 1),
		}))
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hits, err := idx.Query(ctx, []float32{1, 0}, 2, nil)
				assert.NoError(t, err)
				assert.Len(t, hits, 2)
			}()
		}
		wg.Wait()
	})
}
