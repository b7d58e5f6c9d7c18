package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caserag/internal/domain"
	"caserag/internal/vectorstore/vectorstoretest"
)

func TestStorage_Conformance(t *testing.T) {
	vectorstoretest.Run(t, func(t *testing.T) domain.VectorIndex { return NewStorage() })
}

func TestStorage_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddedChunk{
		vectorstoretest.Chunk("first.txt", 1, 0, "1", 1, 0),
		vectorstoretest.Chunk("second.txt", 1, 0, "2", 2, 0),
		vectorstoretest.Chunk("third.txt", 1, 0, "3", 3, 0),
	}))

	hits, err := s.Query(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	var texts []string
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	assert.Equal(t, []string{"1", "2", "3"}, texts)
}

func TestStorage_CopiesVectors(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	c := vectorstoretest.Chunk("a.txt", 1, 0, "a", 1, 0)
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddedChunk{c}))
	c.Vector[0], c.Vector[1] = 0, 1

	hits, err := s.Query(ctx, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)
}

func TestStorage_EmptyUpsertIsNoop(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Upsert(context.Background(), nil))
	n, _ := s.Count(context.Background())
	assert.Zero(t, n)
}
