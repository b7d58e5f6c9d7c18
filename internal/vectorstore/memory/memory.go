// Package memory is an in-process VectorIndex using brute-force cosine distance.
package memory

import (
	"context"
	"sort"
	"sync"

	"caserag/internal/domain"
	"caserag/internal/vectorstore"
)

var _ domain.VectorIndex = (*Storage)(nil)

// Storage keeps chunks in insertion order. Upserting an existing ChunkID
// replaces the entry in place.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   []domain.EmbeddedChunk
	byID      map[string]int
}

func NewStorage() *Storage { return &Storage{byID: make(map[string]int)} }

func (s *Storage) Upsert(_ context.Context, chunks []domain.EmbeddedChunk) error {
	dim, err := vectorstore.BatchDimension(chunks)
	if err != nil || dim == 0 {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := vectorstore.CheckDimension(s.dimension, dim); err != nil {
		return err
	}
	s.dimension = dim
	for _, c := range chunks {
		c.Vector = append([]float32(nil), c.Vector...)
		if i, ok := s.byID[c.ChunkID]; ok {
			s.entries[i] = c
			continue
		}
		s.byID[c.ChunkID] = len(s.entries)
		s.entries = append(s.entries, c)
	}
	return nil
}

func (s *Storage) Query(_ context.Context, vector []float32, k int, filter domain.Filter) ([]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.entries) == 0 {
		return nil, nil
	}
	if err := vectorstore.CheckDimension(s.dimension, len(vector)); err != nil {
		return nil, err
	}

	hits := make([]domain.Hit, 0, len(s.entries))
	for _, e := range s.entries {
		m := e.Metadata()
		if !filter.Matches(m) {
			continue
		}
		hits = append(hits, domain.Hit{
			ChunkID:  e.ChunkID,
			Text:     e.Text,
			Metadata: m,
			Distance: vectorstore.CosineDistance(vector, e.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Storage) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]int)
	s.dimension = 0
	return nil
}

func (s *Storage) Close() error { return nil }
