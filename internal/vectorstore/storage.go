// Package vectorstore holds helpers shared by the VectorIndex backends.
package vectorstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"caserag/internal/domain"
)

// CosineDistance returns 1 - cos(a, b), in [0, 2]. A zero-magnitude vector is
// at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, na2, nb2 float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na2)*math.Sqrt(nb2))
	return math.Max(0, math.Min(2, d))
}

// CheckDimension returns ErrDimensionMismatch when got differs from want.
// A want of 0 means the index has not fixed its dimension yet.
func CheckDimension(want, got int) error {
	if want != 0 && want != got {
		return fmt.Errorf("%w: index holds %d-dimensional vectors, got %d", domain.ErrDimensionMismatch, want, got)
	}
	return nil
}

// BatchDimension validates that all chunks share one non-zero dimension and
// returns it.
func BatchDimension(chunks []domain.EmbeddedChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	dim := len(chunks[0].Vector)
	if dim == 0 {
		return 0, fmt.Errorf("%w: chunk %s has an empty vector", domain.ErrConfiguration, chunks[0].ChunkID)
	}
	for _, c := range chunks[1:] {
		if len(c.Vector) != dim {
			return 0, fmt.Errorf("%w: chunk %s has %d values, batch uses %d",
				domain.ErrDimensionMismatch, c.ChunkID, len(c.Vector), dim)
		}
	}
	return dim, nil
}

// EncodeEmbedding encodes vec as little-endian IEEE 754 float32 values
// without a length prefix.
func EncodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding reverses EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
