package chunker

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caserag/internal/domain"
)

const floodSentence = "Flood damage policy covers up to $100,000 in residential losses."

func newChunker(t *testing.T, maxSize, overlap int, opts ...Option) *RecursiveChunker {
	t.Helper()
	c, err := NewRecursiveChunker(maxSize, overlap, opts...)
	require.NoError(t, err)
	return c
}

func TestNewRecursiveChunker_Validation(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int
		overlap int
		opts    []Option
	}{
		{"zero size", 0, 0, nil},
		{"negative overlap", 100, -1, nil},
		{"overlap equals size", 100, 100, nil},
		{"overlap exceeds size", 100, 150, nil},
		{"negative min length", 100, 10, []Option{WithMinLength(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewRecursiveChunker(tt.maxSize, tt.overlap, tt.opts...)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}

	c := newChunker(t, DefaultMaxSize, DefaultOverlap)
	assert.Equal(t, 800, c.MaxSize())
	assert.Equal(t, 100, c.Overlap())
}

func TestChunk_EmptyInput(t *testing.T) {
	c := newChunker(t, 800, 100)

	chunks, err := c.Chunk(nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunk([]domain.Page{{SourceDocumentID: "blank.pdf", PageNumber: 1, Text: "  \n\n\t "}})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_DropsShortChunks(t *testing.T) {
	c := newChunker(t, 800, 100)

	chunks, err := c.Chunk([]domain.Page{{SourceDocumentID: "cover.pdf", PageNumber: 1, Text: "Page 1 of 10"}})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	c = newChunker(t, 800, 100, WithMinLength(0))
	chunks, err = c.Chunk([]domain.Page{{SourceDocumentID: "cover.pdf", PageNumber: 1, Text: "Page 1 of 10"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Page 1 of 10", chunks[0].Text)
}

func TestChunk_FloodPolicyScenario(t *testing.T) {
	c := newChunker(t, 800, 100)
	page := domain.Page{
		SourceDocumentID: "FL_flood_policy.pdf",
		PageNumber:       1,
		Text:             strings.Repeat(floodSentence+" ", 40),
	}

	chunks, err := c.Chunk([]domain.Page{page})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, ch.Length, 800)
		assert.Equal(t, utf8.RuneCountInString(ch.Text), ch.Length)
		assert.Equal(t, 1, ch.PageNumber)
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, domain.ChunkID("FL_flood_policy.pdf", 1, i), ch.ChunkID)
	}
	for i := 0; i+1 < len(chunks); i++ {
		// the sentence closing one chunk opens the next
		assert.True(t, strings.HasSuffix(chunks[i].Text, floodSentence), "chunk %d should end on a sentence boundary", i)
		assert.True(t, strings.HasPrefix(chunks[i+1].Text, floodSentence), "chunk %d should start with the overlap", i+1)
	}
}

func TestChunk_PrefersCoarserSeparators(t *testing.T) {
	c := newChunker(t, 120, 0, WithMinLength(0))
	para1 := strings.Repeat("alpha ", 15)
	para2 := strings.Repeat("beta ", 15)
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	chunks, err := c.Chunk([]domain.Page{{SourceDocumentID: "d", PageNumber: 1, Text: text}})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.TrimSpace(para1), chunks[0].Text)
	assert.Equal(t, strings.TrimSpace(para2), chunks[1].Text)
}

func TestChunk_UnsplittableToken(t *testing.T) {
	c := newChunker(t, 800, 100)
	text := strings.Repeat("x", 5000)

	chunks, err := c.Chunk([]domain.Page{{SourceDocumentID: "blob.txt", PageNumber: 1, Text: text}})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.Length, 800)
	}
	assert.Equal(t, 800, chunks[0].Length)
	// character-level cuts still carry the overlap
	assert.Equal(t, 800, chunks[1].Length)
}

func TestChunk_CountsRunes(t *testing.T) {
	c := newChunker(t, 100, 10, WithMinLength(0))
	text := strings.Repeat("élan ", 60)

	chunks, err := c.Chunk([]domain.Page{{SourceDocumentID: "fr.txt", PageNumber: 1, Text: text}})
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.Length, 100)
		assert.True(t, utf8.ValidString(ch.Text))
	}
}

func TestChunk_PagePartitionAndIdempotence(t *testing.T) {
	c := newChunker(t, 200, 40)
	rng := rand.New(rand.NewSource(7))
	words := []string{"coverage", "deductible", "flood", "wind", "claimant", "adjuster", "policy", "exclusion"}
	seps := []string{" ", " ", " ", ". ", "\n", "\n\n"}

	var pages []domain.Page
	for p := 1; p <= 5; p++ {
		var b strings.Builder
		for i := 0; i < 300; i++ {
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteString(seps[rng.Intn(len(seps))])
		}
		pages = append(pages, domain.Page{SourceDocumentID: "Texas_Wind_Manual.pdf", PageNumber: p, Text: b.String()})
	}

	first, err := c.Chunk(pages)
	require.NoError(t, err)
	second, err := c.Chunk(pages)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	require.Equal(t, len(first), len(second))

	for i, ch := range first {
		assert.Equal(t, ch.ChunkID, second[i].ChunkID)
		assert.LessOrEqual(t, ch.Length, 200)
		assert.Contains(t, pages[ch.PageNumber-1].Text, ch.Text, "chunk must come from a single page")
	}
}

func TestChunk_WideOverlapDoesNotRepeatChunks(t *testing.T) {
	c := newChunker(t, 10, 9, WithMinLength(0))
	chunks, err := c.Chunk([]domain.Page{{SourceDocumentID: "a.txt", PageNumber: 1, Text: "aaaaaaaaa  bbbbbbbb  cccc"}})
	require.NoError(t, err)

	var texts []string
	for i, ch := range chunks {
		texts = append(texts, ch.Text)
		assert.Equal(t, i, ch.ChunkIndex)
	}
	assert.Equal(t, []string{"aaaaaaaaa", "bbbbbbbb", "cccc"}, texts)
}

func TestChunk_NoAdjacentDuplicates(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	words := []string{"flood", "wind", "hail", "policy", "claim"}
	seps := []string{" ", "  ", "\n", ". ", "\n\n"}
	for _, sizes := range [][2]int{{211, 210}, {50, 49}, {120, 100}} {
		c := newChunker(t, sizes[0], sizes[1], WithMinLength(0))
		var b strings.Builder
		for i := 0; i < 400; i++ {
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteString(seps[rng.Intn(len(seps))])
		}
		chunks, err := c.Chunk([]domain.Page{{SourceDocumentID: "a.txt", PageNumber: 1, Text: b.String()}})
		require.NoError(t, err)
		for i := 1; i < len(chunks); i++ {
			assert.NotEqual(t, chunks[i-1].Text, chunks[i].Text, "max=%d overlap=%d chunk %d", sizes[0], sizes[1], i)
		}
	}
}
