// Package chunker splits page text into overlapping, size-bounded chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"caserag/internal/domain"
)

// Defaults used when the configuration leaves a value unset.
const (
	DefaultMaxSize   = 800
	DefaultOverlap   = 100
	DefaultMinLength = 50
)

// DefaultSeparators lists split points from coarsest to finest.
// The empty separator cuts between runes.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveChunker splits each page by the coarsest separator that yields
// pieces no longer than maxSize, then packs pieces into chunks that share
// up to overlap runes with their predecessor. Lengths count runes.
type RecursiveChunker struct {
	maxSize    int
	overlap    int
	minLength  int
	separators []string
}

// Option configures a RecursiveChunker.
type Option func(*RecursiveChunker)

// WithMinLength drops chunks whose trimmed text is shorter than n runes.
func WithMinLength(n int) Option {
	return func(c *RecursiveChunker) { c.minLength = n }
}

// WithSeparators replaces the separator priority list.
func WithSeparators(seps ...string) Option {
	return func(c *RecursiveChunker) { c.separators = append([]string(nil), seps...) }
}

// NewRecursiveChunker validates the sizes and returns a chunker.
func NewRecursiveChunker(maxSize, overlap int, opts ...Option) (*RecursiveChunker, error) {
	c := &RecursiveChunker{
		maxSize:    maxSize,
		overlap:    overlap,
		minLength:  DefaultMinLength,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	switch {
	case c.maxSize <= 0:
		return nil, fmt.Errorf("%w: max chunk size must be positive, got %d", domain.ErrConfiguration, c.maxSize)
	case c.overlap < 0:
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrConfiguration, c.overlap)
	case c.overlap >= c.maxSize:
		return nil, fmt.Errorf("%w: overlap %d must be smaller than max chunk size %d", domain.ErrConfiguration, c.overlap, c.maxSize)
	case c.minLength < 0:
		return nil, fmt.Errorf("%w: min chunk length must not be negative, got %d", domain.ErrConfiguration, c.minLength)
	}
	return c, nil
}

// MaxSize returns the configured chunk size bound.
func (c *RecursiveChunker) MaxSize() int { return c.maxSize }

// Overlap returns the configured overlap.
func (c *RecursiveChunker) Overlap() int { return c.overlap }

// Chunk splits every page independently; no chunk spans two pages.
func (c *RecursiveChunker) Chunk(pages []domain.Page) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for _, p := range pages {
		out = append(out, c.chunkPage(p)...)
	}
	return out, nil
}

func (c *RecursiveChunker) chunkPage(p domain.Page) []domain.Chunk {
	if strings.TrimSpace(p.Text) == "" {
		return nil
	}
	texts := c.merge(c.split(p.Text))
	chunks := make([]domain.Chunk, 0, len(texts))
	for idx, text := range texts {
		n := utf8.RuneCountInString(text)
		if n < c.minLength {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ChunkID:          domain.ChunkID(p.SourceDocumentID, p.PageNumber, idx),
			SourceDocumentID: p.SourceDocumentID,
			PageNumber:       p.PageNumber,
			ChunkIndex:       idx,
			Text:             text,
			Length:           n,
		})
	}
	return chunks
}

// segment is text still waiting to be split; level is the first separator
// it may be split by.
type segment struct {
	text  string
	level int
}

// split breaks text into ordered pieces of at most maxSize runes. Pending
// segments live on an explicit stack, so a separator-free input costs one
// iteration per rune rather than one stack frame.
func (c *RecursiveChunker) split(text string) []string {
	var pieces []string
	stack := []segment{{text: text}}
	for len(stack) > 0 {
		seg := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if utf8.RuneCountInString(seg.text) <= c.maxSize {
			pieces = append(pieces, seg.text)
			continue
		}
		level, sep := c.separatorFor(seg)
		var parts []string
		if sep == "" {
			parts = splitRunes(seg.text)
		} else {
			parts = splitAfter(seg.text, sep)
		}
		// push in reverse so the first part is popped first
		for i := len(parts) - 1; i >= 0; i-- {
			stack = append(stack, segment{text: parts[i], level: level + 1})
		}
	}
	return pieces
}

func (c *RecursiveChunker) separatorFor(seg segment) (int, string) {
	for i := seg.level; i < len(c.separators); i++ {
		sep := c.separators[i]
		if sep == "" || strings.Contains(seg.text, sep) {
			return i, sep
		}
	}
	return len(c.separators), ""
}

// merge packs pieces greedily into chunks. After each emitted chunk the
// window keeps the longest run of trailing pieces that fits in overlap and
// still leaves room for the next piece.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var (
		chunks []string
		window []string
		lens   []int
		total  int
	)
	// A window reduced to the previous chunk plus whitespace trims to that
	// same chunk; it is not emitted twice.
	emit := func() {
		t := strings.TrimSpace(strings.Join(window, ""))
		if t == "" || (len(chunks) > 0 && chunks[len(chunks)-1] == t) {
			return
		}
		chunks = append(chunks, t)
	}
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > c.maxSize && len(window) > 0 {
			emit()
			keep, kept := len(window), 0
			for keep > 0 {
				l := lens[keep-1]
				if kept+l > c.overlap || kept+l+n > c.maxSize {
					break
				}
				kept += l
				keep--
			}
			window, lens, total = window[keep:], lens[keep:], kept
		}
		window = append(window, p)
		lens = append(lens, n)
		total += n
	}
	if len(window) > 0 {
		emit()
	}
	return chunks
}

// splitAfter splits after each separator, keeping it on the preceding piece.
func splitAfter(text, sep string) []string {
	raw := strings.SplitAfter(text, sep)
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitRunes(text string) []string {
	out := make([]string, 0, utf8.RuneCountInString(text))
	for i, w := 0, 0; i < len(text); i += w {
		_, w = utf8.DecodeRuneInString(text[i:])
		out = append(out, text[i:i+w])
	}
	return out
}
