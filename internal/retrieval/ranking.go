package retrieval

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"caserag/internal/domain"
	"caserag/internal/extractor"
)

// Score weights. Similarity contributes at most semanticWeight; each
// metadata match adds metadataBoost.
const (
	semanticWeight = 0.7
	metadataBoost  = 0.15
)

// Confidence labels.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// Text limits for excerpts and citation previews.
const (
	ExcerptLength = 300
	PreviewLength = 150
	Ellipsis      = "..."
)

// SimilarityFunc maps an index distance to a similarity in [0,1]. It must be
// monotonically decreasing in distance.
type SimilarityFunc func(distance float64) float64

// CosineSimilarity converts a cosine distance in [0,2] to 1-d, clamped to [0,1].
func CosineSimilarity(distance float64) float64 {
	return clamp01(1 - distance)
}

// Relevance combines similarity with the metadata boosts of the fields in
// boostFields. The two boosts are independent and additive.
func Relevance(similarity float64, sourceDocumentID string, c domain.Case, boostFields []string) float64 {
	score := semanticWeight * clamp01(similarity)
	source := strings.ToLower(sourceDocumentID)
	for _, field := range boostFields {
		var value string
		switch field {
		case extractor.FieldJurisdiction:
			value = c.Jurisdiction
		case extractor.FieldClaimType:
			value = c.ClaimType
		}
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" && strings.Contains(source, value) {
			score += metadataBoost
		}
	}
	return math.Min(1.0, score)
}

// Confidence buckets a relevance score.
func Confidence(relevance float64) string {
	switch {
	case relevance >= 0.8:
		return ConfidenceHigh
	case relevance >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Truncate shortens text to at most max runes, backing up to the last space
// and appending Ellipsis. Text within the limit is returned unchanged.
func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	cut := string([]rune(text)[:max])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + Ellipsis
}

// NewCitation builds the citation of a chunk.
func NewCitation(m domain.Metadata, text string) domain.Citation {
	return domain.Citation{
		SourceDocumentID: m.SourceDocumentID,
		PageNumber:       m.PageNumber,
		LocationLabel:    fmt.Sprintf("Page %d", m.PageNumber),
		PreviewText:      Truncate(text, PreviewLength),
	}
}

// Rank scores hits for c and orders them by relevance. Equal scores keep the
// index order. Ranks are 1-based.
func Rank(hits []domain.Hit, c domain.Case, qc domain.QueryContext, similarity SimilarityFunc) []domain.SearchResult {
	if similarity == nil {
		similarity = CosineSimilarity
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		sim := clamp01(similarity(h.Distance))
		rel := round3(Relevance(sim, h.Metadata.SourceDocumentID, c, qc.BoostFields))
		results = append(results, domain.SearchResult{
			ChunkID:          h.ChunkID,
			SourceDocumentID: h.Metadata.SourceDocumentID,
			PageNumber:       h.Metadata.PageNumber,
			Excerpt:          Truncate(h.Text, ExcerptLength),
			FullText:         h.Text,
			SimilarityScore:  round3(sim),
			RelevanceScore:   rel,
			ConfidenceLabel:  Confidence(rel),
			Citation:         NewCitation(h.Metadata, h.Text),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
