package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Metadata keys understood by every VectorIndex filter.
const (
	MetaSourceDocumentID = "source_document_id"
	MetaPageNumber       = "page_number"
	MetaChunkIndex       = "chunk_index"
)

// Page is the text of one physical or simulated page of a source document.
type Page struct {
	SourceDocumentID string
	PageNumber       int
	Text             string
}

// Chunk is a bounded substring of a page, the unit of indexing and retrieval.
type Chunk struct {
	ChunkID          string
	SourceDocumentID string
	PageNumber       int
	ChunkIndex       int
	Text             string
	Length           int
}

// EmbeddedChunk pairs a chunk with its embedding vector.
type EmbeddedChunk struct {
	Chunk
	Vector []float32
}

// Metadata is what the vector index stores next to every vector.
type Metadata struct {
	SourceDocumentID string `json:"source_document_id"`
	PageNumber       int    `json:"page_number"`
	ChunkIndex       int    `json:"chunk_index"`
}

// Metadata returns the index metadata of the chunk.
func (c Chunk) Metadata() Metadata {
	return Metadata{SourceDocumentID: c.SourceDocumentID, PageNumber: c.PageNumber, ChunkIndex: c.ChunkIndex}
}

// Filter is a set of equality constraints over metadata keys.
// A nil or empty filter matches everything.
type Filter map[string]string

// Matches reports whether m satisfies every constraint of f.
// Unknown keys never match.
func (f Filter) Matches(m Metadata) bool {
	for k, v := range f {
		switch k {
		case MetaSourceDocumentID:
			if m.SourceDocumentID != v {
				return false
			}
		case MetaPageNumber:
			if strconv.Itoa(m.PageNumber) != v {
				return false
			}
		case MetaChunkIndex:
			if strconv.Itoa(m.ChunkIndex) != v {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Hit is one nearest-neighbour candidate returned by a VectorIndex.
// Distance is non-negative; smaller is closer.
type Hit struct {
	ChunkID  string
	Text     string
	Metadata Metadata
	Distance float64
}

// Case is the structured record a retrieval is made for.
// Empty strings and nil pointers mean the field is absent.
type Case struct {
	CaseID       string
	ClaimType    string
	Jurisdiction string
	PropertyType string
	ClaimAmount  *float64
	DateFiled    *time.Time
}

// Validate checks the invariants of a case record.
func (c Case) Validate() error {
	if c.ClaimAmount != nil && *c.ClaimAmount < 0 {
		return fmt.Errorf("%w: claim amount must be non-negative, got %v", ErrInvalidCase, *c.ClaimAmount)
	}
	return nil
}

const dateLayout = "2006-01-02"

type caseJSON struct {
	CaseID       string   `json:"case_id,omitempty"`
	ClaimType    string   `json:"claim_type,omitempty"`
	Jurisdiction string   `json:"jurisdiction,omitempty"`
	State        string   `json:"state,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	ClaimAmount  *float64 `json:"claim_amount,omitempty"`
	DateFiled    string   `json:"date_filed,omitempty"`
}

// MarshalJSON encodes the case with snake_case keys and a YYYY-MM-DD filing date.
func (c Case) MarshalJSON() ([]byte, error) {
	out := caseJSON{
		CaseID:       c.CaseID,
		ClaimType:    c.ClaimType,
		Jurisdiction: c.Jurisdiction,
		PropertyType: c.PropertyType,
		ClaimAmount:  c.ClaimAmount,
	}
	if c.DateFiled != nil {
		out.DateFiled = c.DateFiled.Format(dateLayout)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a case. "state" is accepted as an alias of "jurisdiction".
func (c *Case) UnmarshalJSON(data []byte) error {
	var in caseJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Case{
		CaseID:       in.CaseID,
		ClaimType:    in.ClaimType,
		Jurisdiction: in.Jurisdiction,
		PropertyType: in.PropertyType,
		ClaimAmount:  in.ClaimAmount,
	}
	if c.Jurisdiction == "" {
		c.Jurisdiction = in.State
	}
	if in.DateFiled != "" {
		t, err := time.Parse(dateLayout, in.DateFiled)
		if err != nil {
			return fmt.Errorf("%w: date_filed %q: %v", ErrInvalidCase, in.DateFiled, err)
		}
		c.DateFiled = &t
	}
	return nil
}

// QueryContext is derived from a Case for one retrieval call.
type QueryContext struct {
	QueryText   string
	BoostFields []string
	Filters     Filter
}

// Citation locates a result in its source document.
type Citation struct {
	SourceDocumentID string `json:"source_document_id"`
	PageNumber       int    `json:"page_number"`
	LocationLabel    string `json:"location_label"`
	PreviewText      string `json:"preview_text"`
}

// SearchResult is one ranked, cited passage.
type SearchResult struct {
	Rank             int      `json:"rank"`
	ChunkID          string   `json:"chunk_id"`
	SourceDocumentID string   `json:"source_document_id"`
	PageNumber       int      `json:"page_number"`
	Excerpt          string   `json:"excerpt"`
	FullText         string   `json:"full_text"`
	SimilarityScore  float64  `json:"similarity_score"`
	RelevanceScore   float64  `json:"relevance_score"`
	ConfidenceLabel  string   `json:"confidence_label"`
	Citation         Citation `json:"citation"`
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_]`)

// ChunkID derives the stable identifier of a chunk.
func ChunkID(sourceDocumentID string, pageNumber, chunkIndex int) string {
	clean := nonWordRe.ReplaceAllString(sourceDocumentID, "_")
	var b strings.Builder
	b.Grow(len(clean) + 24)
	b.WriteString(clean)
	b.WriteString("_page")
	b.WriteString(strconv.Itoa(pageNumber))
	b.WriteString("_chunk")
	b.WriteString(strconv.Itoa(chunkIndex))
	return b.String()
}
