// Package extractor turns a case record into a retrieval query.
package extractor

import (
	"strings"

	"caserag/internal/domain"
)

// Boost field names.
const (
	FieldClaimType    = "claim_type"
	FieldJurisdiction = "jurisdiction"
)

// FallbackQuery is used when the case carries no searchable field.
const FallbackQuery = "general insurance claim"

// Claim size bucket bounds.
const (
	mediumClaimThreshold = 50_000
	largeClaimThreshold  = 200_000
)

// Extract builds the query context for c. It is pure: equal cases give
// equal contexts.
func Extract(c domain.Case) domain.QueryContext {
	return ExtractWithFilter(c, nil)
}

// ExtractWithFilter is Extract with index filters attached.
func ExtractWithFilter(c domain.Case, filter domain.Filter) domain.QueryContext {
	qc := domain.QueryContext{
		QueryText:   QueryText(c),
		BoostFields: BoostFields(c),
	}
	if len(filter) > 0 {
		qc.Filters = make(domain.Filter, len(filter))
		for k, v := range filter {
			qc.Filters[k] = v
		}
	}
	return qc
}

// QueryText joins the present case fields into a natural-language query.
func QueryText(c domain.Case) string {
	var parts []string
	if v := strings.TrimSpace(c.ClaimType); v != "" {
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(c.Jurisdiction); v != "" {
		parts = append(parts, "in "+v)
	}
	if v := strings.TrimSpace(c.PropertyType); v != "" {
		parts = append(parts, "for "+v+" property")
	}
	if c.ClaimAmount != nil {
		parts = append(parts, ClaimSize(*c.ClaimAmount))
	}
	if len(parts) == 0 {
		return FallbackQuery
	}
	return strings.Join(parts, " ")
}

// ClaimSize buckets a claim amount.
func ClaimSize(amount float64) string {
	switch {
	case amount < mediumClaimThreshold:
		return "small claim"
	case amount < largeClaimThreshold:
		return "medium claim"
	default:
		return "large claim"
	}
}

// BoostFields lists the present case fields allowed to influence re-ranking.
func BoostFields(c domain.Case) []string {
	var fields []string
	if strings.TrimSpace(c.ClaimType) != "" {
		fields = append(fields, FieldClaimType)
	}
	if strings.TrimSpace(c.Jurisdiction) != "" {
		fields = append(fields, FieldJurisdiction)
	}
	return fields
}
