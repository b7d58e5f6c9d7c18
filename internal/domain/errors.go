package domain

import (
	"errors"
	"fmt"
)

// Domain errors. Callers match them with errors.Is.
var (
	// ErrConfiguration indicates invalid sizes, top_k or mismatched dimensions.
	// It is fatal for the call and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrDimensionMismatch indicates stored vectors and the active embedder disagree.
	ErrDimensionMismatch = fmt.Errorf("%w: vector dimension mismatch", ErrConfiguration)

	// ErrEmptyCorpus indicates a query against an index holding no entries.
	// It is distinct from a query that simply found nothing relevant.
	ErrEmptyCorpus = errors.New("empty corpus: nothing has been ingested")

	// ErrProvider indicates the embedding provider or vector index failed.
	ErrProvider = errors.New("provider error")

	// ErrIngestionPartial indicates a batch failed after earlier batches were written.
	ErrIngestionPartial = errors.New("ingestion partially failed")

	// ErrInvalidCase indicates a malformed case record.
	ErrInvalidCase = errors.New("invalid case")
)

// IngestError reports which batches were written before ingestion halted.
// Batch numbers are 1-based.
type IngestError struct {
	Succeeded []int
	Failed    int
	Total     int
	Err       error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("%v: batch %d of %d failed after %d succeeded: %v",
		ErrIngestionPartial, e.Failed, e.Total, len(e.Succeeded), e.Err)
}

// Unwrap exposes both ErrIngestionPartial and the underlying cause.
func (e *IngestError) Unwrap() []error {
	return []error{ErrIngestionPartial, e.Err}
}
