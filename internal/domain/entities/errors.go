package entities

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// Adapters wrap them with %w so callers can match with errors.Is.
var (
	// ErrEmptyInput indicates an ingestion batch produced zero chunks.
	ErrEmptyInput = errors.New("no text to ingest")

	// ErrInvalidInput indicates a malformed request (missing doc_id, bad chunk window, bad name).
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingResource indicates a raw document is absent from the blob store.
	ErrMissingResource = errors.New("resource not found")

	// ErrIndexUnavailable indicates the vector index call failed.
	// The pipeline never retries; retrying is a transport concern.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrDuplicateID indicates an add-only write hit an id already present in the index.
	ErrDuplicateID = errors.New("id already exists in index")

	// ErrUnsupportedFilter indicates a filter operator the index cannot evaluate.
	ErrUnsupportedFilter = errors.New("unsupported filter")
)

// UnsupportedMetadataValueError reports a metadata field dropped by the sanitizer.
// It is informational: ingestion always proceeds without the field.
type UnsupportedMetadataValueError struct {
	Key   string
	Value any
}

func (e *UnsupportedMetadataValueError) Error() string {
	return fmt.Sprintf("metadata field %q has unsupported value of type %T", e.Key, e.Value)
}
