package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval core. Callers classify failures with
// errors.Is so the HTTP layer can map them to distinct response codes.
var (
	// ErrInvalidConfig indicates invalid chunking or retrieval parameters
	// (e.g. overlap >= chunk size, top_k < 1). Never retried — the caller
	// must fix its configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates an embedding whose length differs from
	// the dimensionality already established for the collection.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrDocumentNotFound indicates the requested doc_id has no stored
	// chunks. Not fatal — callers typically treat it as "no results".
	ErrDocumentNotFound = errors.New("document not found")
)

// ProviderError wraps a failure from the embedding provider and records
// whether the failure is transient (rate limit, timeout, 5xx) and therefore
// worth retrying with backoff, or permanent (bad credentials, malformed
// input) and must propagate immediately.
type ProviderError struct {
	// Transient is true for failures that may succeed on retry.
	Transient bool

	// Err is the underlying provider failure.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("embedding provider error (%s): %v", kind, e.Err)
}

// Unwrap exposes the underlying failure to errors.Is / errors.As.
func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a transient ProviderError.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}
