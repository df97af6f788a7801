package engine

import "errors"

// Pipeline error taxonomy. Callers classify with errors.Is.
var (
	// ErrMalformedDocument marks input text with nothing to extract.
	// Per-item: skip, log, continue.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrProviderUnavailable marks a transient provider failure
	// (network, rate limit, 5xx). Retryable.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrProviderRejected marks input the provider refuses (too long,
	// invalid). Not retryable; skip the item.
	ErrProviderRejected = errors.New("embedding provider rejected input")

	// ErrIncompatibleEmbeddingSpace marks an attempt to compare vectors
	// from different model/versions. Fatal for the run.
	ErrIncompatibleEmbeddingSpace = errors.New("incompatible embedding space")

	// ErrNotFound marks a missing record in a store.
	ErrNotFound = errors.New("not found")
)
