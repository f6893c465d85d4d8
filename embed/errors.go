package embed

import "errors"

var (
	// ErrEmbeddingUnavailable is returned when the embedding service cannot
	// produce a vector. The failure is transient from the pipeline's point of
	// view; affected records are retried on the next run.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
