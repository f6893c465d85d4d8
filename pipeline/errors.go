package pipeline

import (
	"errors"

	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/embed"
	"github.com/poiesic/vecsync/storage"
)

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrSourceRequired is returned when a source reader is not provided.
	ErrSourceRequired = errors.New("source reader required")

	// ErrDestinationRequired is returned when a destination writer is not provided.
	ErrDestinationRequired = errors.New("destination writer required")

	// ErrWatermarksRequired is returned when a watermark store is not provided.
	ErrWatermarksRequired = errors.New("watermark store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)

// KindOf maps an error to its reporting kind. Sentinels from the core,
// embed, and storage packages map to their matching kinds; anything
// unrecognized is internal.
func KindOf(err error) core.ErrorKind {
	switch {
	case errors.Is(err, core.ErrInvalidRecord):
		return core.KindInvalidRecord
	case errors.Is(err, embed.ErrEmbeddingUnavailable):
		return core.KindEmbeddingUnavailable
	case errors.Is(err, storage.ErrWriteUnavailable):
		return core.KindWriteUnavailable
	case errors.Is(err, storage.ErrSourceUnavailable):
		return core.KindSourceUnavailable
	default:
		return core.KindInternal
	}
}
