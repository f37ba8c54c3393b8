package pipeline

import (
	"fmt"

	"msiconvert/internal/models"
)

// ChunkWriteError reports that materializing a single chunk failed. It
// carries the failing chunk's bounds so the failure can be located in the
// volume; the chunk is not retried, and other in-flight chunks are left to
// finish.
type ChunkWriteError struct {
	Chunk models.ChunkBounds
	Err   error
}

func (e *ChunkWriteError) Error() string {
	return fmt.Sprintf("writing chunk %s: %v", e.Chunk, e.Err)
}

func (e *ChunkWriteError) Unwrap() error {
	return e.Err
}
