package session

import (
	"fmt"
)

// StreamFailureError is fatal to a recording: the capture device or a
// transform failed mid-stream. Everything processed before the failure
// is still finalized into the output file.
type StreamFailureError struct {
	Err error
}

func (e *StreamFailureError) Error() string {
	return fmt.Sprintf("the stream failed: %v", e.Err)
}

func (e *StreamFailureError) Unwrap() error {
	return e.Err
}

// ChunkDroppedError describes one discarded chunk. It is recoverable:
// the session logs it and keeps going.
type ChunkDroppedError struct {
	ChunkIndex uint64
	Reason     string
}

func (e *ChunkDroppedError) Error() string {
	return fmt.Sprintf("dropped chunk #%d: %s", e.ChunkIndex, e.Reason)
}
