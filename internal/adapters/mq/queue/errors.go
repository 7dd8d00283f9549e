package queue

import "errors"

// Sentinel kinds for dropped updates.
var (
	ErrClosed = errors.New("update queue closed")
	ErrFull   = errors.New("update queue full")
)
