package service

import "errors"

var (
	// ErrNotStarted is returned by session operations before Start.
	ErrNotStarted = errors.New("service not started")

	// ErrActivation wraps a capture device activation failure. The
	// underlying capture error stays reachable with errors.Is.
	ErrActivation = errors.New("capture activation failed")
)
