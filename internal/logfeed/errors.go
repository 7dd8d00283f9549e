package logfeed

import "errors"

var (
	// ErrFeed covers transport, status and decode failures of a poll or a
	// push connection. The cycle is skipped and the view left as it was.
	ErrFeed = errors.New("log feed failure")

	// ErrMalformedRecord is returned for a single record that cannot be
	// turned into a LogEvent.
	ErrMalformedRecord = errors.New("malformed log record")
)
