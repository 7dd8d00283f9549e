package recognition

import "errors"

// ErrTransport covers network, status and decode failures. A transport
// failure means "no result this tick", never an empty recognition.
var ErrTransport = errors.New("recognition transport failure")
