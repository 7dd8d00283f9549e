package worker

import "errors"

// ErrUnknownUpdate is returned for an update with an unknown kind.
var ErrUnknownUpdate = errors.New("unknown update kind")
