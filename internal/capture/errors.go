package capture

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrPermissionDenied and ErrNoDevice are activation failures. They end
	// the session and are surfaced to the user.
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera device")

	// ErrCapture is a transient frame grab failure; the tick is skipped.
	ErrCapture = errors.New("frame capture failed")

	// ErrInactive is returned by CaptureFrame when no stream is open.
	ErrInactive = errors.New("capture device inactive")

	// ErrEncode means a captured still could not be turned into a JPEG frame.
	ErrEncode = errors.New("frame encode failed")
)
