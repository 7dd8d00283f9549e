package capture

import (
	"net/http"
	"time"

	"github.com/okian/rollcall/pkg/logger"
)

// Option applies a configuration option to a Camera.
type Option func(*Camera)

// WithLogger sets the camera logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Camera) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides the time source used for handles and frames.
func WithClock(now func() time.Time) Option {
	return func(c *Camera) {
		if now != nil {
			c.now = now
		}
	}
}

// WithHTTPClient sets the client used by snapshot cameras. Ignored by other sources.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Camera) {
		if s, ok := c.src.(*snapshotSource); ok && client != nil {
			s.client = client
		}
	}
}
