package logfeed

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/pkg/logger"
)

const (
	defaultPollInterval = 5000 * time.Millisecond
	defaultPollTimeout  = 10 * time.Second

	defaultInitialRetry = 500 * time.Millisecond
	defaultMaxRetry     = 30 * time.Second
)

type options struct {
	client     *http.Client
	interval   time.Duration
	origin     string
	deduper    dedupe.Deduper
	newBackOff func() backoff.BackOff
	log        logger.Logger
}

// Option configures a Poller or a Subscriber. Options that do not apply to
// the component are ignored.
type Option func(*options)

// WithHTTPClient sets the client used for polling.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithPollInterval sets the snapshot period.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithOrigin sets the Origin header of the push handshake.
func WithOrigin(origin string) Option {
	return func(o *options) {
		if origin != "" {
			o.origin = origin
		}
	}
}

// WithDeduper sets the deduper that filters replayed push messages.
func WithDeduper(d dedupe.Deduper) Option {
	return func(o *options) {
		if d != nil {
			o.deduper = d
		}
	}
}

// WithBackOff sets the reconnect policy factory. A fresh policy is built per
// subscriber run.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(o *options) {
		if f != nil {
			o.newBackOff = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func newOptions(name string, opts []Option) options {
	o := options{
		client:   &http.Client{Timeout: defaultPollTimeout},
		interval: defaultPollInterval,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = defaultInitialRetry
			b.MaxInterval = defaultMaxRetry
			return b
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get().Named(name)
	}
	return o
}
