package sampler

import (
	"time"

	"github.com/okian/rollcall/pkg/logger"
)

// Option applies a configuration option to the Sampler.
type Option func(*Sampler)

// WithInterval sets the sampling period.
func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRequestTimeout bounds one capture and recognize attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithEncoder sets the frame encoder.
func WithEncoder(e FrameEncoder) Option {
	return func(s *Sampler) {
		if e != nil {
			s.encoder = e
		}
	}
}

// WithStatusMachine sets the scan status machine driven by ticks.
func WithStatusMachine(m StatusMachine) Option {
	return func(s *Sampler) {
		if m != nil {
			s.status = m
		}
	}
}

// WithLogger sets the sampler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.log = l
		}
	}
}
