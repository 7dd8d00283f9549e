package service

import (
	"time"

	"github.com/okian/rollcall/internal/capture"
	"github.com/okian/rollcall/internal/recognition"
	"github.com/okian/rollcall/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDevice sets the capture device.
func WithDevice(d capture.Device) Option {
	return func(s *Service) {
		if d != nil {
			s.device = d
		}
	}
}

// WithRecognizer replaces the HTTP recognition client.
func WithRecognizer(r recognition.Recognizer) Option {
	return func(s *Service) {
		if r != nil {
			s.recognizer = r
		}
	}
}

// WithRecognitionURL sets the recognition endpoint.
func WithRecognitionURL(url string) Option {
	return func(s *Service) {
		s.recognitionURL = url
	}
}

// WithRecognitionTimeout bounds one recognition request.
func WithRecognitionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recognitionTimeout = d
		}
	}
}

// WithLogPollURL sets the snapshot endpoint. Empty disables polling.
func WithLogPollURL(url string) Option {
	return func(s *Service) {
		s.logPollURL = url
	}
}

// WithLogPushURL sets the websocket push endpoint. Empty disables push.
func WithLogPushURL(url string) Option {
	return func(s *Service) {
		s.logPushURL = url
	}
}

// WithSampleInterval sets the capture period.
func WithSampleInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sampleInterval = d
		}
	}
}

// WithMatchedHold sets how long the matched status is shown.
func WithMatchedHold(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.matchedHold = d
		}
	}
}

// WithPollInterval sets the snapshot period.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithRecentCapacity bounds the recent events window.
func WithRecentCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentCapacity = n
		}
	}
}

// WithQueueSize sets the maximum number of pending view updates.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the push replay filter.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithEncodeOptions sets the frame size and quality constraints.
func WithEncodeOptions(o capture.EncodeOptions) Option {
	return func(s *Service) {
		s.encode = o
	}
}

// WithAutoArm opens a session as soon as the service starts.
func WithAutoArm(enabled bool) Option {
	return func(s *Service) {
		s.autoArm = enabled
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
