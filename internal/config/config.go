// Package config defines service configuration and its loading from
// defaults, an optional YAML file and environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Camera sources.
const (
	CameraDirectory = "dir"
	CameraSnapshot  = "snapshot"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// RecognitionURL receives one multipart frame per request.
	RecognitionURL       string `koanf:"recognition_url"`
	RecognitionTimeoutMS int    `koanf:"recognition_timeout_ms"`

	// SampleIntervalMS is the capture period while armed.
	SampleIntervalMS int `koanf:"sample_interval_ms"`

	// MatchedHoldMS is how long the matched status is shown.
	MatchedHoldMS int `koanf:"matched_hold_ms"`

	// LogPollURL returns the recent attendance window. Empty disables polling.
	LogPollURL        string `koanf:"log_poll_url"`
	LogPollIntervalMS int    `koanf:"log_poll_interval_ms"`

	// LogPushURL is the websocket push channel. Empty disables push.
	LogPushURL string `koanf:"log_push_url"`

	// RecentCapacity bounds the recent events window.
	RecentCapacity int `koanf:"recent_capacity"`

	// UpdateQueueSize bounds the pending view mutations.
	UpdateQueueSize int `koanf:"update_queue_size"`

	// PushDedupeSize bounds the replay filter of the push channel.
	PushDedupeSize int `koanf:"push_dedupe_size"`

	// CameraSource selects the capture device: "dir" or "snapshot".
	CameraSource      string `koanf:"camera_source"`
	CameraDir         string `koanf:"camera_dir"`
	CameraSnapshotURL string `koanf:"camera_snapshot_url"`

	// Frame constraints applied before upload.
	FrameMaxWidth  int `koanf:"frame_max_width"`
	FrameMaxHeight int `koanf:"frame_max_height"`
	JPEGQuality    int `koanf:"jpeg_quality"`

	// AutoArm opens a session as soon as the service starts.
	AutoArm bool `koanf:"auto_arm"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		RecognitionURL:       "http://127.0.0.1:8000/api/v1/attendance/process-frame",
		RecognitionTimeoutMS: 10_000,
		SampleIntervalMS:     1500,
		MatchedHoldMS:        1000,
		LogPollURL:           "http://127.0.0.1:8000/api/v1/attendance/logs",
		LogPollIntervalMS:    5000,
		LogPushURL:           "ws://127.0.0.1:8000/ws/attendance",
		RecentCapacity:       30,
		UpdateQueueSize:      256,
		PushDedupeSize:       4096,
		CameraSource:         CameraDirectory,
		CameraDir:            "./frames",
		FrameMaxWidth:        1280,
		FrameMaxHeight:       720,
		JPEGQuality:          50,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RecognitionURL == "":
		return fmt.Errorf("%w: recognition_url must not be empty", ErrInvalidConfig)
	case c.SampleIntervalMS <= 0:
		return fmt.Errorf("%w: sample_interval_ms must be positive", ErrInvalidConfig)
	case c.RecognitionTimeoutMS <= 0:
		return fmt.Errorf("%w: recognition_timeout_ms must be positive", ErrInvalidConfig)
	case c.MatchedHoldMS <= 0:
		return fmt.Errorf("%w: matched_hold_ms must be positive", ErrInvalidConfig)
	case c.LogPollIntervalMS <= 0:
		return fmt.Errorf("%w: log_poll_interval_ms must be positive", ErrInvalidConfig)
	case c.RecentCapacity <= 0:
		return fmt.Errorf("%w: recent_capacity must be positive", ErrInvalidConfig)
	case c.UpdateQueueSize <= 0:
		return fmt.Errorf("%w: update_queue_size must be positive", ErrInvalidConfig)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return fmt.Errorf("%w: jpeg_quality must be within 1..100", ErrInvalidConfig)
	case c.FrameMaxWidth <= 0 || c.FrameMaxHeight <= 0:
		return fmt.Errorf("%w: frame bounds must be positive", ErrInvalidConfig)
	}

	if err := checkURL("recognition_url", c.RecognitionURL, "http", "https"); err != nil {
		return err
	}
	if c.LogPollURL != "" {
		if err := checkURL("log_poll_url", c.LogPollURL, "http", "https"); err != nil {
			return err
		}
	}
	if c.LogPushURL != "" {
		if err := checkURL("log_push_url", c.LogPushURL, "ws", "wss"); err != nil {
			return err
		}
	}

	switch strings.ToLower(c.CameraSource) {
	case CameraDirectory:
		if c.CameraDir == "" {
			return fmt.Errorf("%w: camera_dir must not be empty", ErrInvalidConfig)
		}
	case CameraSnapshot:
		if err := checkURL("camera_snapshot_url", c.CameraSnapshotURL, "http", "https"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown camera_source %q", ErrInvalidConfig, c.CameraSource)
	}
	return nil
}

// SampleInterval returns the sampling period.
func (c *Config) SampleInterval() time.Duration { return ms(c.SampleIntervalMS) }

// RecognitionTimeout returns the per-request recognition timeout.
func (c *Config) RecognitionTimeout() time.Duration { return ms(c.RecognitionTimeoutMS) }

// MatchedHold returns how long the matched status is held.
func (c *Config) MatchedHold() time.Duration { return ms(c.MatchedHoldMS) }

// LogPollInterval returns the snapshot period.
func (c *Config) LogPollInterval() time.Duration { return ms(c.LogPollIntervalMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %s %q is not an absolute URL", ErrInvalidConfig, key, raw)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s scheme must be one of %v", ErrInvalidConfig, key, schemes)
}
