package upstreamsim

import "time"

// Config holds configuration for the simulated upstream.
type Config struct {
	Addr          string        // Listen address
	RosterSize    int           // Number of registered identities; 0 simulates an empty registry
	MatchRate     float64       // Probability that a frame matches anyone
	FailRate      float64       // Probability that a recognition request fails with 500
	MinLatency    time.Duration // Lower bound of simulated recognition latency
	MaxLatency    time.Duration // Upper bound of simulated recognition latency
	EventInterval time.Duration // Period of background attendance events; 0 disables them
	LogWindow     int           // Records returned by the logs endpoint
}

// DefaultConfig mirrors the upstream's observable behaviour.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8000",
		RosterSize:    24,
		MatchRate:     0.6,
		FailRate:      0.05,
		MinLatency:    80 * time.Millisecond,
		MaxLatency:    400 * time.Millisecond,
		EventInterval: 3 * time.Second,
		LogWindow:     50,
	}
}

// Upstream paths.
const (
	RecognizePath = "/api/v1/attendance/process-frame"
	LogsPath      = "/api/v1/attendance/logs"
	PushPath      = "/ws/attendance"
	HealthPath    = "/health"
)

const (
	maxStoredRecords = 1000
	maxFrameBytes    = 8 << 20
	pushBuffer       = 64
)
