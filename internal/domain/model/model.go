// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// CaptureSession describes the single live camera session.
type CaptureSession struct {
	ID        uuid.UUID `json:"id"`
	Active    bool      `json:"active"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
}

// Frame is one encoded still image. It is produced, sent and discarded.
type Frame struct {
	Seq        uint64
	TraceID    string
	Width      int
	Height     int
	Data       []byte // JPEG
	CapturedAt time.Time
}

// RecognitionResult is the outcome of one completed recognition request.
type RecognitionResult struct {
	Identities []string
	CapturedAt time.Time
}

// LogEvent is one attendance record from the log feed.
type LogEvent struct {
	IdentityID      string    `json:"identity_id"`
	Timestamp       time.Time `json:"timestamp"`
	EngagementScore float64   `json:"engagement_score"`
}

// Key identifies a log event for de-duplication.
func (e LogEvent) Key() string {
	return e.IdentityID + "@" + e.Timestamp.UTC().Format(time.RFC3339Nano)
}

// RecognitionView is a read-only snapshot of what the store knows.
type RecognitionView struct {
	LiveIdentities []string   `json:"live_identities"`
	LiveCapturedAt time.Time  `json:"live_captured_at"`
	RecentEvents   []LogEvent `json:"recent_events"`
}
