// Package types contains the read shapes shared by the service and the HTTP API.
package types

import (
	"time"

	"github.com/okian/rollcall/internal/domain/engagement"
	"github.com/okian/rollcall/internal/domain/model"
)

// View is the recognition view enriched with the engagement summary of the
// recent window.
type View struct {
	model.RecognitionView
	Engagement engagement.Summary `json:"engagement"`
}

// Status reports the session and pipeline state.
type Status struct {
	ScanStatus    model.ScanStatus      `json:"scan_status"`
	Session       *model.CaptureSession `json:"session,omitempty"`
	Armed         bool                  `json:"armed"`
	InFlight      bool                  `json:"in_flight"`
	Generation    uint64                `json:"generation"`
	LastSuccess   *time.Time            `json:"last_success,omitempty"`
	PushConnected bool                  `json:"push_connected"`
}
