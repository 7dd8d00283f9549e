package model

import "encoding/json"

// ScanStatus is the user-facing scanning affordance.
type ScanStatus int

const (
	ScanIdle ScanStatus = iota
	ScanScanning
	ScanMatched
)

func (s ScanStatus) String() string {
	switch s {
	case ScanIdle:
		return "idle"
	case ScanScanning:
		return "scanning"
	case ScanMatched:
		return "matched"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its name.
func (s ScanStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
