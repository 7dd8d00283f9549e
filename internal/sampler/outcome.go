package sampler

// TickOutcome reports what a single tick did.
type TickOutcome int

const (
	TickSkippedDisarmed TickOutcome = iota
	TickSkippedInFlight
	TickCaptureFailed
	TickTransportFailed
	TickApplyFailed
	TickDiscarded
	TickApplied
)

func (o TickOutcome) String() string {
	switch o {
	case TickSkippedDisarmed:
		return "skipped_disarmed"
	case TickSkippedInFlight:
		return "skipped_in_flight"
	case TickCaptureFailed:
		return "capture_failed"
	case TickTransportFailed:
		return "transport_failed"
	case TickApplyFailed:
		return "apply_failed"
	case TickDiscarded:
		return "discarded"
	case TickApplied:
		return "applied"
	default:
		return "unknown"
	}
}
