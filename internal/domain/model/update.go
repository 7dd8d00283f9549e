package model

// UpdateKind selects which store entry point an Update targets.
type UpdateKind int

const (
	UpdateRecognition UpdateKind = iota + 1
	UpdateSnapshot
	UpdatePush
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateRecognition:
		return "recognition"
	case UpdateSnapshot:
		return "snapshot"
	case UpdatePush:
		return "push"
	default:
		return "unknown"
	}
}

// Update is one pending mutation of the recognition view. Exactly one of
// the payload fields is set, matching Kind.
type Update struct {
	Kind        UpdateKind
	Recognition RecognitionResult
	Snapshot    []LogEvent
	Push        LogEvent
}

// RecognitionUpdate wraps a recognition result.
func RecognitionUpdate(r RecognitionResult) Update {
	return Update{Kind: UpdateRecognition, Recognition: r}
}

// SnapshotUpdate wraps a polled log window.
func SnapshotUpdate(events []LogEvent) Update {
	return Update{Kind: UpdateSnapshot, Snapshot: events}
}

// PushUpdate wraps a single pushed log event.
func PushUpdate(e LogEvent) Update {
	return Update{Kind: UpdatePush, Push: e}
}
