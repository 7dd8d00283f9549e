package logfeed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/okian/rollcall/internal/domain/engagement"
	"github.com/okian/rollcall/internal/domain/model"
)

// naiveLayout is the ISO form the upstream emits for timestamps stored
// without a zone. Those are read as UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// record is one attendance log entry on the wire.
type record struct {
	StudentID       string   `json:"student_id"`
	Timestamp       string   `json:"timestamp"`
	EngagementScore *float64 `json:"engagement_score"`
}

func (r record) event() (model.LogEvent, error) {
	id := strings.TrimSpace(r.StudentID)
	if id == "" {
		return model.LogEvent{}, fmt.Errorf("%w: missing student_id", ErrMalformedRecord)
	}
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return model.LogEvent{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	score := engagement.DefaultScore
	if r.EngagementScore != nil {
		score = engagement.Clamp(*r.EngagementScore)
	}
	return model.LogEvent{IdentityID: id, Timestamp: ts, EngagementScore: score}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return ts, nil
}

// ParseRecord decodes a single pushed message.
func ParseRecord(data []byte) (model.LogEvent, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return model.LogEvent{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return r.event()
}

// parseSnapshot decodes a poll response. Records that fail to parse are
// skipped and counted; a body that is not an array fails the whole poll.
func parseSnapshot(data []byte) (events []model.LogEvent, skipped int, err error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, fmt.Errorf("%w: decode snapshot: %w", ErrFeed, err)
	}
	events = make([]model.LogEvent, 0, len(records))
	for _, raw := range records {
		e, err := ParseRecord(raw)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, e)
	}
	return events, skipped, nil
}
