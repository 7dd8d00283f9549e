// Package reconcile owns the recognition view: the live identities from the
// latest recognition and a bounded, newest-first window of log events.
package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

const defaultCapacity = 30

// Applier is the mutation contract of the view. The store implements it
// directly; the update queue implements it by deferring to the store.
type Applier interface {
	ApplyRecognition(ctx context.Context, result model.RecognitionResult) error
	ApplyLogSnapshot(ctx context.Context, events []model.LogEvent) error
	ApplyLogPush(ctx context.Context, event model.LogEvent) error
}

// Querier reads the view.
type Querier interface {
	Query(ctx context.Context) model.RecognitionView
}

// Store is the sole owner of the RecognitionView.
type Store struct {
	mu       sync.RWMutex
	capacity int
	live     []string
	liveAt   time.Time
	recent   []model.LogEvent
	keys     map[string]struct{}
	log      logger.Logger
}

var (
	_ Applier = (*Store)(nil)
	_ Querier = (*Store)(nil)
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithCapacity sets the size of the recent events window.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("reconcile")
	}
	s.live = []string{}
	s.recent = make([]model.LogEvent, 0, s.capacity)
	s.keys = make(map[string]struct{}, s.capacity)
	return s
}

// Capacity returns the recent window size.
func (s *Store) Capacity() int { return s.capacity }

// ApplyRecognition replaces the live identities with result's, dropping
// repeats. Prior identities are never merged in.
func (s *Store) ApplyRecognition(ctx context.Context, result model.RecognitionResult) error {
	live := make([]string, 0, len(result.Identities))
	seen := make(map[string]struct{}, len(result.Identities))
	for _, id := range result.Identities {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		live = append(live, id)
	}

	s.mu.Lock()
	s.live = live
	s.liveAt = result.CapturedAt
	recent := len(s.recent)
	s.mu.Unlock()

	metrics.RecordStoreApply(model.UpdateRecognition.String())
	metrics.UpdateViewSize(len(live), recent)
	s.log.Debug(ctx, "recognition applied", logger.Int("live", len(live)))
	return nil
}

// ApplyLogSnapshot replaces the recent window with events sorted
// newest-first and truncated to capacity. Repeated events are kept once.
func (s *Store) ApplyLogSnapshot(ctx context.Context, events []model.LogEvent) error {
	sorted := make([]model.LogEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return newer(sorted[i], sorted[j]) })

	recent := make([]model.LogEvent, 0, s.capacity)
	keys := make(map[string]struct{}, s.capacity)
	for _, e := range sorted {
		if len(recent) == s.capacity {
			break
		}
		k := e.Key()
		if _, dup := keys[k]; dup {
			continue
		}
		keys[k] = struct{}{}
		recent = append(recent, e)
	}

	s.mu.Lock()
	s.recent = recent
	s.keys = keys
	live := len(s.live)
	s.mu.Unlock()

	metrics.RecordStoreApply(model.UpdateSnapshot.String())
	metrics.UpdateViewSize(live, len(recent))
	s.log.Debug(ctx, "log snapshot applied", logger.Int("received", len(events)), logger.Int("kept", len(recent)))
	return nil
}

// ApplyLogPush inserts event at its timestamp position, so a newest event
// is a prepend, and evicts the oldest beyond capacity. An event already in
// the window is ignored.
func (s *Store) ApplyLogPush(ctx context.Context, event model.LogEvent) error {
	k := event.Key()

	s.mu.Lock()
	if _, dup := s.keys[k]; dup {
		s.mu.Unlock()
		return nil
	}

	i := sort.Search(len(s.recent), func(i int) bool { return newer(event, s.recent[i]) })
	if i == s.capacity {
		// Older than everything in a full window.
		s.mu.Unlock()
		return nil
	}

	s.recent = append(s.recent, model.LogEvent{})
	copy(s.recent[i+1:], s.recent[i:])
	s.recent[i] = event
	s.keys[k] = struct{}{}

	if len(s.recent) > s.capacity {
		evicted := s.recent[len(s.recent)-1]
		s.recent = s.recent[:s.capacity]
		delete(s.keys, evicted.Key())
	}
	live, recent := len(s.live), len(s.recent)
	s.mu.Unlock()

	metrics.RecordStoreApply(model.UpdatePush.String())
	metrics.UpdateViewSize(live, recent)
	s.log.Debug(ctx, "log push applied", logger.String("identity", event.IdentityID))
	return nil
}

// Query returns a deep copy of the view.
func (s *Store) Query(_ context.Context) model.RecognitionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live := make([]string, len(s.live))
	copy(live, s.live)
	recent := make([]model.LogEvent, len(s.recent))
	copy(recent, s.recent)

	return model.RecognitionView{
		LiveIdentities: live,
		LiveCapturedAt: s.liveAt,
		RecentEvents:   recent,
	}
}

// newer orders events by timestamp descending, then identity ascending, so
// that the window order does not depend on arrival order.
func newer(a, b model.LogEvent) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.IdentityID < b.IdentityID
}
