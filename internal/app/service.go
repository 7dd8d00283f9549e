// Package service wires the live recognition pipeline and exposes the
// operations the HTTP API depends on.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/rollcall/internal/adapters/mq/queue"
	"github.com/okian/rollcall/internal/adapters/mq/worker"
	"github.com/okian/rollcall/internal/capture"
	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/domain/engagement"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/types"
	"github.com/okian/rollcall/internal/logfeed"
	"github.com/okian/rollcall/internal/recognition"
	"github.com/okian/rollcall/internal/reconcile"
	"github.com/okian/rollcall/internal/sampler"
	"github.com/okian/rollcall/internal/scanstatus"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Service owns the capture session, the sampler, the log feeds and the
// reconciliation store. All view mutations go through one queue drained by a
// single applier.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *reconcile.Store
	queue      *eventqueue.InMemoryQueue
	applier    *worker.InMemoryWorker
	status     *scanstatus.Machine
	sampler    *sampler.Sampler
	poller     *logfeed.Poller
	subscriber *logfeed.Subscriber
	device     capture.Device
	recognizer recognition.Recognizer
	summarizer *engagement.Summarizer

	// Configuration
	recognitionURL     string
	recognitionTimeout time.Duration
	logPollURL         string
	logPushURL         string
	sampleInterval     time.Duration
	matchedHold        time.Duration
	pollInterval       time.Duration
	recentCapacity     int
	queueSize          int
	dedupeSize         int
	encode             capture.EncodeOptions
	autoArm            bool

	// State
	started   bool
	session   *model.CaptureSession
	cancel    context.CancelFunc
	stopFeeds context.CancelFunc
	feeds     sync.WaitGroup

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		recognitionTimeout: 10 * time.Second,
		sampleInterval:     1500 * time.Millisecond,
		matchedHold:        time.Second,
		pollInterval:       5 * time.Second,
		recentCapacity:     30,
		queueSize:          256,
		dedupeSize:         4096,
		encode:             capture.DefaultEncodeOptions(),
		summarizer:         engagement.NewSummarizer(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the pipeline and starts the applier and the log feeds. The
// background goroutines outlive ctx; they end on Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.device == nil {
		return fmt.Errorf("%w: no capture device configured", capture.ErrNoDevice)
	}
	if s.recognizer == nil {
		if s.recognitionURL == "" {
			return errors.New("recognition url must not be empty")
		}
		s.recognizer = recognition.NewClient(s.recognitionURL, recognition.WithTimeout(s.recognitionTimeout))
	}

	s.logger.Info(ctx, "starting recognition service...")

	s.store = reconcile.NewStore(reconcile.WithCapacity(s.recentCapacity))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.applier = worker.NewInMemoryWorker(s.queue, s.store)
	s.status = scanstatus.New(scanstatus.WithMatchedHold(s.matchedHold))
	s.sampler = sampler.New(s.device, s.recognizer, s.queue,
		sampler.WithInterval(s.sampleInterval),
		sampler.WithRequestTimeout(s.recognitionTimeout),
		sampler.WithEncoder(capture.NewEncoder(s.encode)),
		sampler.WithStatusMachine(s.status),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.applier.Run(runCtx)

	feedCtx, stopFeeds := context.WithCancel(runCtx)
	s.stopFeeds = stopFeeds
	if s.logPollURL != "" {
		s.poller = logfeed.NewPoller(s.logPollURL, s.queue, logfeed.WithPollInterval(s.pollInterval))
		s.spawnFeed(func() { s.poller.Run(feedCtx) })
	}
	if s.logPushURL != "" {
		s.subscriber = logfeed.NewSubscriber(s.logPushURL, s.queue,
			logfeed.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))),
		)
		s.spawnFeed(func() { s.subscriber.Run(feedCtx) })
	}

	s.started = true
	s.logger.Info(ctx, "recognition service started",
		logger.Int("recentCapacity", s.recentCapacity),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("poll", s.poller != nil),
		logger.Bool("push", s.subscriber != nil),
	)

	if s.autoArm {
		if _, err := s.startSessionLocked(ctx); err != nil {
			s.logger.Warn(ctx, "auto arm failed", logger.Error(err))
		}
	}
	return nil
}

func (s *Service) spawnFeed(fn func()) {
	s.feeds.Add(1)
	go func() {
		defer s.feeds.Done()
		fn()
	}()
}

// Stop ends the session and shuts the pipeline down. Pending view updates
// are applied before the applier exits unless ctx expires first.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping recognition service...")

	s.stopSessionLocked(ctx)

	var errs []error
	if err := s.sampler.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	// Producers stop before the queue closes; the applier then drains what
	// is left and exits on the closed channel.
	s.stopFeeds()
	s.feeds.Wait()
	_ = s.queue.Close()
	if err := s.applier.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()

	s.status.Reset()
	s.started = false
	s.logger.Info(ctx, "recognition service stopped")
	return errors.Join(errs...)
}

// StartSession activates the capture device and arms the sampler. Calling
// it with a session open returns that session.
func (s *Service) StartSession(ctx context.Context) (model.CaptureSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return model.CaptureSession{}, ErrNotStarted
	}
	return s.startSessionLocked(ctx)
}

func (s *Service) startSessionLocked(ctx context.Context) (model.CaptureSession, error) {
	if s.session != nil {
		return *s.session, nil
	}

	handle, err := s.device.Activate(ctx)
	if err != nil {
		s.logger.Warn(ctx, "capture activation failed", logger.Error(err))
		return model.CaptureSession{}, fmt.Errorf("%w: %w", ErrActivation, err)
	}

	s.sampler.Arm(ctx)
	s.session = &model.CaptureSession{
		ID:        uuid.New(),
		Active:    true,
		Source:    handle.Source,
		StartedAt: handle.OpenedAt,
	}
	s.logger.Info(ctx, "session started",
		logger.String("session", s.session.ID.String()),
		logger.String("source", handle.Source),
	)
	return *s.session, nil
}

// StopSession disarms the sampler and releases the device. It reports
// whether a session was open.
func (s *Service) StopSession(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return false
	}
	return s.stopSessionLocked(ctx)
}

func (s *Service) stopSessionLocked(ctx context.Context) bool {
	if s.session == nil {
		return false
	}
	s.sampler.Disarm()
	s.device.Deactivate(ctx)
	s.logger.Info(ctx, "session stopped", logger.String("session", s.session.ID.String()))
	s.session = nil
	return true
}

// Session returns the open session, if any.
func (s *Service) Session() (model.CaptureSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return model.CaptureSession{}, false
	}
	return *s.session, true
}

// View returns a copy of the current recognition view.
func (s *Service) View(ctx context.Context) (types.View, error) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()

	if store == nil {
		return types.View{}, ErrNotStarted
	}
	rv := store.Query(ctx)
	return types.View{
		RecognitionView: rv,
		Engagement:      s.summarizer.Summarize(rv.RecentEvents),
	}, nil
}

// Status returns the scan status, the sampler state and the open session.
func (s *Service) Status(_ context.Context) (types.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.Status{}, ErrNotStarted
	}
	state := s.sampler.State()
	st := types.Status{
		ScanStatus: s.status.Status(),
		Armed:      state.Armed,
		InFlight:   state.InFlight,
		Generation: state.Generation,
	}
	if !state.LastSuccess.IsZero() {
		last := state.LastSuccess
		st.LastSuccess = &last
	}
	if s.session != nil {
		sess := *s.session
		st.Session = &sess
	}
	if s.subscriber != nil {
		st.PushConnected = s.subscriber.Connected()
	}
	return st, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":        s.started,
		"queueSize":      s.queueSize,
		"recentCapacity": s.recentCapacity,
		"dedupeSize":     s.dedupeSize,
		"sessionOpen":    s.session != nil,
	}

	if s.started {
		view := s.store.Query(ctx)
		queueLen := s.queue.Len(ctx)
		state := s.sampler.State()

		stats["queueLength"] = queueLen
		stats["liveIdentities"] = len(view.LiveIdentities)
		stats["recentEvents"] = len(view.RecentEvents)
		stats["generation"] = state.Generation
		stats["inFlight"] = state.InFlight
		stats["scanStatus"] = s.status.Status().String()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateViewSize(len(view.LiveIdentities), len(view.RecentEvents))
	}

	return stats
}

// Sampler exposes the sampler for callers that drive ticks directly.
func (s *Service) Sampler() *sampler.Sampler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sampler
}
