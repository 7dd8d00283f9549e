// Package sampler drives the capture, encode and recognize cycle on a fixed
// period while armed.
//
// At most one recognition request is outstanding at any time: a tick that
// fires while a request is in flight is dropped, not queued. Disarming takes
// effect immediately for future ticks. A request that is already in flight
// is allowed to finish, but its result is applied only if the armed
// generation at completion equals the generation at dispatch.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/capture"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/recognition"
	"github.com/okian/rollcall/internal/reconcile"
	"github.com/okian/rollcall/internal/scanstatus"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

const (
	defaultInterval       = 1500 * time.Millisecond
	defaultRequestTimeout = 10 * time.Second
)

// FrameEncoder compresses a raw still.
type FrameEncoder interface {
	Encode(raw capture.RawFrame) (model.Frame, error)
}

// StatusMachine is the part of scanstatus.Machine the sampler drives.
type StatusMachine interface {
	BeginScan() bool
	EndScan(matched bool) bool
	Reset()
}

// State is a point-in-time copy of the sampler's bookkeeping.
type State struct {
	Armed       bool      `json:"armed"`
	InFlight    bool      `json:"in_flight"`
	Generation  uint64    `json:"generation"`
	LastSuccess time.Time `json:"last_success"`
}

// Sampler is safe for concurrent use.
type Sampler struct {
	device     capture.Device
	encoder    FrameEncoder
	recognizer recognition.Recognizer
	applier    reconcile.Applier
	status     StatusMachine

	interval       time.Duration
	requestTimeout time.Duration
	log            logger.Logger

	mu          sync.Mutex
	armed       bool
	inFlight    bool
	generation  uint64
	lastSuccess time.Time
	stopLoop    context.CancelFunc
	loopDone    chan struct{}

	ticks sync.WaitGroup
}

// New creates a disarmed sampler.
func New(device capture.Device, recognizer recognition.Recognizer, applier reconcile.Applier, opts ...Option) *Sampler {
	s := &Sampler{
		device:         device,
		recognizer:     recognizer,
		applier:        applier,
		interval:       defaultInterval,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("sampler")
	}
	if s.encoder == nil {
		s.encoder = capture.NewEncoder(capture.DefaultEncodeOptions())
	}
	if s.status == nil {
		s.status = scanstatus.New()
	}
	return s
}

// Arm starts the timer and immediately attempts a first sample. Arming an
// armed sampler is a no-op. It returns the armed generation.
//
// The loop outlives ctx's cancellation; it ends on Disarm or Close.
func (s *Sampler) Arm(ctx context.Context) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.armed {
		return s.generation
	}
	s.armed = true
	s.generation++
	gen := s.generation

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopLoop = cancel
	s.loopDone = make(chan struct{})
	go s.loop(loopCtx, s.loopDone)

	metrics.UpdateArmedGeneration(gen)
	s.log.Info(ctx, "sampler armed", logger.Uint64("generation", gen), logger.Duration("interval", s.interval))
	return gen
}

// Disarm stops the timer and resets the scan status. It does not wait for
// an in-flight request; that request's result will be discarded.
func (s *Sampler) Disarm() {
	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return
	}
	s.armed = false
	s.generation++
	gen := s.generation
	stop := s.stopLoop
	s.stopLoop = nil
	s.status.Reset()
	s.mu.Unlock()

	stop()
	metrics.UpdateArmedGeneration(gen)
	s.log.Info(context.Background(), "sampler disarmed", logger.Uint64("generation", gen))
}

// Close disarms and waits for the loop and any in-flight tick to finish.
func (s *Sampler) Close(ctx context.Context) error {
	s.Disarm()

	s.mu.Lock()
	loopDone := s.loopDone
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if loopDone != nil {
			<-loopDone
		}
		s.ticks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sampler close: %w", ctx.Err())
	}
}

// State returns a copy of the sampler's bookkeeping.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Armed:       s.armed,
		InFlight:    s.inFlight,
		Generation:  s.generation,
		LastSuccess: s.lastSuccess,
	}
}

func (s *Sampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.dispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx)
		}
	}
}

// dispatch runs one tick without blocking the timer. The tick does not
// inherit the loop's cancellation so a disarm lets it complete.
func (s *Sampler) dispatch(ctx context.Context) {
	s.ticks.Add(1)
	go func() {
		defer s.ticks.Done()
		s.Tick(context.WithoutCancel(ctx))
	}()
}

// Tick performs one capture and recognize attempt, or skips it.
func (s *Sampler) Tick(ctx context.Context) TickOutcome {
	outcome := s.tick(ctx)
	metrics.RecordTick(outcome.String())
	return outcome
}

func (s *Sampler) tick(ctx context.Context) TickOutcome {
	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return TickSkippedDisarmed
	}
	if s.inFlight {
		s.mu.Unlock()
		return TickSkippedInFlight
	}
	s.inFlight = true
	gen := s.generation
	s.status.BeginScan()
	s.mu.Unlock()

	metrics.UpdateInFlight(true)
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		metrics.UpdateInFlight(false)
	}()

	reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	frame, err := s.grab(reqCtx)
	if err != nil {
		s.settle(gen, false)
		if errors.Is(err, capture.ErrInactive) {
			s.log.Debug(ctx, "capture device inactive", logger.Uint64("generation", gen))
		} else {
			s.log.Warn(ctx, "frame capture failed", logger.Uint64("generation", gen), logger.Error(err))
		}
		metrics.RecordErrorByComponent("sampler", "capture")
		return TickCaptureFailed
	}

	result, err := s.recognizer.Recognize(reqCtx, frame)
	outcome := recognition.Classify(result, err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen || !s.armed {
		s.log.Debug(ctx, "discarding stale recognition",
			logger.String("trace_id", frame.TraceID),
			logger.Uint64("dispatched", gen),
			logger.Uint64("current", s.generation),
		)
		return TickDiscarded
	}

	metrics.RecordRecognition(outcome.String())
	if outcome == recognition.OutcomeTransportFailure {
		s.status.EndScan(false)
		s.log.Warn(ctx, "recognition failed", logger.String("trace_id", frame.TraceID), logger.Error(err))
		metrics.RecordErrorByComponent("sampler", "transport")
		return TickTransportFailed
	}

	if err := s.applier.ApplyRecognition(ctx, result); err != nil {
		s.status.EndScan(false)
		s.log.Warn(ctx, "recognition result dropped", logger.String("trace_id", frame.TraceID), logger.Error(err))
		metrics.RecordErrorByComponent("sampler", "apply")
		return TickApplyFailed
	}
	s.lastSuccess = result.CapturedAt
	s.status.EndScan(outcome == recognition.OutcomeMatched)
	s.log.Debug(ctx, "recognition applied",
		logger.String("trace_id", frame.TraceID),
		logger.Int("identities", len(result.Identities)),
	)
	return TickApplied
}

func (s *Sampler) grab(ctx context.Context) (model.Frame, error) {
	raw, err := s.device.CaptureFrame(ctx)
	if err != nil {
		return model.Frame{}, err
	}
	frame, err := s.encoder.Encode(raw)
	if err != nil {
		return model.Frame{}, err
	}
	metrics.RecordFrameCaptured(len(frame.Data))
	return frame, nil
}

// settle ends a scan that never reached the recognizer, unless the sampler
// has moved on to another generation.
func (s *Sampler) settle(gen uint64, matched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen && s.armed {
		s.status.EndScan(matched)
	}
}
