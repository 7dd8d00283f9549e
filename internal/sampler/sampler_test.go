package sampler_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/capture"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/recognition"
	"github.com/okian/rollcall/internal/reconcile"
	"github.com/okian/rollcall/internal/sampler"
	"github.com/okian/rollcall/internal/scanstatus"
	"github.com/okian/rollcall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

type stubDevice struct {
	fail atomic.Bool
}

func (d *stubDevice) Activate(context.Context) (capture.Handle, error) { return capture.Handle{}, nil }
func (d *stubDevice) Deactivate(context.Context)                       {}
func (d *stubDevice) Active() bool                                     { return true }

func (d *stubDevice) CaptureFrame(context.Context) (capture.RawFrame, error) {
	if d.fail.Load() {
		return capture.RawFrame{}, fmt.Errorf("%w: lens covered", capture.ErrCapture)
	}
	return capture.RawFrame{Image: image.NewRGBA(image.Rect(0, 0, 8, 8)), CapturedAt: time.Now()}, nil
}

type reply struct {
	ids []string
	err error
}

// gatedRecognizer blocks every request until the test releases it.
type gatedRecognizer struct {
	entered chan struct{}
	release chan reply
}

func newGated() *gatedRecognizer {
	return &gatedRecognizer{entered: make(chan struct{}, 8), release: make(chan reply)}
}

func (g *gatedRecognizer) Recognize(ctx context.Context, f model.Frame) (model.RecognitionResult, error) {
	g.entered <- struct{}{}
	select {
	case r := <-g.release:
		if r.err != nil {
			return model.RecognitionResult{}, r.err
		}
		return model.RecognitionResult{Identities: r.ids, CapturedAt: f.CapturedAt}, nil
	case <-ctx.Done():
		return model.RecognitionResult{}, fmt.Errorf("%w: %w", recognition.ErrTransport, ctx.Err())
	}
}

// countingRecognizer sleeps for each request and records peak concurrency.
type countingRecognizer struct {
	delay   time.Duration
	current atomic.Int32
	peak    atomic.Int32
	calls   atomic.Int32
}

func (c *countingRecognizer) Recognize(_ context.Context, f model.Frame) (model.RecognitionResult, error) {
	n := c.current.Add(1)
	defer c.current.Add(-1)
	c.calls.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(c.delay)
	return model.RecognitionResult{Identities: []string{"S1"}, CapturedAt: f.CapturedAt}, nil
}

type failingApplier struct{}

func (failingApplier) ApplyRecognition(context.Context, model.RecognitionResult) error {
	return errors.New("queue full")
}
func (failingApplier) ApplyLogSnapshot(context.Context, []model.LogEvent) error { return nil }
func (failingApplier) ApplyLogPush(context.Context, model.LogEvent) error       { return nil }

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func idle(s *sampler.Sampler) func() bool {
	return func() bool { return !s.State().InFlight }
}

func closeSampler(s *sampler.Sampler) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.Close(ctx)
}

func TestTickLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a sampler with a gated recognizer", t, func() {
		rec := newGated()
		store := reconcile.NewStore()
		status := scanstatus.New(scanstatus.WithMatchedHold(time.Hour))
		s := sampler.New(&stubDevice{}, rec, store,
			sampler.WithInterval(time.Hour),
			sampler.WithRequestTimeout(2*time.Second),
			sampler.WithStatusMachine(status),
		)
		defer closeSampler(s)

		Convey("When it is disarmed", func() {
			Convey("Then ticks are skipped", func() {
				So(s.Tick(ctx), ShouldEqual, sampler.TickSkippedDisarmed)
				So(s.State().Armed, ShouldBeFalse)
			})
		})

		Convey("When it is armed", func() {
			gen := s.Arm(ctx)
			<-rec.entered

			Convey("Then the first sample is attempted immediately and the status is Scanning", func() {
				So(gen, ShouldEqual, uint64(1))
				So(s.State().InFlight, ShouldBeTrue)
				So(status.Status(), ShouldEqual, model.ScanScanning)
				rec.release <- reply{ids: []string{}}
				So(waitFor(idle(s)), ShouldBeTrue)
			})

			Convey("Then arming again keeps the generation", func() {
				So(s.Arm(ctx), ShouldEqual, gen)
				rec.release <- reply{ids: []string{}}
				So(waitFor(idle(s)), ShouldBeTrue)
			})

			Convey("And another tick fires while the request is in flight", func() {
				outcome := s.Tick(ctx)

				Convey("Then it is dropped, not queued", func() {
					So(outcome, ShouldEqual, sampler.TickSkippedInFlight)
					rec.release <- reply{ids: []string{}}
					So(waitFor(idle(s)), ShouldBeTrue)
					So(len(rec.entered), ShouldEqual, 0)
				})
			})

			Convey("And the request matches two identities", func() {
				rec.release <- reply{ids: []string{"S1", "S2"}}
				So(waitFor(idle(s)), ShouldBeTrue)

				Convey("Then the live identities are replaced and the status is Matched", func() {
					So(store.Query(ctx).LiveIdentities, ShouldResemble, []string{"S1", "S2"})
					So(status.Status(), ShouldEqual, model.ScanMatched)
					So(s.State().LastSuccess.IsZero(), ShouldBeFalse)
				})
			})

			Convey("And the request returns no identities", func() {
				_ = store.ApplyRecognition(ctx, model.RecognitionResult{Identities: []string{"S9"}})
				rec.release <- reply{ids: []string{}}
				So(waitFor(idle(s)), ShouldBeTrue)

				Convey("Then the live identities become empty and the status is Idle", func() {
					So(store.Query(ctx).LiveIdentities, ShouldBeEmpty)
					So(status.Status(), ShouldEqual, model.ScanIdle)
				})
			})
		})
	})
}

func TestTransportFailure(t *testing.T) {
	ctx := context.Background()

	Convey("Given an armed sampler over a view with S9 live", t, func() {
		rec := newGated()
		store := reconcile.NewStore()
		_ = store.ApplyRecognition(ctx, model.RecognitionResult{Identities: []string{"S9"}})
		status := scanstatus.New()
		s := sampler.New(&stubDevice{}, rec, store, sampler.WithInterval(time.Hour), sampler.WithStatusMachine(status))
		defer closeSampler(s)

		s.Arm(ctx)
		<-rec.entered
		before := store.Query(ctx)

		Convey("When the request fails in transport", func() {
			rec.release <- reply{err: fmt.Errorf("%w: connection reset", recognition.ErrTransport)}
			So(waitFor(idle(s)), ShouldBeTrue)

			Convey("Then the view is unchanged and the status returns to Idle", func() {
				So(store.Query(ctx), ShouldResemble, before)
				So(status.Status(), ShouldEqual, model.ScanIdle)
				So(s.State().LastSuccess.IsZero(), ShouldBeTrue)
			})
		})
	})
}

func TestDisarmDiscardsInFlight(t *testing.T) {
	ctx := context.Background()

	Convey("Given an armed sampler with a request in flight", t, func() {
		rec := newGated()
		store := reconcile.NewStore()
		_ = store.ApplyRecognition(ctx, model.RecognitionResult{Identities: []string{"S9"}})
		status := scanstatus.New()
		s := sampler.New(&stubDevice{}, rec, store, sampler.WithInterval(time.Hour), sampler.WithStatusMachine(status))
		defer closeSampler(s)

		s.Arm(ctx)
		<-rec.entered

		Convey("When it is disarmed and the request then completes", func() {
			s.Disarm()
			So(status.Status(), ShouldEqual, model.ScanIdle)
			rec.release <- reply{ids: []string{"S1"}}
			So(waitFor(idle(s)), ShouldBeTrue)

			Convey("Then the result is discarded", func() {
				So(store.Query(ctx).LiveIdentities, ShouldResemble, []string{"S9"})
				So(status.Status(), ShouldEqual, model.ScanIdle)
				So(s.Tick(ctx), ShouldEqual, sampler.TickSkippedDisarmed)
			})
		})

		Convey("When it is re-armed before the old request completes", func() {
			s.Disarm()
			gen := s.Arm(ctx)
			So(gen, ShouldEqual, uint64(3))

			// The new loop's first tick sees the old request in flight.
			So(s.Tick(ctx), ShouldEqual, sampler.TickSkippedInFlight)
			time.Sleep(20 * time.Millisecond)

			rec.release <- reply{ids: []string{"OLD"}}
			So(waitFor(idle(s)), ShouldBeTrue)

			Convey("Then the old result is discarded and the next tick applies", func() {
				So(store.Query(ctx).LiveIdentities, ShouldResemble, []string{"S9"})

				done := make(chan sampler.TickOutcome, 1)
				go func() { done <- s.Tick(ctx) }()
				<-rec.entered
				rec.release <- reply{ids: []string{"NEW"}}
				So(<-done, ShouldEqual, sampler.TickApplied)
				So(store.Query(ctx).LiveIdentities, ShouldResemble, []string{"NEW"})
			})
		})
	})
}

func TestAtMostOneInFlight(t *testing.T) {
	ctx := context.Background()

	Convey("Given a sampler ticking faster than the recognizer answers", t, func() {
		rec := &countingRecognizer{delay: 15 * time.Millisecond}
		s := sampler.New(&stubDevice{}, rec, reconcile.NewStore(), sampler.WithInterval(3*time.Millisecond))

		Convey("When it runs for a while and ticks are also fired by hand", func() {
			s.Arm(ctx)
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 10; j++ {
						s.Tick(ctx)
						time.Sleep(time.Millisecond)
					}
				}()
			}
			wg.Wait()
			time.Sleep(50 * time.Millisecond)
			closeSampler(s)

			Convey("Then no two recognitions were ever outstanding together", func() {
				So(rec.calls.Load(), ShouldBeGreaterThan, int32(1))
				So(rec.peak.Load(), ShouldEqual, int32(1))
			})
		})
	})
}

func TestCaptureAndApplyFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given a sampler whose device fails to grab", t, func() {
		dev := &stubDevice{}
		dev.fail.Store(true)
		rec := newGated()
		status := scanstatus.New()
		s := sampler.New(dev, rec, reconcile.NewStore(), sampler.WithInterval(time.Hour), sampler.WithStatusMachine(status))
		defer closeSampler(s)

		s.Arm(ctx)

		Convey("When ticks run", func() {
			failed := waitFor(func() bool { return s.Tick(ctx) == sampler.TickCaptureFailed })

			Convey("Then they are skipped without calling the recognizer", func() {
				So(failed, ShouldBeTrue)
				So(len(rec.entered), ShouldEqual, 0)
				So(status.Status(), ShouldEqual, model.ScanIdle)
			})
		})
	})

	Convey("Given a sampler whose applier rejects results", t, func() {
		rec := newGated()
		s := sampler.New(&stubDevice{}, rec, failingApplier{}, sampler.WithInterval(time.Hour))
		defer closeSampler(s)

		s.Arm(ctx)
		<-rec.entered
		rec.release <- reply{ids: []string{}}
		So(waitFor(idle(s)), ShouldBeTrue)

		Convey("When another tick runs", func() {
			done := make(chan sampler.TickOutcome, 1)
			go func() { done <- s.Tick(ctx) }()
			<-rec.entered
			rec.release <- reply{ids: []string{"S1"}}

			Convey("Then the outcome reports the dropped result", func() {
				So(<-done, ShouldEqual, sampler.TickApplyFailed)
			})
		})
	})
}

func TestTickOutcomeString(t *testing.T) {
	Convey("Given tick outcomes", t, func() {
		So(sampler.TickApplied.String(), ShouldEqual, "applied")
		So(sampler.TickDiscarded.String(), ShouldEqual, "discarded")
		So(sampler.TickSkippedInFlight.String(), ShouldEqual, "skipped_in_flight")
		So(sampler.TickOutcome(99).String(), ShouldEqual, "unknown")
	})
}
