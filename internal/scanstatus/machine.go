// Package scanstatus derives the idle/scanning/matched affordance from
// sampler activity and recognition outcomes.
package scanstatus

import (
	"context"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

const defaultMatchedHold = 1000 * time.Millisecond

// Machine is safe for concurrent use. Transitions that are not listed
// below are ignored:
//
//	Idle     -> Scanning  BeginScan
//	Scanning -> Matched   EndScan(true)
//	Scanning -> Idle      EndScan(false)
//	Matched  -> Idle      after the hold duration
//	any      -> Idle      Reset
type Machine struct {
	mu     sync.Mutex
	status model.ScanStatus
	epoch  uint64
	timer  *time.Timer
	hold   time.Duration
	log    logger.Logger
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithMatchedHold sets how long Matched is displayed before returning to Idle.
func WithMatchedHold(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.hold = d
		}
	}
}

// WithLogger sets the machine logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates a machine in Idle.
func New(opts ...Option) *Machine {
	m := &Machine{
		status: model.ScanIdle,
		hold:   defaultMatchedHold,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Get().Named("scanstatus")
	}
	metrics.UpdateScanStatus(int(m.status))
	return m
}

// Status returns the current status.
func (m *Machine) Status() model.ScanStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// BeginScan moves Idle to Scanning. It reports whether the transition happened.
func (m *Machine) BeginScan() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != model.ScanIdle {
		return false
	}
	m.setLocked(model.ScanScanning)
	return true
}

// EndScan settles a scan. A match holds Matched for the hold duration,
// independent of later ticks.
func (m *Machine) EndScan(matched bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != model.ScanScanning {
		return false
	}
	if !matched {
		m.setLocked(model.ScanIdle)
		return true
	}

	m.setLocked(model.ScanMatched)
	epoch := m.epoch
	m.timer = time.AfterFunc(m.hold, func() { m.expire(epoch) })
	return true
}

// Reset returns to Idle and cancels a pending Matched expiry.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.epoch++
	if m.status != model.ScanIdle {
		m.setLocked(model.ScanIdle)
	}
}

func (m *Machine) expire(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A Reset (and possibly a new match) happened since this timer was armed.
	if epoch != m.epoch || m.status != model.ScanMatched {
		return
	}
	m.timer = nil
	m.setLocked(model.ScanIdle)
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// setLocked bumps the epoch on every transition so that only the timer
// armed by the latest Matched can expire it.
func (m *Machine) setLocked(next model.ScanStatus) {
	prev := m.status
	m.status = next
	m.epoch++
	metrics.UpdateScanStatus(int(next))
	metrics.RecordScanTransition(prev.String(), next.String())
	m.log.Debug(context.Background(), "scan status changed",
		logger.String("from", prev.String()),
		logger.String("to", next.String()),
	)
}
