// Package capture owns the camera stream and turns raw stills into encoded
// frames for recognition.
package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Handle identifies an open stream.
type Handle struct {
	ID       uuid.UUID
	Source   string
	OpenedAt time.Time
}

// RawFrame is a decoded still straight from the source.
type RawFrame struct {
	Image      image.Image
	CapturedAt time.Time
}

// Device is the capture contract used by the sampler and the service.
type Device interface {
	// Activate opens the stream. Activating an active device returns the
	// current handle.
	Activate(ctx context.Context) (Handle, error)
	// Deactivate releases the stream. It is idempotent.
	Deactivate(ctx context.Context)
	// CaptureFrame grabs one still. It fails with ErrInactive when no
	// stream is open.
	CaptureFrame(ctx context.Context) (RawFrame, error)
	Active() bool
}

// source is the hardware-specific half of a Camera.
type source interface {
	name() string
	open(ctx context.Context) error
	grab(ctx context.Context) (image.Image, error)
	close()
}

// Camera enforces the Device contract on top of a source: one open stream
// at most, and no grabs outside of an activation. The lock is never held
// across a grab, so Deactivate does not wait for a slow source.
type Camera struct {
	mu     sync.Mutex
	src    source
	handle *Handle
	stream context.Context // cancelled on Deactivate
	cancel context.CancelFunc
	log    logger.Logger
	now    func() time.Time
}

var _ Device = (*Camera)(nil)

func newCamera(src source, opts []Option) *Camera {
	c := &Camera{
		src: src,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("capture")
	}
	return c
}

func (c *Camera) Activate(ctx context.Context) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil {
		return *c.handle, nil
	}

	if err := c.src.open(ctx); err != nil {
		metrics.RecordActivationFailure(activationReason(err))
		c.log.Warn(ctx, "camera activation failed", logger.String("source", c.src.name()), logger.Error(err))
		return Handle{}, err
	}

	h := Handle{ID: uuid.New(), Source: c.src.name(), OpenedAt: c.now()}
	c.handle = &h
	c.stream, c.cancel = context.WithCancel(context.Background())
	metrics.UpdateDeviceActive(true)
	c.log.Info(ctx, "camera activated", logger.String("source", h.Source), logger.String("handle", h.ID.String()))
	return h, nil
}

func (c *Camera) Deactivate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return
	}
	c.cancel()
	c.src.close()
	c.log.Info(ctx, "camera deactivated", logger.String("handle", c.handle.ID.String()))
	c.handle = nil
	c.stream, c.cancel = nil, nil
	metrics.UpdateDeviceActive(false)
}

// CaptureFrame grabs outside the lock. A grab still running when the stream
// is deactivated is cancelled, and its result reported as ErrInactive.
func (c *Camera) CaptureFrame(ctx context.Context) (RawFrame, error) {
	c.mu.Lock()
	if c.handle == nil {
		c.mu.Unlock()
		return RawFrame{}, ErrInactive
	}
	id := c.handle.ID
	stream := c.stream
	c.mu.Unlock()

	grabCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(stream, cancel)
	defer stop()

	img, err := c.src.grab(grabCtx)

	c.mu.Lock()
	current := c.handle != nil && c.handle.ID == id
	c.mu.Unlock()
	if !current {
		return RawFrame{}, ErrInactive
	}
	if err != nil {
		return RawFrame{}, err
	}
	return RawFrame{Image: img, CapturedAt: c.now()}, nil
}

func (c *Camera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

func activationReason(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNoDevice):
		return "no_device"
	default:
		return "other"
	}
}
