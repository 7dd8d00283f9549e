package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/okian/rollcall/internal/domain/model"
	"golang.org/x/image/draw"
)

// EncodeOptions bound the encoded frame.
type EncodeOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int // JPEG quality, 1..100
}

// DefaultEncodeOptions matches the 1280x720 capture constraint at quality 50.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{MaxWidth: 1280, MaxHeight: 720, Quality: 50}
}

// Encoder turns raw stills into numbered JPEG frames.
type Encoder struct {
	opts EncodeOptions
	seq  atomic.Uint64
}

// NewEncoder creates an encoder. Zero fields fall back to the defaults.
func NewEncoder(opts EncodeOptions) *Encoder {
	def := DefaultEncodeOptions()
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	return &Encoder{opts: opts}
}

// Encode scales raw to fit the bounding box, never upscaling, and
// compresses it to JPEG.
func (e *Encoder) Encode(raw RawFrame) (model.Frame, error) {
	if raw.Image == nil {
		return model.Frame{}, fmt.Errorf("%w: empty frame", ErrEncode)
	}

	img := raw.Image
	bounds := img.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), e.opts.MaxWidth, e.opts.MaxHeight)
	if w != bounds.Dx() || h != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.opts.Quality}); err != nil {
		return model.Frame{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return model.Frame{
		Seq:        e.seq.Add(1),
		TraceID:    uuid.NewString(),
		Width:      w,
		Height:     h,
		Data:       buf.Bytes(),
		CapturedAt: raw.CapturedAt,
	}, nil
}

// fitWithin returns the largest size with the same aspect ratio that fits
// in maxW x maxH, or the original size when it already fits.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	return nw, nh
}
