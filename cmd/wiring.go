package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/rollcall/internal/adapters/http/api"
	"github.com/okian/rollcall/internal/adapters/http/swagger"
	app "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/capture"
	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/pkg/logger"
)

// newDevice builds the capture device selected by the config.
func newDevice(cfg *config.Config) (capture.Device, error) {
	switch strings.ToLower(cfg.CameraSource) {
	case config.CameraDirectory:
		return capture.NewDirectoryDevice(cfg.CameraDir), nil
	case config.CameraSnapshot:
		return capture.NewSnapshotDevice(cfg.CameraSnapshotURL), nil
	default:
		return nil, fmt.Errorf("%w: unknown camera_source %q", config.ErrInvalidConfig, cfg.CameraSource)
	}
}

func encodeOptions(cfg *config.Config) capture.EncodeOptions {
	return capture.EncodeOptions{
		MaxWidth:  cfg.FrameMaxWidth,
		MaxHeight: cfg.FrameMaxHeight,
		Quality:   cfg.JPEGQuality,
	}
}

// serviceOptions maps the config onto service options.
func serviceOptions(cfg *config.Config, device capture.Device, l logger.Logger) []app.Option {
	return []app.Option{
		app.WithLogger(l),
		app.WithDevice(device),
		app.WithRecognitionURL(cfg.RecognitionURL),
		app.WithRecognitionTimeout(cfg.RecognitionTimeout()),
		app.WithLogPollURL(cfg.LogPollURL),
		app.WithLogPushURL(cfg.LogPushURL),
		app.WithSampleInterval(cfg.SampleInterval()),
		app.WithMatchedHold(cfg.MatchedHold()),
		app.WithPollInterval(cfg.LogPollInterval()),
		app.WithRecentCapacity(cfg.RecentCapacity),
		app.WithQueueSize(cfg.UpdateQueueSize),
		app.WithDedupeSize(cfg.PushDedupeSize),
		app.WithEncodeOptions(encodeOptions(cfg)),
		app.WithAutoArm(cfg.AutoArm),
	}
}

// newMux registers the control API and its OpenAPI document.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return mux
}
