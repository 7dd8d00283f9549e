package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"
)

const (
	defaultSnapshotTimeout = 5 * time.Second
	maxSnapshotBytes       = 16 << 20
)

// snapshotSource pulls JPEG stills from an IP camera snapshot endpoint.
type snapshotSource struct {
	url    string
	client *http.Client
}

// NewSnapshotDevice returns a camera that fetches one still per capture from url.
func NewSnapshotDevice(url string, opts ...Option) *Camera {
	return newCamera(&snapshotSource{
		url:    url,
		client: &http.Client{Timeout: defaultSnapshotTimeout},
	}, opts)
}

func (s *snapshotSource) name() string { return "snapshot:" + s.url }

// open probes the endpoint once so that permission and reachability
// problems surface at activation rather than on every tick.
func (s *snapshotSource) open(ctx context.Context) error {
	resp, err := s.get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSnapshotBytes))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrPermissionDenied, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s", ErrNoDevice, resp.Status)
	}
	return nil
}

func (s *snapshotSource) grab(ctx context.Context) (image.Image, error) {
	resp, err := s.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: snapshot status %s", ErrCapture, resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %w", ErrCapture, err)
	}
	return img, nil
}

func (s *snapshotSource) close() {
	s.client.CloseIdleConnections()
}

func (s *snapshotSource) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return resp, nil
}
