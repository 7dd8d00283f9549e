// Package logfeed keeps the recent attendance window in sync with the
// upstream log service, by periodic snapshot polling and by websocket push.
package logfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/reconcile"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

const maxSnapshotBytes = 4 << 20

// Poller fetches the most recent log window and hands it to the applier as a
// full-replace snapshot.
type Poller struct {
	url      string
	client   *http.Client
	interval time.Duration
	applier  reconcile.Applier
	log      logger.Logger
}

// NewPoller creates a poller for url.
func NewPoller(url string, applier reconcile.Applier, opts ...Option) *Poller {
	o := newOptions("logfeed.poller", opts)
	return &Poller{
		url:      url,
		client:   o.client,
		interval: o.interval,
		applier:  applier,
		log:      o.log,
	}
}

// Poll performs one fetch. Unparseable records are skipped.
func (p *Poller) Poll(ctx context.Context) ([]model.LogEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrFeed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFeed, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrFeed, err)
	}

	events, skipped, err := parseSnapshot(body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		p.log.Warn(ctx, "skipped malformed log records", logger.Int("skipped", skipped))
		metrics.RecordFeedPoll("partial")
	}
	return events, nil
}

// Run polls immediately and then on every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	events, err := p.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.RecordFeedPoll("error")
		metrics.RecordErrorByComponent("logfeed", "poll")
		p.log.Warn(ctx, "log poll failed", logger.Error(err))
		return
	}
	if err := p.applier.ApplyLogSnapshot(ctx, events); err != nil {
		metrics.RecordFeedPoll("dropped")
		p.log.Warn(ctx, "log snapshot dropped", logger.Error(err))
		return
	}
	metrics.RecordFeedPoll("ok")
}
