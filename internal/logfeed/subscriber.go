package logfeed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/net/websocket"

	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/reconcile"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Subscriber consumes the push channel. Each message carries one record and
// is parsed on its own; a malformed message is dropped and the connection
// kept. The connection is re-established with exponential backoff.
type Subscriber struct {
	url        string
	origin     string
	applier    reconcile.Applier
	deduper    dedupe.Deduper
	newBackOff func() backoff.BackOff
	log        logger.Logger

	connected atomic.Bool
}

// NewSubscriber creates a subscriber for the websocket at rawURL.
func NewSubscriber(rawURL string, applier reconcile.Applier, opts ...Option) *Subscriber {
	o := newOptions("logfeed.subscriber", opts)
	if o.origin == "" {
		o.origin = originFor(rawURL)
	}
	if o.deduper == nil {
		o.deduper = dedupe.NewInMemoryDeduper()
	}
	return &Subscriber{
		url:        rawURL,
		origin:     o.origin,
		applier:    applier,
		deduper:    o.deduper,
		newBackOff: o.newBackOff,
		log:        o.log,
	}
}

// Connected reports whether a push connection is currently open.
func (s *Subscriber) Connected() bool {
	return s.connected.Load()
}

// Run keeps a connection open until ctx is done.
func (s *Subscriber) Run(ctx context.Context) {
	b := s.newBackOff()
	for {
		err := s.session(ctx, b)
		if ctx.Err() != nil {
			return
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			s.log.Error(ctx, "giving up on log push", logger.Error(err))
			return
		}
		metrics.RecordFeedReconnect()
		s.log.Warn(ctx, "log push disconnected", logger.Error(err), logger.Duration("retry_in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session dials once and reads until the connection fails.
func (s *Subscriber) session(ctx context.Context, b backoff.BackOff) error {
	cfg, err := websocket.NewConfig(s.url, s.origin)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFeed, err)
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrFeed, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
		s.connected.Store(false)
		metrics.UpdateFeedPushConnected(false)
	}()

	b.Reset()
	s.connected.Store(true)
	metrics.UpdateFeedPushConnected(true)
	s.log.Info(ctx, "log push connected", logger.String("url", s.url))

	for {
		var msg []byte
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			return fmt.Errorf("%w: receive: %w", ErrFeed, err)
		}
		s.handle(ctx, msg)
	}
}

func (s *Subscriber) handle(ctx context.Context, msg []byte) {
	event, err := ParseRecord(msg)
	if err != nil {
		metrics.RecordFeedPushMessage("malformed")
		s.log.Debug(ctx, "dropping malformed push message", logger.Error(err))
		return
	}

	key := event.Key()
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordFeedPushMessage("duplicate")
		return
	}
	if err := s.applier.ApplyLogPush(ctx, event); err != nil {
		s.deduper.Unrecord(ctx, key)
		metrics.RecordFeedPushMessage("dropped")
		if !errors.Is(err, context.Canceled) {
			s.log.Warn(ctx, "push event dropped", logger.String("key", key), logger.Error(err))
		}
		return
	}
	metrics.RecordFeedPushMessage("applied")
}

// originFor derives an http(s) origin from a ws(s) URL.
func originFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "http://localhost/"
	}
	scheme := "http"
	if strings.EqualFold(u.Scheme, "wss") {
		scheme = "https"
	}
	return scheme + "://" + u.Host + "/"
}
