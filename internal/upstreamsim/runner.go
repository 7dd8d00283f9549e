package upstreamsim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/okian/rollcall/pkg/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Run serves the simulated upstream until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	sim := NewServer(cfg)
	log := logger.Get().Named("upstreamsim")

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           sim.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if cfg.EventInterval > 0 {
		go sim.generate(ctx, cfg.EventInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "simulated upstream listening",
			logger.String("addr", ln.Addr().String()),
			logger.Int("roster", len(sim.roster)),
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info(context.Background(), "simulated upstream stopped")
	return nil
}

// generate records background attendance so the feeds have traffic even
// without frames.
func (s *Server) generate(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RecordRandom()
		}
	}
}
