package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/rollcall/internal/upstreamsim"
	"github.com/okian/rollcall/pkg/logger"
)

func main() {
	def := upstreamsim.DefaultConfig()
	var (
		addr       = flag.String("addr", def.Addr, "Listen address")
		roster     = flag.Int("roster", def.RosterSize, "Registered identities")
		match      = flag.Float64("match", def.MatchRate, "Probability that a frame matches anyone")
		fail       = flag.Float64("fail", def.FailRate, "Probability that a recognition request fails")
		minLatency = flag.Duration("min-latency", def.MinLatency, "Lower bound of recognition latency")
		maxLatency = flag.Duration("max-latency", def.MaxLatency, "Upper bound of recognition latency")
		events     = flag.Duration("events", def.EventInterval, "Period of background attendance events")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		upstreamsim.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := upstreamsim.Config{
		Addr:          *addr,
		RosterSize:    *roster,
		MatchRate:     *match,
		FailRate:      *fail,
		MinLatency:    *minLatency,
		MaxLatency:    *maxLatency,
		EventInterval: *events,
		LogWindow:     def.LogWindow,
	}
	if err := upstreamsim.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("simulator failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
