// Command mockdevice serves a simulated irrigation controller: the REST API and
// the live websocket feed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/logging"
)

type options struct {
	Addr           string
	Channels       int
	Seed           uint64
	DashboardEvery time.Duration
	LogEvery       time.Duration
	IgnorePings    bool
	DropAfter      time.Duration
	LowWaterAfter  time.Duration
	LogLevel       string
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("parse flags", "error", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		slog.Error("run mock device", "error", err)
		os.Exit(1)
	}
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("mockdevice", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts options
	fs.StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "listen address")
	fs.IntVar(&opts.Channels, "channels", 4, "number of plant/relay channels")
	fs.Uint64Var(&opts.Seed, "seed", uint64(time.Now().UnixNano()), "simulation seed")
	fs.DurationVar(&opts.DashboardEvery, "dashboard-every", 2*time.Second, "dashboard frame interval")
	fs.DurationVar(&opts.LogEvery, "log-every", 5*time.Second, "log frame interval, 0 disables")
	fs.BoolVar(&opts.IgnorePings, "ignore-pings", false, "never answer heartbeats")
	fs.DurationVar(&opts.DropAfter, "drop-after", 0, "drop all clients once after this delay")
	fs.DurationVar(&opts.LowWaterAfter, "low-water-after", 0, "report an empty reservoir after this delay")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.Channels <= 0 || opts.Channels > 16 {
		return options{}, fmt.Errorf("channels must be between 1 and 16, got %d", opts.Channels)
	}
	if opts.DashboardEvery < 100*time.Millisecond {
		return options{}, fmt.Errorf("dashboard interval too short: %s", opts.DashboardEvery)
	}

	return opts, nil
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logMgr := logging.NewManager()
	if err := logMgr.Configure(config.LoggingConfig{Level: opts.LogLevel}, ""); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logMgr.Close() }()
	logger := logMgr.Logger("mockdevice")

	dev := newDevice(opts.Channels, opts.Seed, logMgr.Logger("mockdevice.device"))
	srv := newServer(dev, serverOptions{IgnorePings: opts.IgnorePings}, logger)

	httpSrv := &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.Addr, "channels", opts.Channels)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	go simulate(ctx, srv, opts, logger)

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	srv.closeAll()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func simulate(ctx context.Context, srv *server, opts options, logger *slog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	start := time.Now()
	lastDashboard, lastLog := start, start
	dropped, drained := false, false
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dashboard := now.Sub(lastDashboard) >= opts.DashboardEvery
			if dashboard {
				lastDashboard = now
			}
			logLine := opts.LogEvery > 0 && now.Sub(lastLog) >= opts.LogEvery
			if logLine {
				lastLog = now
			}
			if opts.LowWaterAfter > 0 && !drained && now.Sub(start) >= opts.LowWaterAfter {
				drained = true
				logger.Info("reservoir drained")
				srv.dev.SetWaterLevel(false)
				dashboard = true
			}
			srv.tick(now, dashboard, logLine)

			if opts.DropAfter > 0 && !dropped && now.Sub(start) >= opts.DropAfter {
				dropped = true
				logger.Info("dropping all clients")
				srv.closeAll()
			}
		}
	}
}
