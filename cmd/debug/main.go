package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/irrigo/irrigo/internal/app"
	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/domain"
	"github.com/irrigo/irrigo/internal/eventloop"
	"github.com/irrigo/irrigo/internal/logging"
	"github.com/irrigo/irrigo/internal/notifications"
	"github.com/irrigo/irrigo/internal/persistence"
	"github.com/irrigo/irrigo/internal/protocol"
	"github.com/irrigo/irrigo/internal/transport"
)

const maxRawPreviewLen = 64

type options struct {
	Connector      string
	Host           string
	Port           int
	Path           string
	SerialPort     string
	SerialBaud     int
	ListenFor      time.Duration
	BackgroundAt   time.Duration
	ForegroundAt   time.Duration
	ListPorts      bool
	Notify         bool
	Persist        bool
	LogLevel       string
	RelayIndex     int
	RelayActive    bool
	RelayCommandAt time.Duration
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
		slog.Error("run debug tool", "error", err)
		os.Exit(1)
	}
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("irrigo-debug", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts options
	fs.StringVar(&opts.Connector, "connector", "", "connector type: websocket or serial (default from config)")
	fs.StringVar(&opts.Host, "host", "", "controller host")
	fs.IntVar(&opts.Port, "port", 0, "controller websocket port")
	fs.StringVar(&opts.Path, "path", "", "controller websocket path")
	fs.StringVar(&opts.SerialPort, "serial-port", "", "serial port, e.g. /dev/ttyUSB0")
	fs.IntVar(&opts.SerialBaud, "baud", 0, "serial baud rate")
	fs.DurationVar(&opts.ListenFor, "listen-for", 0, "listen duration, e.g. 30s")
	fs.DurationVar(&opts.BackgroundAt, "background-after", 0, "report the app as hidden after this delay")
	fs.DurationVar(&opts.ForegroundAt, "foreground-after", 0, "report the app as visible again after this delay")
	fs.BoolVar(&opts.ListPorts, "list-ports", false, "print available serial ports and exit")
	fs.BoolVar(&opts.Notify, "notify", false, "show desktop notifications for link loss and low water")
	fs.BoolVar(&opts.Persist, "persist", false, "store device logs and sensor samples in the app database")
	fs.StringVar(&opts.LogLevel, "log-level", "debug", "log level")
	fs.IntVar(&opts.RelayIndex, "relay", -1, "relay index to switch once connected")
	fs.BoolVar(&opts.RelayActive, "relay-on", true, "state to switch --relay to")
	fs.DurationVar(&opts.RelayCommandAt, "relay-after", 3*time.Second, "delay before the relay command")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.ForegroundAt > 0 && opts.ForegroundAt <= opts.BackgroundAt {
		return options{}, errors.New("--foreground-after must be later than --background-after")
	}

	return opts, nil
}

// applyOptions overlays command line settings on the saved connection.
func applyOptions(cfg config.AppConfig, opts options) (config.AppConfig, error) {
	if c := strings.TrimSpace(opts.Connector); c != "" {
		cfg.Connection.Connector = config.ConnectorType(c)
	}
	if h := strings.TrimSpace(opts.Host); h != "" {
		cfg.Connection.Host = h
	}
	if opts.Port > 0 {
		cfg.Connection.Port = opts.Port
	}
	if p := strings.TrimSpace(opts.Path); p != "" {
		cfg.Connection.Path = p
	}
	if p := strings.TrimSpace(opts.SerialPort); p != "" {
		cfg.Connection.SerialPort = p
	}
	if opts.SerialBaud > 0 {
		cfg.Connection.SerialBaud = opts.SerialBaud
	}
	cfg.Logging.Level = opts.LogLevel
	cfg.Logging.LogToFile = false
	cfg.FillMissingDefaults()

	if err := cfg.Validate(); err != nil {
		return config.AppConfig{}, fmt.Errorf("invalid connection: %w", err)
	}

	return cfg, nil
}

func run(opts options) error {
	if opts.ListPorts {
		ports, err := transport.Ports()
		if err != nil {
			return err
		}
		for _, port := range ports {
			fmt.Println(port)
		}

		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	saved, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := applyOptions(saved, opts)
	if err != nil {
		return err
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("cli")
	logger.Info("starting irrigo debug", "version", app.BuildVersion(), "build_date", app.BuildDateYMD())

	b := bus.New(logMgr.Logger("bus"), bus.WithGuaranteedTopics(connectors.GuaranteedTopics...))
	defer b.Close()

	logStore := domain.NewLogStore(domain.DefaultLogCapacity)
	dashboardStore := domain.NewDashboardStore()
	logStore.Start(ctx, b)
	dashboardStore.Start(ctx, b)

	if opts.Persist {
		closeDB, err := startPersistence(ctx, paths, b, logMgr)
		if err != nil {
			return err
		}
		defer closeDB()
	}

	tr, err := app.NewConnectionTransport(cfg.Connection)
	if err != nil {
		return fmt.Errorf("initialize transport: %w", err)
	}

	loop := eventloop.New(logMgr.Logger("eventloop"))
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go loop.Run(loopCtx)

	var foreground atomic.Bool
	foreground.Store(true)
	linkSvc := app.NewLinkService(loop, tr, cfg.Link, b, logMgr.Device, logMgr.Logger("link"))
	if opts.Notify {
		sender := notifications.NewDesktopSender("Irrigo debug", logMgr.Logger("notifications"))
		notifier := app.NewNotificationService(b, func() config.AppConfig { return cfg }, foreground.Load, sender, logMgr.Logger("notifications"))
		notifier.Start(ctx)
	}

	watch(ctx, b, logger)
	logger.Info("connecting", "transport", tr.Name(), "target", tr.Target())
	linkSvc.Start()
	defer func() {
		linkSvc.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = loop.Do(shutdownCtx, func() {})
	}()

	schedule(ctx, opts.BackgroundAt, func() {
		logger.Info("reporting app hidden")
		foreground.Store(false)
		linkSvc.SetForeground(false)
	})
	schedule(ctx, opts.ForegroundAt, func() {
		logger.Info("reporting app visible")
		foreground.Store(true)
		linkSvc.SetForeground(true)
	})
	if opts.RelayIndex >= 0 {
		schedule(ctx, opts.RelayCommandAt, func() {
			logger.Info("switching relay", "index", opts.RelayIndex, "active", opts.RelayActive)
			dashboardStore.MarkPending(opts.RelayIndex, opts.RelayActive)
			linkSvc.SetRelay(opts.RelayIndex, opts.RelayActive)
		})
	}

	if opts.ListenFor > 0 {
		logger.Info("listen mode", "duration", opts.ListenFor)
		select {
		case <-ctx.Done():
		case <-time.After(opts.ListenFor):
		}
	} else {
		logger.Info("listening until interrupt")
		<-ctx.Done()
	}
	logSummary(logger, logStore, dashboardStore)

	return nil
}

func startPersistence(ctx context.Context, paths app.Paths, b bus.MessageBus, logMgr *logging.Manager) (func(), error) {
	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	writer := persistence.NewWriterQueue(logMgr.Logger("persistence"), 256)
	writer.Start(ctx)
	domain.StartPersistenceProjection(ctx, b, writer, persistence.NewLogRepo(db), persistence.NewSampleRepo(db))

	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := writer.Flush(flushCtx); err != nil {
			slog.Warn("flush pending writes", "error", err)
		}
		if err := db.Close(); err != nil {
			slog.Warn("close sqlite", "error", err)
		}
	}, nil
}

func schedule(ctx context.Context, after time.Duration, fn func()) {
	if after <= 0 {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(after):
			fn()
		}
	}()
}

func watch(ctx context.Context, b bus.MessageBus, logger *slog.Logger) {
	topics := []string{
		connectors.TopicConnStatus,
		connectors.TopicDeviceLog,
		connectors.TopicDashboard,
		connectors.TopicRelayUpdate,
		connectors.TopicCountdown,
		connectors.TopicRelayCommandResult,
		connectors.TopicParseError,
		connectors.TopicLowWater,
	}
	sub := b.Subscribe(topics...)

	go func() {
		defer b.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				logEvent(logger, raw)
			}
		}
	}()
}

func logEvent(logger *slog.Logger, raw any) {
	switch ev := raw.(type) {
	case connectors.ConnectionStatus:
		logger.Info("conn", "state", ev.State, "transport", ev.TransportName, "target", ev.Target,
			"attempt", ev.Attempt, "retry_in", ev.RetryIn, "deferred", ev.Deferred, "error", ev.Err)
	case connectors.DeviceLog:
		logger.Info("device-log", "line", ev.Entry.String())
	case connectors.DashboardUpdate:
		d := ev.Dashboard
		logger.Info("dashboard", "plants", len(d.Plants), "temperature", d.Temperature,
			"pressure", d.Pressure, "water_ok", d.WaterLevel, "relays", len(d.Relays))
	case protocol.RelayUpdate:
		logger.Info("relay", "index", ev.Index, "active", ev.Active, "remaining_ms", ev.RemainingMs)
	case connectors.CountdownTick:
		logger.Debug("countdown", "index", ev.Index, "seconds", ev.Seconds, "cleared", ev.Cleared)
	case connectors.RelayCommandResult:
		logger.Info("relay-command", "index", ev.Index, "active", ev.Active, "accepted", ev.Accepted, "error", ev.Err)
	case connectors.ParseFailure:
		logger.Warn("parse-error", "error", ev.Err, "raw", previewRaw(ev.Raw))
	case connectors.LowWater:
		logger.Info("low-water", "low", ev.Low)
	default:
		logger.Debug("unhandled event", "type", fmt.Sprintf("%T", raw))
	}
}

func logSummary(logger *slog.Logger, logs *domain.LogStore, dashboard *domain.DashboardStore) {
	logger.Info("device log summary", "entries", len(logs.Entries()))
	d, at := dashboard.Dashboard()
	if at.IsZero() {
		logger.Info("no dashboard received")
		return
	}
	logger.Info("last dashboard", "at", at.Format(time.RFC3339), "temperature", d.Temperature, "water_ok", d.WaterLevel)
	for _, relay := range dashboard.Relays() {
		logger.Info("relay state", "index", relay.Index, "active", relay.Active, "pending", relay.Pending,
			"countdown", relay.CountdownSeconds, "running", relay.CountdownRunning)
	}
}

func previewRaw(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) <= maxRawPreviewLen {
		return raw
	}

	return raw[:maxRawPreviewLen] + "..."
}
