package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/deviceapi"
	"github.com/irrigo/irrigo/internal/domain"
	"github.com/irrigo/irrigo/internal/eventloop"
	"github.com/irrigo/irrigo/internal/logging"
	"github.com/irrigo/irrigo/internal/persistence"
)

const shutdownTimeout = 3 * time.Second

// ErrNoDeviceAPI is returned for REST calls while the serial connector is active.
var ErrNoDeviceAPI = errors.New("controller REST api needs the websocket connector")

// RuntimeCore holds process-wide services.
type RuntimeCore struct {
	Paths      Paths
	Config     config.AppConfig
	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB
}

// RuntimeDomain holds repositories and in-memory projections.
type RuntimeDomain struct {
	LogRepo        *persistence.LogRepo
	SampleRepo     *persistence.SampleRepo
	WriterQueue    *persistence.WriterQueue
	LogStore       *domain.LogStore
	DashboardStore *domain.DashboardStore
}

// RuntimeConnectivity holds the event loop and everything that talks to the
// controller.
type RuntimeConnectivity struct {
	Loop                *eventloop.Loop
	ConnectionTransport *SwitchableTransport
	Link                *LinkService
	DeviceAPI           *deviceapi.Client
}

type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Core         RuntimeCore
	Domain       RuntimeDomain
	Connectivity RuntimeConnectivity

	foreground atomic.Bool

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnectionStatus
	connStatusKnown bool
}

// Initialize resolves paths and loads config from the user config dir.
func Initialize(parent context.Context) (*Runtime, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}

	return InitializeWithPaths(parent, paths)
}

func InitializeWithPaths(parent context.Context, paths Paths) (*Runtime, error) {
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Core: RuntimeCore{
			Paths:  paths,
			Config: cfg,
		},
	}
	rt.foreground.Store(true)

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()

		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.Core.LogManager = logMgr
	slog.Info("starting irrigo runtime", "version", BuildVersion(), "build_date", BuildDateYMD())

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		_ = rt.Close()

		return nil, err
	}
	rt.Core.DB = db
	rt.Domain.LogRepo = persistence.NewLogRepo(db)
	rt.Domain.SampleRepo = persistence.NewSampleRepo(db)

	logStore := domain.NewLogStore(domain.DefaultLogCapacity)
	if err := domain.LoadStoresFromRepositories(ctx, logStore, rt.Domain.LogRepo); err != nil {
		_ = rt.Close()

		return nil, err
	}
	rt.Domain.LogStore = logStore
	rt.Domain.DashboardStore = domain.NewDashboardStore()

	b := bus.New(logMgr.Logger("bus"), bus.WithGuaranteedTopics(connectors.GuaranteedTopics...))
	rt.Core.Bus = b
	connSub := b.Subscribe(connectors.TopicConnStatus)
	go rt.captureConnStatus(ctx, b, connSub)
	rt.setConnStatus(ConnectionStatusFromConfig(cfg.Connection))
	logStore.Start(ctx, b)
	rt.Domain.DashboardStore.Start(ctx, b)

	writerQueue := persistence.NewWriterQueue(logMgr.Logger("persistence"), 512)
	writerQueue.Start(ctx)
	rt.Domain.WriterQueue = writerQueue
	domain.StartPersistenceProjection(ctx, b, writerQueue, rt.Domain.LogRepo, rt.Domain.SampleRepo)
	rt.pruneDeviceLogs()

	connTransport, err := NewConnectionTransport(cfg.Connection)
	if err != nil {
		_ = rt.Close()

		return nil, fmt.Errorf("initialize transport: %w", err)
	}
	rt.Connectivity.ConnectionTransport = connTransport
	rt.Connectivity.DeviceAPI = newDeviceAPI(cfg.Connection, logMgr.Logger("deviceapi"))

	loop := eventloop.New(logMgr.Logger("eventloop"))
	go loop.Run(ctx)
	rt.Connectivity.Loop = loop
	rt.Connectivity.Link = NewLinkService(loop, connTransport, cfg.Link, b, logMgr.Device, logMgr.Logger("link"))

	return rt, nil
}

// StartLink connects when a controller is configured.
func (r *Runtime) StartLink() {
	if ConnectionTarget(r.CurrentConfig().Connection) == "" {
		slog.Info("no controller configured, link stays idle")
		return
	}
	r.link().Start()
}

func (r *Runtime) link() *LinkService {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Connectivity.Link
}

// SetRelay requests a relay toggle and marks it pending until acknowledged.
func (r *Runtime) SetRelay(index int, active bool) {
	if r.Domain.DashboardStore != nil {
		r.Domain.DashboardStore.MarkPending(index, active)
	}
	r.link().SetRelay(index, active)
}

func (r *Runtime) Reconnect() {
	r.link().Reconnect()
}

// SetForeground records window visibility and forwards it to the link.
func (r *Runtime) SetForeground(foreground bool) {
	r.foreground.Store(foreground)
	r.link().SetForeground(foreground)
}

func (r *Runtime) IsForeground() bool {
	return r.foreground.Load()
}

func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Core.Config
}

// DeviceAPI returns the REST client for the configured controller.
func (r *Runtime) DeviceAPI() (*deviceapi.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Connectivity.DeviceAPI == nil {
		return nil, ErrNoDeviceAPI
	}

	return r.Connectivity.DeviceAPI, nil
}

// ImportDeviceLogs drains the controller's buffered log and adds it to history.
func (r *Runtime) ImportDeviceLogs(ctx context.Context) (int, error) {
	api, err := r.DeviceAPI()
	if err != nil {
		return 0, err
	}
	entries, err := api.FetchLogs(ctx)
	if err != nil && len(entries) == 0 {
		return 0, fmt.Errorf("fetch device logs: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		l := domain.DeviceLogFromEntry(entry, domain.LogSourceHistory, now)
		r.Domain.LogStore.Append(l)
		r.Domain.WriterQueue.Enqueue("insert_device_log", func(writeCtx context.Context) error {
			_, err := r.Domain.LogRepo.Insert(writeCtx, l)

			return err
		})
	}
	if err != nil {
		slog.Warn("device log fetch stopped early", "imported", len(entries), "error", err)
	}

	return len(entries), nil
}

func (r *Runtime) captureConnStatus(ctx context.Context, b bus.MessageBus, sub bus.Subscription) {
	defer b.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			r.setConnStatus(status)
		}
	}
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusKnown = true
	r.connStatusMu.Unlock()
}

func (r *Runtime) CurrentConnStatus() (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()

	return status, known
}

// SaveAndApplyConfig persists cfg and applies it. A new controller target
// reconnects; new link tuning rebuilds the link on the same loop.
func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if err := config.Save(r.Core.Paths.ConfigFile, cfg); err != nil {
		r.mu.Unlock()

		return err
	}
	previous := r.Core.Config
	r.Core.Config = cfg
	if cfg.Connection != previous.Connection {
		r.Connectivity.DeviceAPI = newDeviceAPI(cfg.Connection, r.componentLogger("deviceapi"))
	}
	r.mu.Unlock()

	if r.Core.LogManager != nil {
		if err := r.Core.LogManager.Configure(cfg.Logging, r.Core.Paths.LogFile); err != nil {
			return err
		}
	}

	targetChanged := false
	if r.Connectivity.ConnectionTransport != nil {
		changed, err := r.Connectivity.ConnectionTransport.Apply(cfg.Connection)
		if err != nil {
			return err
		}
		targetChanged = changed
	}

	if cfg.Connection.Connector != previous.Connection.Connector && r.Domain.DashboardStore != nil {
		r.Domain.DashboardStore.Reset()
	}
	if cfg.Link != previous.Link && r.Connectivity.Loop != nil {
		r.rebuildLink(cfg.Link)

		return nil
	}
	if targetChanged && r.link() != nil {
		r.link().Reconnect()
	}

	return nil
}

func (r *Runtime) rebuildLink(cfg config.LinkConfig) {
	r.mu.Lock()
	old := r.Connectivity.Link
	next := NewLinkService(r.Connectivity.Loop, r.Connectivity.ConnectionTransport, cfg, r.Core.Bus, r.Core.LogManager.Device, r.componentLogger("link"))
	r.Connectivity.Link = next
	r.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	next.SetForeground(r.IsForeground())
	next.Start()
	slog.Info("link rebuilt with new settings")
}

func (r *Runtime) componentLogger(component string) *slog.Logger {
	if r.Core.LogManager == nil {
		return slog.Default().With("component", component)
	}

	return r.Core.LogManager.Logger(component)
}

func (r *Runtime) ClearDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := persistence.ClearDatabase(ctx, r.Core.DB); err != nil {
		return err
	}
	if r.Domain.LogStore != nil {
		r.Domain.LogStore.Clear()
	}
	slog.Info("database cleared")

	return nil
}

func (r *Runtime) pruneDeviceLogs() {
	cutoff := time.Now().AddDate(0, 0, -LogRetentionDays)
	repo := r.Domain.LogRepo
	r.Domain.WriterQueue.Enqueue("prune_device_logs", func(ctx context.Context) error {
		n, err := repo.PruneBefore(ctx, cutoff)
		if err == nil && n > 0 {
			slog.Info("pruned old device logs", "count", n)
		}

		return err
	})
}

func (r *Runtime) Close() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if l := r.link(); l != nil && r.Connectivity.Loop != nil {
		l.Stop()
		// Wait for the close to be processed while the loop still runs.
		_ = r.Connectivity.Loop.Do(shutdownCtx, func() {})
	}
	if r.Domain.WriterQueue != nil {
		if err := r.Domain.WriterQueue.Flush(shutdownCtx); err != nil {
			slog.Warn("flush pending writes", "error", err)
		}
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.Core.Bus != nil {
		r.Core.Bus.Close()
	}
	if r.Core.DB != nil {
		_ = r.Core.DB.Close()
	}
	if r.Core.LogManager != nil {
		_ = r.Core.LogManager.Close()
	}

	return nil
}

func newDeviceAPI(cfg config.ConnectionConfig, logger *slog.Logger) *deviceapi.Client {
	if cfg.Connector != config.ConnectorWebSocket || cfg.Host == "" {
		return nil
	}

	return deviceapi.New(cfg.Host, cfg.Port, logger)
}
