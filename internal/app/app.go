// Package app wires the file server, stats tracker, dashboard, push hub
// and admin endpoint into one runnable unit.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/servepulse/go-serve-pulse/internal/config"
	"github.com/servepulse/go-serve-pulse/internal/httpserver"
	"github.com/servepulse/go-serve-pulse/internal/metrics"
	"github.com/servepulse/go-serve-pulse/internal/preflight"
	"github.com/servepulse/go-serve-pulse/internal/push"
	"github.com/servepulse/go-serve-pulse/internal/stats"
	"github.com/servepulse/go-serve-pulse/internal/supervisor"
	"github.com/servepulse/go-serve-pulse/internal/timeseries"
	"github.com/servepulse/go-serve-pulse/internal/tui"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// App coordinates all components of the server.
type App struct {
	config  *config.Config
	logger  *slog.Logger
	version string

	handle      *trackerHandle
	collector   *metrics.Collector
	hub         *push.Hub
	adminServer *metrics.Server
	fileServer  *httpserver.Server
	sup         *supervisor.Supervisor

	// program is set once the dashboard starts; snapshot forwarding
	// tolerates it being nil before that.
	program atomic.Pointer[tea.Program]

	startTime time.Time
}

// New creates an App from the given configuration.
func New(cfg *config.Config, logger *slog.Logger, version string) *App {
	handle := &trackerHandle{}

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Version:    version,
		ListenAddr: cfg.ListenAddr,
		RootDir:    cfg.RootDir,
		StatsFn:    handle.TrafficStats,
	})

	hub := push.NewHub(logger)

	var adminServer *metrics.Server
	if cfg.AdminAddr != "" {
		adminServer = metrics.NewServer(cfg.AdminAddr, logger)
		adminServer.Handle("/ws", hub.Handler())
	}

	a := &App{
		config:      cfg,
		logger:      logger,
		version:     version,
		handle:      handle,
		collector:   collector,
		hub:         hub,
		adminServer: adminServer,
	}

	a.fileServer = httpserver.NewServer(httpserver.Config{
		Addr:               cfg.ListenAddr,
		RootDir:            cfg.RootDir,
		SlowWriteThreshold: cfg.SlowWriteThreshold,
		ThrottleBytes:      cfg.ThrottleBytes,
		Logger:             logger,
		OnRequest:          collector.ObserveRequest,
	}, handle)

	sink := &fanout{app: a}
	a.sup = supervisor.New(supervisor.Config{
		Name:        "stats-tracker",
		MaxRestarts: cfg.MaxRestarts,
		Backoff:     supervisor.DefaultBackoffConfig(),
		Logger:      logger,
		Callbacks: supervisor.Callbacks{
			OnRestart: a.onTrackerRestart,
			OnGiveUp:  a.onTrackerGiveUp,
		},
	}, func() (supervisor.Restartable, error) {
		t := stats.New(stats.Config{
			TickInterval: cfg.TickInterval,
			GracePeriod:  cfg.GracePeriod,
			Window:       cfg.TrafficWindow,
			QueueSize:    cfg.QueueSize,
			Logger:       logger,
		}, sink)
		// Producers follow the handle, so they reach the fresh
		// instance after a restart.
		handle.set(t)
		return t, nil
	})

	return a
}

// Run starts all components and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	a.startTime = time.Now()

	if !a.config.SkipPreflight {
		result := preflight.RunAll(a.config.RootDir, a.config.ListenAddr, a.config.AdminAddr)
		preflight.PrintResults(result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use --skip-preflight to override)")
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.adminServer != nil {
		if err := a.adminServer.Start(); err != nil {
			return fmt.Errorf("failed to start admin server: %w", err)
		}
	}

	supDone := make(chan error, 1)
	go func() {
		supDone <- a.sup.Run(ctx)
	}()

	srvErr := a.fileServer.Start()
	a.logger.Info("server_started",
		"listen_addr", a.config.ListenAddr,
		"root_dir", a.config.RootDir,
		"admin_addr", a.config.AdminAddr,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var tuiDone chan error
	if a.config.TUIEnabled {
		model := tui.NewModel(tui.Config{
			Version:    a.version,
			ListenAddr: a.config.ListenAddr,
			AdminAddr:  a.config.AdminAddr,
			RootDir:    a.config.RootDir,
			Window:     a.config.TrafficWindow,
			Controller: a.handle,
			StatsFn:    a.handle.TrafficStats,
		})
		p := tea.NewProgram(model, tea.WithAltScreen())
		a.program.Store(p)

		tuiDone = make(chan error, 1)
		go func() {
			_, err := p.Run()
			tuiDone <- err
		}()
	}

	var runErr error
	supDrained := false
	tuiDrained := false

	select {
	case sig := <-sigCh:
		a.logger.Info("received_signal", "signal", sig.String())
	case err := <-srvErr:
		a.logger.Error("server_failed", "error", err)
		runErr = err
	case err := <-supDone:
		supDrained = true
		if err != nil {
			runErr = err
		}
	case err := <-tuiDone:
		tuiDrained = true
		if err != nil {
			a.logger.Error("dashboard_failed", "error", err)
		}
	case <-ctx.Done():
		a.logger.Info("context_cancelled")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.fileServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("server_shutdown_incomplete", "error", err)
	}

	if !supDrained {
		select {
		case <-supDone:
		case <-shutdownCtx.Done():
			a.logger.Warn("tracker_shutdown_timeout")
		}
	}

	a.hub.Shutdown()

	if a.adminServer != nil {
		if err := a.adminServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("admin_server_shutdown_error", "error", err)
		}
	}

	if tuiDone != nil && !tuiDrained {
		tui.SendQuit(a.program.Load())
		select {
		case <-tuiDone:
		case <-shutdownCtx.Done():
		}
	}

	a.printExitSummary()

	return runErr
}

// onTrackerRestart fires before each tracker restart attempt.
func (a *App) onTrackerRestart(attempt int, delay time.Duration) {
	a.collector.TrackerRestarted()
	a.logger.Warn("tracker_restarting",
		"attempt", attempt,
		"delay", delay.String(),
	)
}

// onTrackerGiveUp fires when the restart budget is exhausted. The
// failure is pushed to the dashboard and the websocket feed; the
// supervisor's Run return value ends the app.
func (a *App) onTrackerGiveUp(err error) {
	a.logger.Error("tracker_gave_up", "error", err)
	a.hub.TrackerFailed(err)
	tui.SendFatal(a.program.Load(), err)
}

// printExitSummary prints run statistics after shutdown.
func (a *App) printExitSummary() {
	summary := a.collector.GenerateSummary()

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Println("                      go-serve-pulse Exit Summary")
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Printf("Run Duration:           %s\n", formatDuration(summary.Duration))
	fmt.Printf("Peak Connected Clients: %d\n", summary.PeakClients)
	fmt.Printf("Total Bytes Sent:       %d\n", summary.TotalBytes)
	fmt.Println()

	if summary.TrackerFailures > 0 || summary.TrackerRestarts > 0 {
		fmt.Println("Tracker Lifecycle:")
		fmt.Printf("  Failures:             %d\n", summary.TrackerFailures)
		fmt.Printf("  Restarts:             %d\n", summary.TrackerRestarts)
		fmt.Println()
	}

	if a.config.AdminAddr != "" {
		fmt.Printf("Metrics endpoint was: http://%s/metrics\n", a.config.AdminAddr)
	}
	fmt.Println("═══════════════════════════════════════════════════════════════════")

	if a.config.MetricsDump {
		fmt.Println()
		if err := metrics.DumpText(os.Stdout, prometheus.DefaultGatherer); err != nil {
			a.logger.Warn("metrics_dump_failed", "error", err)
		}
	}
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// =============================================================================
// Tracker Handle
// =============================================================================

// trackerHandle is a stable indirection over the current tracker
// instance. The HTTP server and dashboard hold the handle, not the
// tracker, so a supervisor restart transparently re-points them.
type trackerHandle struct {
	ptr atomic.Pointer[stats.Tracker]
}

func (h *trackerHandle) set(t *stats.Tracker) {
	h.ptr.Store(t)
}

func (h *trackerHandle) ClientConnected(id uint64, remoteAddr string) {
	if t := h.ptr.Load(); t != nil {
		t.ClientConnected(id, remoteAddr)
	}
}

func (h *trackerHandle) ClientDisconnected(id uint64) {
	if t := h.ptr.Load(); t != nil {
		t.ClientDisconnected(id)
	}
}

func (h *trackerHandle) SlowConnection(id uint64) {
	if t := h.ptr.Load(); t != nil {
		t.SlowConnection(id)
	}
}

func (h *trackerHandle) AddBytes(id uint64, n int64) {
	if t := h.ptr.Load(); t != nil {
		t.AddBytes(id, n)
	}
}

func (h *trackerHandle) ClearClients() {
	if t := h.ptr.Load(); t != nil {
		t.ClearClients()
	}
}

func (h *trackerHandle) TrafficStats() timeseries.Stats {
	if t := h.ptr.Load(); t != nil {
		return t.TrafficStats()
	}
	return timeseries.Stats{}
}

// =============================================================================
// Snapshot Fan-Out
// =============================================================================

// fanout delivers tracker snapshots to the metrics collector, the
// websocket hub and the dashboard. Failures go to the collector and the
// supervisor; the hub and dashboard only hear about a failure once the
// restart budget is gone.
type fanout struct {
	app *App
}

func (f *fanout) ClientsUpdated(clients []stats.ClientInfo) {
	f.app.collector.ClientsUpdated(clients)
	f.app.collector.SetPushSubscribers(f.app.hub.SubscriberCount())
	f.app.hub.ClientsUpdated(clients)
	tui.SendClients(f.app.program.Load(), clients)
}

func (f *fanout) TrafficUpdated(samples []stats.TrafficSample) {
	f.app.collector.TrafficUpdated(samples)
	f.app.hub.TrafficUpdated(samples)
	tui.SendTraffic(f.app.program.Load(), samples)
}

func (f *fanout) TrackerFailed(err error) {
	f.app.logger.Error("tracker_failed", "error", err)
	f.app.collector.TrackerFailed(err)
	f.app.sup.ReportFailure(err)
}
