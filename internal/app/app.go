// Package app wires the registry, tracker, switcher, orchestrator,
// forwarder and control surface into one running process: config in,
// HTTP server and background loops out.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/beaconsage/claude-zephyr/internal/adapter/control"
	"github.com/beaconsage/claude-zephyr/internal/adapter/factory"
	"github.com/beaconsage/claude-zephyr/internal/adapter/forward"
	"github.com/beaconsage/claude-zephyr/internal/adapter/probe"
	"github.com/beaconsage/claude-zephyr/internal/config"
	"github.com/beaconsage/claude-zephyr/internal/core/domain"
	"github.com/beaconsage/claude-zephyr/internal/core/orchestrator"
	"github.com/beaconsage/claude-zephyr/internal/core/registry"
	"github.com/beaconsage/claude-zephyr/internal/core/switcher"
	"github.com/beaconsage/claude-zephyr/internal/core/tracker"
	"github.com/beaconsage/claude-zephyr/internal/logger"
	"github.com/beaconsage/claude-zephyr/internal/router"
	"github.com/beaconsage/claude-zephyr/pkg/eventbus"
)

const (
	janitorInterval = 5 * time.Second
	idleInterrupt   = 15 * time.Second
	hardEject       = 60 * time.Second
)

// Application owns every long-lived component and the HTTP server that
// fronts them.
type Application struct {
	cfg    *config.Config
	log    *logger.StyledLogger
	server *http.Server

	Registry     *registry.Registry
	Tracker      *tracker.Tracker
	Switcher     *switcher.Coordinator
	Orchestrator *orchestrator.Orchestrator
	Control      *control.Surface

	statusEvents *eventbus.EventBus[orchestrator.StatusChangeEvent]
	drainEvents  *eventbus.EventBus[switcher.DrainEvent]

	cancel context.CancelFunc
}

// New builds every component from a resolved Config but starts nothing.
func New(cfg *config.Config, log *logger.StyledLogger) (*Application, error) {
	credentials, err := cfg.ResolveCredentials()
	if err != nil {
		return nil, err
	}

	groups, err := config.BuildGroups(cfg, credentials)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(groups)
	if err != nil {
		return nil, err
	}

	trk := tracker.New(idleInterrupt, hardEject)

	drainEvents := eventbus.New[switcher.DrainEvent]()
	initialSelection := domain.CurrentSelection{Mode: domain.ModeAutomatic}
	sw := switcher.New(initialSelection, trk, cfg.Server.GracefulSwitchTimeout(), drainEvents)

	executor := probe.NewCLIExecutor(cfg.HealthCheck.ClaudeBinaryPath, cfg.HealthCheck.SoftLatency())

	statusEvents := eventbus.New[orchestrator.StatusChangeEvent]()
	orch := orchestrator.New(reg, trk, sw, executor, log, statusEvents, cfg.HealthCheck, cfg.Server.SwitchThreshold())

	surface := control.NewSurface(reg, trk, sw, orch)

	clientFactory := factory.NewSharedClientFactory()
	fwd := forward.New(reg, sw, trk, clientFactory.ForwardClient(), log, cfg.Retry)

	mux := http.NewServeMux()
	routes := router.NewRouteRegistry(log)
	routes.Register("/status", surface.StatusHandler, "Current selection, endpoint health and load")
	routes.Register("/health", surface.HealthHandler, "200 if any endpoint is not Failed, else 503")
	routes.RegisterProxyRoute("/", fwd.ServeHTTP, "Proxied Claude API traffic", "*")
	routes.WireUp(mux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:          cfg,
		log:          log,
		server:       server,
		Registry:     reg,
		Tracker:      trk,
		Switcher:     sw,
		Orchestrator: orch,
		Control:      surface,
		statusEvents: statusEvents,
		drainEvents:  drainEvents,
	}, nil
}

// Start begins the orchestrator loop, the tracker janitor, and the HTTP
// server, all cancellable via ctx.
func (a *Application) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.Orchestrator.Run(runCtx)
	go a.runJanitor(runCtx)

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return domain.NewBindFailedError(a.server.Addr, err)
	}

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server error", "error", err)
		}
	}()

	a.log.Info("Claude Zephyr is serving", "addr", a.server.Addr)
	return nil
}

// Stop shuts the HTTP server down gracefully within
// graceful_switch_timeout_ms, then cancels the background loops.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.GracefulSwitchTimeout())
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)

	if a.cancel != nil {
		a.cancel()
	}
	a.statusEvents.Shutdown()
	a.drainEvents.Shutdown()

	if err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}

// runJanitor sweeps the connection tracker on a fixed tick, defaulting to
// a 5 second interval.
func (a *Application) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tracker.Sweep()
		}
	}
}
