package control

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/beaconsage/claude-zephyr/internal/adapter/probe"
	"github.com/beaconsage/claude-zephyr/internal/config"
	"github.com/beaconsage/claude-zephyr/internal/core/domain"
	"github.com/beaconsage/claude-zephyr/internal/core/orchestrator"
	"github.com/beaconsage/claude-zephyr/internal/core/registry"
	"github.com/beaconsage/claude-zephyr/internal/core/switcher"
	"github.com/beaconsage/claude-zephyr/internal/core/tracker"
	"github.com/beaconsage/claude-zephyr/internal/logger"
	"github.com/beaconsage/claude-zephyr/pkg/eventbus"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func newTestSurface(t *testing.T) (*Surface, *registry.Registry, *switcher.Coordinator, *tracker.Tracker) {
	t.Helper()

	endpoint := &domain.Endpoint{Name: "primary", URL: mustURL(t, "https://a.example"), GroupName: "default"}
	group := &domain.Group{Name: "default", Credential: "sk-test", Default: true, Endpoints: []*domain.Endpoint{endpoint}}

	reg, err := registry.New([]*domain.Group{group})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	trk := tracker.New(15*time.Second, 60*time.Second)
	sw := switcher.New(domain.CurrentSelection{Mode: domain.ModeAutomatic}, trk, time.Second, nil)

	_, slog, cleanup, err := logger.NewWithTheme(&logger.Config{Level: "error", FileOutput: false})
	if err != nil {
		t.Fatalf("logger.NewWithTheme: %v", err)
	}
	t.Cleanup(cleanup)

	exec := probe.NewScriptedExecutor(map[string][]domain.ProbeOutcome{
		endpoint.ID(): {{Kind: domain.ProbeHealthy, Latency: 20 * time.Millisecond}},
	})
	orch := orchestrator.New(reg, trk, sw, exec, slog, eventbus.New[orchestrator.StatusChangeEvent](), config.HealthCheckConfig{
		IntervalSeconds:  60,
		TimeoutSeconds:   5,
		FailureThreshold: 3,
	}, time.Second)

	return NewSurface(reg, trk, sw, orch), reg, sw, trk
}

func TestStatus_ReflectsSelectionAndEndpointState(t *testing.T) {
	surface, _, sw, _ := newTestSurface(t)

	status := surface.Status()
	if status.Mode != "automatic" {
		t.Fatalf("expected mode automatic, got %s", status.Mode)
	}
	if len(status.Endpoints) != 1 {
		t.Fatalf("expected 1 endpoint row, got %d", len(status.Endpoints))
	}
	if status.Endpoints[0].Status != domain.StatusUnknown.String() {
		t.Errorf("expected initial status unknown, got %s", status.Endpoints[0].Status)
	}

	sw.Switch("primary@https://a.example", domain.ModeManual)
	status = surface.Status()
	if status.CurrentEndpoint != "primary@https://a.example" {
		t.Errorf("expected current endpoint updated, got %s", status.CurrentEndpoint)
	}
	if status.Mode != "manual" {
		t.Errorf("expected mode manual after switch, got %s", status.Mode)
	}
}

func TestHealthy_FalseWhenEveryEndpointFailed(t *testing.T) {
	surface, reg, _, _ := newTestSurface(t)

	if !surface.Healthy() {
		t.Fatal("expected healthy with fresh Unknown-status endpoint")
	}

	for _, ep := range reg.Endpoints() {
		reg.UpdateState(ep.ID(), func(s *domain.EndpointState) {
			s.Status = domain.StatusFailed
		})
	}

	if surface.Healthy() {
		t.Fatal("expected unhealthy once every endpoint is Failed")
	}
}

func TestHealthHandler_RespondsPerHealthyState(t *testing.T) {
	surface, reg, _, _ := newTestSurface(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	surface.HealthHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when healthy, got %d", rec.Code)
	}

	for _, ep := range reg.Endpoints() {
		reg.UpdateState(ep.ID(), func(s *domain.EndpointState) {
			s.Status = domain.StatusFailed
		})
	}

	rec = httptest.NewRecorder()
	surface.HealthHandler(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once unhealthy, got %d", rec.Code)
	}
	if rec.Body.String() != "all_endpoints_failed" {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestStatusHandler_ServesJSON(t *testing.T) {
	surface, _, _, _ := newTestSurface(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	surface.StatusHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestShutdown_SignalsOnceAndDoesNotBlockOnSecondCall(t *testing.T) {
	surface, _, _, _ := newTestSurface(t)

	surface.Shutdown()
	surface.Shutdown() // must not block even though the channel is buffered(1)

	select {
	case <-surface.ShutdownRequested():
	default:
		t.Fatal("expected shutdown signal to be available")
	}
}

func TestPinAndSetMode(t *testing.T) {
	surface, _, sw, _ := newTestSurface(t)

	surface.Pin("primary@https://a.example")
	if got := sw.Current(); got.EndpointID != "primary@https://a.example" || got.Mode != domain.ModeManual {
		t.Fatalf("expected pinned manual selection, got %+v", got)
	}

	surface.SetMode(domain.ModeAutomatic)
	if sw.Current().Mode != domain.ModeAutomatic {
		t.Fatal("expected mode automatic after SetMode")
	}
}

func TestPauseAndResumeProbes(t *testing.T) {
	surface, _, _, _ := newTestSurface(t)

	surface.PauseProbes()
	if !surface.orchestrator.Paused() {
		t.Fatal("expected orchestrator paused")
	}
	if !surface.Status().ProbesPaused {
		t.Fatal("expected status view to reflect paused probes")
	}

	surface.ResumeProbes()
	if surface.orchestrator.Paused() {
		t.Fatal("expected orchestrator resumed")
	}
	if surface.Status().ProbesPaused {
		t.Fatal("expected status view to reflect resumed probes")
	}
}
