// Package control implements the control surface: the /status and /health
// HTTP endpoints, and the operator command set the dashboard (or any other
// in-process caller) uses to override selection, nudge the probe schedule,
// or request shutdown.
package control

import (
	"encoding/json"
	"net/http"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
	"github.com/beaconsage/claude-zephyr/internal/core/orchestrator"
	"github.com/beaconsage/claude-zephyr/internal/core/registry"
	"github.com/beaconsage/claude-zephyr/internal/core/switcher"
	"github.com/beaconsage/claude-zephyr/internal/core/tracker"
)

// Surface wires the registry/tracker/switcher/orchestrator together behind
// the read-only HTTP introspection routes and the operator command set.
// The dashboard is in-process, so no network RPC layer is invented for the
// commands - they're plain method calls, usable equally from an HTTP
// handler, a CLI flag, or the bubbletea dashboard.
type Surface struct {
	registry     *registry.Registry
	tracker      *tracker.Tracker
	switcher     *switcher.Coordinator
	orchestrator *orchestrator.Orchestrator
	shutdownCh   chan struct{}
}

func NewSurface(
	reg *registry.Registry,
	trk *tracker.Tracker,
	sw *switcher.Coordinator,
	orch *orchestrator.Orchestrator,
) *Surface {
	return &Surface{
		registry:     reg,
		tracker:      trk,
		switcher:     sw,
		orchestrator: orch,
		shutdownCh:   make(chan struct{}, 1),
	}
}

// EndpointStatusView is one row of the /status endpoint's endpoints array.
type EndpointStatusView struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	URL                 string `json:"url"`
	Status              string `json:"status"`
	LastLatencyMs       *int64 `json:"last_latency_ms"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// StatusView is the full /status response body.
type StatusView struct {
	Mode                     string               `json:"mode"`
	CurrentEndpoint          string               `json:"current_endpoint"`
	Endpoints                []EndpointStatusView `json:"endpoints"`
	ActiveConnections        int                  `json:"active_connections"`
	EffectiveIntervalSeconds float64              `json:"effective_interval_seconds"`
	ProbesPaused             bool                 `json:"probes_paused"`
}

// Status builds the current StatusView from the registry, tracker and
// switcher - three independent reads, each of a consistent snapshot, so the
// caller sees one consistent picture per field but may observe values drawn
// from slightly different instants.
func (s *Surface) Status() StatusView {
	selection := s.switcher.Current()
	group := s.registry.ActiveGroup()

	view := StatusView{
		Mode:                     selection.Mode.String(),
		CurrentEndpoint:          selection.EndpointID,
		ActiveConnections:        s.tracker.Count(),
		EffectiveIntervalSeconds: s.orchestrator.EffectiveInterval().Seconds(),
		ProbesPaused:             s.orchestrator.Paused(),
	}

	if group != nil {
		for _, ep := range group.Endpoints {
			state := s.registry.State(ep.ID())
			if state == nil {
				continue
			}
			row := EndpointStatusView{
				ID:                  ep.ID(),
				Name:                ep.Name,
				URL:                 ep.URL.String(),
				Status:              state.Status.String(),
				ConsecutiveFailures: state.ConsecutiveFailures,
			}
			if state.HasLatency() {
				ms := state.LatencyMs()
				row.LastLatencyMs = &ms
			}
			view.Endpoints = append(view.Endpoints, row)
		}
	}

	return view
}

// Healthy reports whether at least one endpoint in the active group is not
// Failed.
func (s *Surface) Healthy() bool {
	for _, state := range s.registry.Snapshot() {
		if state.Status != domain.StatusFailed {
			return true
		}
	}
	return false
}

// StatusHandler serves GET /status.
func (s *Surface) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Status())
}

// HealthHandler serves GET /health: 200 "ok" or 503 "all_endpoints_failed".
func (s *Surface) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if s.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("all_endpoints_failed"))
}

// SetMode switches between Automatic and Manual selection without changing
// the currently bound endpoint.
func (s *Surface) SetMode(mode domain.Mode) {
	s.switcher.SetMode(mode)
}

// Pin forces Manual mode with an operator-chosen endpoint.
func (s *Surface) Pin(endpointID string) {
	s.switcher.Pin(endpointID)
}

// RefreshNow causes the orchestrator's next probe round to start
// immediately.
func (s *Surface) RefreshNow() {
	s.orchestrator.RefreshNow()
}

// PauseProbes stops new probe rounds from starting.
func (s *Surface) PauseProbes() {
	s.orchestrator.Pause()
}

// ResumeProbes allows probe rounds to start again.
func (s *Surface) ResumeProbes() {
	s.orchestrator.Resume()
}

// Shutdown requests process shutdown. The ShutdownRequested channel holds at
// most one pending signal; further calls while one is pending do nothing.
func (s *Surface) Shutdown() {
	select {
	case s.shutdownCh <- struct{}{}:
	default:
	}
}

// ShutdownRequested returns a channel that receives once an operator calls
// Shutdown.
func (s *Surface) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}
