// Package orchestrator owns the probing schedule: it fans probes out to
// every endpoint in the active group, folds outcomes into the registry,
// recomputes the desired selection, and drives switches.
package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/beaconsage/claude-zephyr/internal/config"
	"github.com/beaconsage/claude-zephyr/internal/core/domain"
	"github.com/beaconsage/claude-zephyr/internal/core/registry"
	"github.com/beaconsage/claude-zephyr/internal/core/selection"
	"github.com/beaconsage/claude-zephyr/internal/core/switcher"
	"github.com/beaconsage/claude-zephyr/internal/core/tracker"
	"github.com/beaconsage/claude-zephyr/internal/logger"
	"github.com/beaconsage/claude-zephyr/pkg/eventbus"
)

// StatusChangeEvent is published whenever an endpoint's status actually
// changes, for the dashboard and for low-noise logging.
type StatusChangeEvent struct {
	EndpointID string
	From       domain.EndpointStatus
	To         domain.EndpointStatus
}

// Orchestrator is the single writer of EndpointState.
type Orchestrator struct {
	registry *registry.Registry
	tracker  *tracker.Tracker
	switcher *switcher.Coordinator
	executor domain.ProbeExecutor
	log      *logger.StyledLogger
	events   *eventbus.EventBus[StatusChangeEvent]

	cfg             config.HealthCheckConfig
	switchThreshold time.Duration

	refreshCh chan struct{}
	paused    atomic.Bool
}

// New builds an Orchestrator. events may be nil if nobody needs status
// change notifications.
func New(
	reg *registry.Registry,
	trk *tracker.Tracker,
	sw *switcher.Coordinator,
	executor domain.ProbeExecutor,
	log *logger.StyledLogger,
	events *eventbus.EventBus[StatusChangeEvent],
	cfg config.HealthCheckConfig,
	switchThreshold time.Duration,
) *Orchestrator {
	return &Orchestrator{
		registry:        reg,
		tracker:         trk,
		switcher:        sw,
		executor:        executor,
		log:             log,
		events:          events,
		cfg:             cfg,
		switchThreshold: switchThreshold,
		refreshCh:       make(chan struct{}, 1),
	}
}

// RefreshNow causes the next iteration to start immediately; the in-flight
// iteration, if any, is not cancelled.
func (o *Orchestrator) RefreshNow() {
	select {
	case o.refreshCh <- struct{}{}:
	default:
	}
}

// Pause stops new probe rounds from starting; in-flight rounds complete.
func (o *Orchestrator) Pause() {
	o.paused.Store(true)
}

// Resume allows probe rounds to start again.
func (o *Orchestrator) Resume() {
	o.paused.Store(false)
}

// Paused reports whether probing is currently paused.
func (o *Orchestrator) Paused() bool {
	return o.paused.Load()
}

// Run is the orchestrator's long-lived loop: one tick is a probe round
// followed by a sleep for the current computed interval, until ctx is
// cancelled. A round that panics is recovered and logged; the loop
// continues at the next tick - a probe failure never raises out of the
// orchestrator, and neither does a programmer error.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		interval := o.effectiveInterval()

		if !o.paused.Load() {
			o.safeRunOnce(ctx)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-o.refreshCh:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (o *Orchestrator) safeRunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("orchestrator iteration panicked, continuing at next tick", "panic", r)
		}
	}()
	o.RunOnce(ctx)
}

// RunOnce issues one probe round against every endpoint in the active
// group, folds the outcomes, and drives a switch if the selection changed.
// Exported for --test-timing, which runs exactly one round and exits.
func (o *Orchestrator) RunOnce(ctx context.Context) {
	group := o.registry.ActiveGroup()
	if group == nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range group.Endpoints {
		ep := ep
		g.Go(func() error {
			o.probeOne(gctx, ep, group.Credential)
			return nil
		})
	}
	_ = g.Wait()

	o.reselect(group)
}

func (o *Orchestrator) probeOne(ctx context.Context, ep *domain.Endpoint, credential string) {
	id := ep.ID()
	startedAt := time.Now()
	timeout := o.cfg.Timeout()

	outcome := o.executor.Probe(ctx, ep, credential, timeout)
	finishedAt := time.Now()

	var prevStatus domain.EndpointStatus
	o.registry.UpdateState(id, func(s *domain.EndpointState) {
		prevStatus = s.Status
		s.LastProbeStartedAt = startedAt
		s.LastProbeFinishedAt = finishedAt
		s.LastProbeOutcome = outcome.Kind.String()
		applyOutcome(s, outcome, o.cfg.FailureThreshold)
	})

	newState := o.registry.State(id)
	if newState != nil && newState.Status != prevStatus {
		o.log.InfoHealthStatus("Endpoint status changed", ep.Name, newState.Status)
		if o.events != nil {
			o.events.PublishAsync(StatusChangeEvent{EndpointID: id, From: prevStatus, To: newState.Status})
		}
	} else if !outcome.Kind.IsHealthy() {
		o.log.Debug("probe outcome recorded", "endpoint", ep.Name, "outcome", outcome.Kind.String())
	}
}

// applyOutcome implements the endpoint state-transition table.
func applyOutcome(s *domain.EndpointState, outcome domain.ProbeOutcome, failureThreshold uint32) {
	if outcome.Kind.IsHealthy() {
		latency := outcome.Latency
		s.LastLatency = &latency
		s.ConsecutiveFailures = 0
		s.LastErrorKind = ""
		if outcome.Kind == domain.ProbeDegraded {
			s.Status = domain.StatusDegraded
		} else {
			s.Status = domain.StatusHealthy
		}
		return
	}

	s.ConsecutiveFailures++
	s.LastErrorKind = outcome.ErrorKind
	if uint32(s.ConsecutiveFailures) >= failureThreshold {
		s.Status = domain.StatusFailed
	}
	// else: first failure is "suspect" but retains prior status.
}

// reselect recomputes the desired endpoint and drives a switch if it
// changed and the coordinator is in Automatic mode.
func (o *Orchestrator) reselect(group *domain.Group) {
	current := o.switcher.Current()

	candidates := make([]selection.Candidate, 0, len(group.Endpoints))
	for _, ep := range group.Endpoints {
		candidates = append(candidates, selection.Candidate{
			EndpointID:      ep.ID(),
			DefinitionOrder: ep.DefinitionOrder,
			State:           o.registry.State(ep.ID()),
		})
	}

	desired := selection.Choose(candidates, current.EndpointID, o.switchThreshold)
	if desired != current.EndpointID && current.Mode == domain.ModeAutomatic {
		o.switcher.Switch(desired, domain.ModeAutomatic)
	}
}

// EffectiveInterval exposes the currently computed probe interval for the
// status surface.
func (o *Orchestrator) EffectiveInterval() time.Duration {
	return o.effectiveInterval()
}

// effectiveInterval implements the adaptive interval formula: load-scaled
// between min and max when dynamic scaling is enabled, else the fixed
// configured interval.
func (o *Orchestrator) effectiveInterval() time.Duration {
	if !o.cfg.DynamicScaling {
		return o.cfg.Interval()
	}

	load := float64(o.tracker.Count())
	ceiling := float64(o.cfg.ScaleCeiling)
	if ceiling <= 0 {
		ceiling = 1
	}
	u := load / ceiling
	if u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}

	min := o.cfg.MinInterval()
	max := o.cfg.MaxInterval()
	span := float64(max - min)
	return min + time.Duration(span*(1-u))
}
