// Package switcher publishes CurrentSelection changes atomically and
// reports, asynchronously, when the old selection has fully drained.
package switcher

import (
	"sync/atomic"
	"time"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
	"github.com/beaconsage/claude-zephyr/internal/core/tracker"
	"github.com/beaconsage/claude-zephyr/pkg/eventbus"
)

// DrainEvent is published once a switch's drain observer finishes, either
// because the old selection's connection count reached zero or because
// gracefulTimeout elapsed first. It exists purely for reporting - no
// request is ever cancelled because of it.
type DrainEvent struct {
	From           string
	To             string
	DrainedClean   bool
	Elapsed        time.Duration
	RemainingConns int
}

// Coordinator owns the single atomic pointer new requests read at
// acceptance time, plus manual pin / mode state.
type Coordinator struct {
	current         atomic.Pointer[domain.CurrentSelection]
	tracker         *tracker.Tracker
	gracefulTimeout time.Duration
	drainPollPeriod time.Duration
	events          *eventbus.EventBus[DrainEvent]
}

// New builds a Coordinator with an initial selection (typically empty,
// mode Automatic, before the first probe round completes).
func New(initial domain.CurrentSelection, tr *tracker.Tracker, gracefulTimeout time.Duration, events *eventbus.EventBus[DrainEvent]) *Coordinator {
	c := &Coordinator{
		tracker:         tr,
		gracefulTimeout: gracefulTimeout,
		drainPollPeriod: 100 * time.Millisecond,
		events:          events,
	}
	c.current.Store(&initial)
	return c
}

// Current returns a lock-free snapshot of the current selection. Safe to
// call from any number of concurrent forwarder goroutines.
func (c *Coordinator) Current() domain.CurrentSelection {
	return *c.current.Load()
}

// SetMode switches between Automatic and Manual without changing the bound
// endpoint.
func (c *Coordinator) SetMode(mode domain.Mode) {
	prev := c.Current()
	next := domain.CurrentSelection{EndpointID: prev.EndpointID, Mode: mode}
	c.current.Store(&next)
}

// Pin forces Manual mode with an operator-chosen endpoint. The selection
// policy's recommendation becomes advisory only until SetMode(Automatic).
func (c *Coordinator) Pin(endpointID string) {
	c.Switch(endpointID, domain.ModeManual)
}

// Switch publishes a new selection and, if the bound endpoint actually
// changed, starts a background drain observer for the old one. Publishing
// is the only action required to affect new traffic - existing
// ActiveConnections keep their original binding.
func (c *Coordinator) Switch(newEndpointID string, mode domain.Mode) {
	prev := c.Current()
	next := domain.CurrentSelection{EndpointID: newEndpointID, Mode: mode}
	c.current.Store(&next)

	if prev.EndpointID == "" || prev.EndpointID == newEndpointID {
		return
	}

	go c.observeDrain(prev.EndpointID, newEndpointID)
}

func (c *Coordinator) observeDrain(from, to string) {
	start := time.Now()
	deadline := start.Add(c.gracefulTimeout)
	ticker := time.NewTicker(c.drainPollPeriod)
	defer ticker.Stop()

	for {
		remaining := c.tracker.CountBoundTo(from)
		if remaining == 0 {
			c.publishDrain(DrainEvent{From: from, To: to, DrainedClean: true, Elapsed: time.Since(start)})
			return
		}
		if time.Now().After(deadline) {
			c.publishDrain(DrainEvent{From: from, To: to, DrainedClean: false, Elapsed: time.Since(start), RemainingConns: remaining})
			return
		}
		<-ticker.C
	}
}

func (c *Coordinator) publishDrain(e DrainEvent) {
	if c.events != nil {
		c.events.PublishAsync(e)
	}
}
