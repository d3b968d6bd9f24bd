// Package tracker records in-flight proxied requests so a graceful switch
// can tell when it is safe to stop caring about the old selection, and so
// the orchestrator can read a load signal for adaptive interval scaling.
package tracker

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
)

// Tracker is the single writer of ActiveConnection records, synchronised
// under one coarse mutex - Open, Touch, Close, MarkInterrupted and Count are
// O(1); Snapshot, CountBoundTo and Sweep walk every tracked connection. No
// I/O happens under the lock.
type Tracker struct {
	mu          sync.Mutex
	connections map[string]*domain.ActiveConnection
	seq         atomic.Uint64

	idleInterrupt time.Duration
	hardEject     time.Duration
}

// New builds a Tracker with the sweep thresholds (defaults:
// idle_interrupt_ms=15s, hard_eject_ms=60s).
func New(idleInterrupt, hardEject time.Duration) *Tracker {
	return &Tracker{
		connections:   make(map[string]*domain.ActiveConnection),
		idleInterrupt: idleInterrupt,
		hardEject:     hardEject,
	}
}

// Open allocates a new ActiveConnection bound to endpointID and returns its
// id. The caller must eventually call Close or MarkInterrupted.
func (t *Tracker) Open(endpointID string) string {
	id := t.nextID()
	now := time.Now()

	t.mu.Lock()
	t.connections[id] = &domain.ActiveConnection{
		ID:             id,
		EndpointID:     endpointID,
		StartedAt:      now,
		LastActivityAt: now,
		Status:         domain.ConnectionOpen,
	}
	t.mu.Unlock()

	return id
}

// Touch updates the last-activity time of an open connection - called once
// per streamed response chunk.
func (t *Tracker) Touch(connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.connections[connectionID]; ok {
		c.LastActivityAt = time.Now()
	}
}

// Close marks a connection as normally completed and removes it.
func (t *Tracker) Close(connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.connections, connectionID)
}

// MarkInterrupted transitions a connection to Interrupted on a confirmed
// client disconnect. Unlike a sweep-flagged idle connection, there's no
// ambiguity left about whether it's still alive, so the sweep evicts it
// after idleInterrupt rather than waiting out the full hardEject window.
func (t *Tracker) MarkInterrupted(connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.connections[connectionID]; ok {
		c.Status = domain.ConnectionInterrupted
		c.ClientDisconnected = true
		c.LastActivityAt = time.Now()
	}
}

// Snapshot returns a copy of every tracked connection - cheap, used by the
// status surface and the load signal.
func (t *Tracker) Snapshot() []domain.ActiveConnection {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ActiveConnection, 0, len(t.connections))
	for _, c := range t.connections {
		out = append(out, *c)
	}
	return out
}

// CountBoundTo returns the number of connections currently bound to the
// given endpoint, counting Open and Closing but not Interrupted (already
// effectively gone).
func (t *Tracker) CountBoundTo(endpointID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, c := range t.connections {
		if c.EndpointID == endpointID && c.Status != domain.ConnectionInterrupted {
			count++
		}
	}
	return count
}

// Count returns the total number of tracked connections - the load signal
// the orchestrator's adaptive interval formula consumes.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.connections)
}

// Sweep removes ghost connections: any Open connection idle longer than
// idleInterrupt is transitioned to Interrupted; an Interrupted connection is
// dropped once past idleInterrupt if the client disconnect was confirmed
// (ClientDisconnected), or past the longer hardEject otherwise - that
// longer window covers a connection the sweep itself flagged idle, where
// the client might still be there. Running it twice with no intervening
// activity is a no-op the second time (idempotent).
func (t *Tracker) Sweep() {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, c := range t.connections {
		switch c.Status {
		case domain.ConnectionOpen, domain.ConnectionClosing:
			if now.Sub(c.LastActivityAt) >= t.idleInterrupt {
				c.Status = domain.ConnectionInterrupted
				c.LastActivityAt = now
			}
		case domain.ConnectionInterrupted:
			window := t.hardEject
			if c.ClientDisconnected {
				window = t.idleInterrupt
			}
			if now.Sub(c.LastActivityAt) >= window {
				delete(t.connections, id)
			}
		}
	}
}

func (t *Tracker) nextID() string {
	n := t.seq.Add(1)
	return "conn_" + strconv.FormatUint(n, 10)
}
