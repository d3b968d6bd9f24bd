// Package selection implements the pure, deterministic policy that decides
// which endpoint new requests should bind to.
package selection

import (
	"time"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
)

// Candidate is the minimal view of an endpoint the policy needs: its
// identity, definition order (for the stable tie-break) and state snapshot.
type Candidate struct {
	EndpointID      string
	DefinitionOrder int
	State           *domain.EndpointState
}

// Choose runs the five-step selection algorithm and returns the endpoint ID
// new requests should bind to. currentID may be empty (no prior selection).
// switchThreshold is the hysteresis margin.
func Choose(candidates []Candidate, currentID string, switchThreshold time.Duration) string {
	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.State == nil || !c.State.HasLatency() {
			continue
		}
		if !c.State.Status.IsCandidate() {
			continue
		}
		eligible = append(eligible, c)
	}

	if len(eligible) == 0 {
		return currentID
	}

	best := eligible[0]
	for _, c := range eligible[1:] {
		if isBetter(c, best) {
			best = c
		}
	}

	var current *Candidate
	for i := range eligible {
		if eligible[i].EndpointID == currentID {
			current = &eligible[i]
			break
		}
	}

	if current == nil {
		return best.EndpointID
	}

	if *current.State.LastLatency-*best.State.LastLatency >= switchThreshold {
		return best.EndpointID
	}

	return currentID
}

// isBetter reports whether candidate c beats the current best: strictly
// lower latency, or equal latency with an earlier (lower) definition order -
// the stable tie-break requires.
func isBetter(c, best Candidate) bool {
	cLatency := *c.State.LastLatency
	bestLatency := *best.State.LastLatency
	if cLatency != bestLatency {
		return cLatency < bestLatency
	}
	return c.DefinitionOrder < best.DefinitionOrder
}
