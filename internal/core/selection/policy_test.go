package selection

import (
	"testing"
	"time"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
)

func latency(ms int64) *time.Duration {
	d := time.Duration(ms) * time.Millisecond
	return &d
}

func healthyCandidate(id string, order int, latencyMs int64) Candidate {
	return Candidate{
		EndpointID:      id,
		DefinitionOrder: order,
		State: &domain.EndpointState{
			EndpointID:  id,
			Status:      domain.StatusHealthy,
			LastLatency: latency(latencyMs),
		},
	}
}

func TestChooseColdStart(t *testing.T) {
	candidates := []Candidate{
		healthyCandidate("a", 0, 120),
		healthyCandidate("b", 1, 80),
	}
	got := Choose(candidates, "", 50*time.Millisecond)
	if got != "b" {
		t.Fatalf("expected b (lowest latency), got %s", got)
	}
}

func TestChooseHysteresisHold(t *testing.T) {
	candidates := []Candidate{
		healthyCandidate("a", 0, 100),
		healthyCandidate("b", 1, 60),
	}
	got := Choose(candidates, "a", 50*time.Millisecond)
	if got != "a" {
		t.Fatalf("expected hysteresis to hold on a (delta 40 < 50), got %s", got)
	}
}

func TestChooseHysteresisBoundary(t *testing.T) {
	tests := []struct {
		name      string
		latencyB  int64
		threshold time.Duration
		want      string
	}{
		{"delta one ms under threshold holds", 52, 50 * time.Millisecond, "a"},
		{"delta equal to threshold switches", 51, 50 * time.Millisecond, "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := []Candidate{
				healthyCandidate("a", 0, 101),
				healthyCandidate("b", 1, tt.latencyB),
			}
			got := Choose(candidates, "a", tt.threshold)
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestChooseReturnsCurrentWhenNoCandidates(t *testing.T) {
	candidates := []Candidate{
		{EndpointID: "a", State: &domain.EndpointState{Status: domain.StatusFailed}},
	}
	got := Choose(candidates, "a", 50*time.Millisecond)
	if got != "a" {
		t.Fatalf("expected unchanged current selection, got %s", got)
	}
}

func TestChooseForcedSwitchWhenCurrentNotEligible(t *testing.T) {
	candidates := []Candidate{
		{EndpointID: "a", State: &domain.EndpointState{Status: domain.StatusFailed}},
		healthyCandidate("b", 1, 90),
	}
	got := Choose(candidates, "a", 50*time.Millisecond)
	if got != "b" {
		t.Fatalf("expected forced switch to b, got %s", got)
	}
}

func TestChooseTieBreaksByDefinitionOrder(t *testing.T) {
	candidates := []Candidate{
		healthyCandidate("b", 1, 80),
		healthyCandidate("a", 0, 80),
	}
	got := Choose(candidates, "", 50*time.Millisecond)
	if got != "a" {
		t.Fatalf("expected stable tie-break to prefer earlier definition order (a), got %s", got)
	}
}
