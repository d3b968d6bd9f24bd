package registry

import (
	"net/url"
	"testing"
	"time"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	groupA := &domain.Group{
		Name:       "default",
		Default:    true,
		Credential: "token-a",
		Endpoints: []*domain.Endpoint{
			{Name: "a", URL: mustURL(t, "https://a.example"), GroupName: "default", DefinitionOrder: 0},
			{Name: "b", URL: mustURL(t, "https://b.example"), GroupName: "default", DefinitionOrder: 1},
		},
	}
	r, err := New([]*domain.Group{groupA})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNewRegistryInitialStateIsUnknown(t *testing.T) {
	r := newTestRegistry(t)
	for _, ep := range r.Endpoints() {
		state := r.State(ep.ID())
		if state == nil {
			t.Fatalf("missing state for %s", ep.ID())
		}
		if state.Status != domain.StatusUnknown {
			t.Errorf("expected Unknown status for %s, got %s", ep.ID(), state.Status)
		}
		if state.HasLatency() {
			t.Errorf("expected no latency for fresh endpoint %s", ep.ID())
		}
	}
}

func TestUpdateStateIsIsolatedFromCallerMutation(t *testing.T) {
	r := newTestRegistry(t)
	eps := r.Endpoints()
	id := eps[0].ID()

	latency := 50 * time.Millisecond
	r.UpdateState(id, func(s *domain.EndpointState) {
		s.Status = domain.StatusHealthy
		s.LastLatency = &latency
	})

	snapshot := r.State(id)
	if snapshot.Status != domain.StatusHealthy {
		t.Fatalf("expected Healthy, got %s", snapshot.Status)
	}

	// Mutating the returned snapshot must not affect the registry's copy.
	snapshot.Status = domain.StatusFailed
	again := r.State(id)
	if again.Status != domain.StatusHealthy {
		t.Fatalf("registry state leaked external mutation: got %s", again.Status)
	}
}

func TestSnapshotReturnsAllEndpointsInActiveGroup(t *testing.T) {
	r := newTestRegistry(t)
	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 states, got %d", len(snap))
	}
}

func TestSetActiveGroupRejectsUnknown(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.SetActiveGroup("nonexistent"); err == nil {
		t.Fatal("expected error switching to unknown group")
	}
	if r.ActiveGroupName() != "default" {
		t.Fatalf("active group changed despite error: %s", r.ActiveGroupName())
	}
}
