package switcher

import (
	"context"
	"testing"
	"time"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
	"github.com/beaconsage/claude-zephyr/internal/core/tracker"
	"github.com/beaconsage/claude-zephyr/pkg/eventbus"
)

func TestSwitchPublishesImmediatelyWithoutDisturbingBoundConnections(t *testing.T) {
	tr := tracker.New(time.Hour, time.Hour)
	events := eventbus.New[DrainEvent]()
	defer events.Shutdown()

	c := New(domain.CurrentSelection{EndpointID: "a", Mode: domain.ModeAutomatic}, tr, 50*time.Millisecond, events)

	connID := tr.Open("a")

	c.Switch("b", domain.ModeAutomatic)

	if got := c.Current().EndpointID; got != "b" {
		t.Fatalf("expected current selection to be b immediately, got %s", got)
	}

	// The pre-existing connection is unaffected by the switch - it's still
	// tracked against its original endpoint until the caller closes it.
	if got := tr.CountBoundTo("a"); got != 1 {
		t.Fatalf("expected connection still bound to a, count=%d", got)
	}

	tr.Close(connID)
}

func TestObserveDrainReportsCleanWhenConnectionsFinish(t *testing.T) {
	tr := tracker.New(time.Hour, time.Hour)
	events := eventbus.New[DrainEvent]()
	defer events.Shutdown()

	sub, cleanup := events.Subscribe(context.Background())
	defer cleanup()

	c := New(domain.CurrentSelection{EndpointID: "a"}, tr, time.Second, events)
	connID := tr.Open("a")

	c.Switch("b", domain.ModeAutomatic)
	tr.Close(connID)

	select {
	case evt := <-sub:
		if !evt.DrainedClean {
			t.Errorf("expected clean drain, got %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for drain event")
	}
}

func TestPinForcesManualMode(t *testing.T) {
	tr := tracker.New(time.Hour, time.Hour)
	c := New(domain.CurrentSelection{EndpointID: "a", Mode: domain.ModeAutomatic}, tr, 10*time.Millisecond, nil)

	c.Pin("b")

	current := c.Current()
	if current.EndpointID != "b" || current.Mode != domain.ModeManual {
		t.Fatalf("expected pinned b/manual, got %+v", current)
	}
}
