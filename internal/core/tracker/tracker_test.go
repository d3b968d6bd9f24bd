package tracker

import (
	"testing"
	"time"
)

func TestOpenThenCloseLeavesCountUnchanged(t *testing.T) {
	tr := New(15*time.Second, 60*time.Second)
	before := tr.CountBoundTo("a")
	id := tr.Open("a")
	tr.Close(id)
	after := tr.CountBoundTo("a")
	if before != after {
		t.Fatalf("expected count unchanged by open+close, before=%d after=%d", before, after)
	}
}

func TestSweepTransitionsIdleOpenToInterrupted(t *testing.T) {
	tr := New(10*time.Millisecond, time.Hour)
	id := tr.Open("a")
	time.Sleep(20 * time.Millisecond)

	tr.Sweep()

	found := false
	for _, c := range tr.Snapshot() {
		if c.ID == id {
			found = true
			if c.Status.String() != "interrupted" {
				t.Errorf("expected interrupted, got %s", c.Status)
			}
		}
	}
	if !found {
		t.Fatal("expected connection to still be present (not hard-ejected yet)")
	}
}

func TestSweepHardEjectsStaleInterrupted(t *testing.T) {
	tr := New(time.Millisecond, 5*time.Millisecond)
	id := tr.Open("a")
	time.Sleep(2 * time.Millisecond)
	tr.Sweep() // transitions to Interrupted
	time.Sleep(10 * time.Millisecond)
	tr.Sweep() // hard-ejects

	for _, c := range tr.Snapshot() {
		if c.ID == id {
			t.Fatal("expected stale interrupted connection to be ejected")
		}
	}
}

func TestSweepIsIdempotentWithNoActivity(t *testing.T) {
	tr := New(time.Hour, time.Hour)
	tr.Open("a")
	tr.Open("b")

	before := tr.Snapshot()
	tr.Sweep()
	tr.Sweep()
	after := tr.Snapshot()

	if len(before) != len(after) {
		t.Fatalf("expected sweep to be idempotent with no activity, before=%d after=%d", len(before), len(after))
	}
}

func TestSweepEjectsConfirmedDisconnectWithinIdleWindow(t *testing.T) {
	tr := New(5*time.Millisecond, time.Hour)
	id := tr.Open("a")
	tr.MarkInterrupted(id)
	time.Sleep(10 * time.Millisecond)

	tr.Sweep()

	for _, c := range tr.Snapshot() {
		if c.ID == id {
			t.Fatal("expected a confirmed client disconnect to be ejected within idleInterrupt, not hardEject")
		}
	}
}

func TestCountBoundToOnlyCountsNonInterrupted(t *testing.T) {
	tr := New(time.Hour, time.Hour)
	tr.Open("a")
	interruptedID := tr.Open("a")
	tr.MarkInterrupted(interruptedID)

	if got := tr.CountBoundTo("a"); got != 1 {
		t.Fatalf("expected 1 non-interrupted connection bound to a, got %d", got)
	}
}
