package orchestrator

import (
	"errors"
	"testing"
)

func TestTracker_BeginIsExclusive(t *testing.T) {
	tr := newTracker(OpStake)

	if !tr.begin() {
		t.Fatal("First begin should claim the flow")
	}
	if tr.begin() {
		t.Error("Second begin must fail while the flow is in flight")
	}

	tr.settle(nil)
	if !tr.begin() {
		t.Error("begin should succeed again after settlement")
	}
}

func TestTracker_SettleReturnsToIdle(t *testing.T) {
	tr := newTracker(OpClaim)
	settleErr := errors.New("reverted")

	tr.begin()
	tr.confirm("0xabc")
	if tr.current() != StateConfirming {
		t.Errorf("State = %v, want confirming", tr.current())
	}

	tr.settle(settleErr)
	if tr.current() != StateIdle {
		t.Errorf("State after settle = %v, want idle", tr.current())
	}
	hash, err := tr.last()
	if hash != "0xabc" {
		t.Errorf("Last hash = %q, want 0xabc", hash)
	}
	if !errors.Is(err, settleErr) {
		t.Errorf("Last error = %v, want %v", err, settleErr)
	}
}

func TestTracker_PendingWhileInFlight(t *testing.T) {
	tr := newTracker(OpMint)
	if tr.pending() {
		t.Error("Fresh tracker must not be pending")
	}
	tr.begin()
	if !tr.pending() {
		t.Error("Claimed tracker must be pending")
	}
}

func TestParseOpKind(t *testing.T) {
	for _, kind := range AllOpKinds {
		parsed, err := ParseOpKind(kind.String())
		if err != nil {
			t.Fatalf("ParseOpKind(%q): %v", kind, err)
		}
		if parsed != kind {
			t.Errorf("ParseOpKind(%q) = %v", kind, parsed)
		}
	}
	if _, err := ParseOpKind("transfer"); err == nil {
		t.Error("ParseOpKind should reject unknown names")
	}
}

func TestOpStateNames(t *testing.T) {
	want := map[OpState]string{
		StateIdle:       "idle",
		StateSubmitting: "submitting",
		StateConfirming: "confirming",
		StateSettled:    "settled",
	}
	for state, name := range want {
		if state.String() != name {
			t.Errorf("%d.String() = %q, want %q", state, state.String(), name)
		}
	}
}
