package orchestrator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// OpKind identifies one of the five user-facing transaction flows.
type OpKind int

const (
	OpMint OpKind = iota
	OpApprove
	OpStake
	OpUnstake
	OpClaim
)

// AllOpKinds lists every operation kind in a stable order.
var AllOpKinds = []OpKind{OpMint, OpApprove, OpStake, OpUnstake, OpClaim}

func (k OpKind) String() string {
	switch k {
	case OpMint:
		return "mint"
	case OpApprove:
		return "approve"
	case OpStake:
		return "stake"
	case OpUnstake:
		return "unstake"
	case OpClaim:
		return "claim"
	default:
		return "unknown"
	}
}

// MarshalText lets OpKind serialize as its name in JSON payloads.
func (k OpKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseOpKind maps an operation name back to its kind.
func ParseOpKind(s string) (OpKind, error) {
	for _, k := range AllOpKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind %q", s)
}

// OpState is the lifecycle state of one operation flow.
type OpState int32

const (
	// StateIdle means no transaction is in flight for this kind.
	StateIdle OpState = iota
	// StateSubmitting means the transaction is being signed and sent.
	StateSubmitting
	// StateConfirming means the transaction is mined-pending or awaiting
	// block confirmations.
	StateConfirming
	// StateSettled is the terminal observation of one flow: success or
	// failure. The tracker returns to Idle immediately after emitting it.
	StateSettled
)

func (s OpState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateConfirming:
		return "confirming"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// MarshalText lets OpState serialize as its name in JSON payloads.
func (s OpState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition is one observed state change of an operation flow, delivered to
// subscribers.
type Transition struct {
	Kind   OpKind    `json:"kind"`
	State  OpState   `json:"state"`
	TxHash string    `json:"tx_hash,omitempty"`
	Err    error     `json:"-"`
	Time   time.Time `json:"time"`
}

// tracker serializes one operation kind. begin is a compare-and-swap so two
// concurrent submissions of the same kind cannot both proceed; different
// kinds never block each other.
type tracker struct {
	kind  OpKind
	state atomic.Int32

	mu      sync.Mutex
	lastTx  string
	lastErr error
}

func newTracker(kind OpKind) *tracker {
	return &tracker{kind: kind}
}

// begin claims the flow. It returns false if a submission is already in
// flight for this kind.
func (t *tracker) begin() bool {
	return t.state.CompareAndSwap(int32(StateIdle), int32(StateSubmitting))
}

// confirm records the transaction hash and moves to Confirming.
func (t *tracker) confirm(hash string) {
	t.mu.Lock()
	t.lastTx = hash
	t.mu.Unlock()
	t.state.Store(int32(StateConfirming))
}

// settle ends the flow and records its outcome. The tracker goes straight
// back to Idle so the next submission is not blocked by a finished one.
func (t *tracker) settle(err error) {
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
	t.state.Store(int32(StateIdle))
}

func (t *tracker) current() OpState {
	return OpState(t.state.Load())
}

func (t *tracker) pending() bool {
	return t.current() != StateIdle
}

// last returns the most recent transaction hash and settlement error.
func (t *tracker) last() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTx, t.lastErr
}
