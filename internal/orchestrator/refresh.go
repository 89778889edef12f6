package orchestrator

import (
	"context"
	"time"
)

// RefreshScope selects which parts of the snapshot a reload touches.
type RefreshScope uint8

const (
	ScopeBalance RefreshScope = 1 << iota
	ScopeStaker
	ScopeAllowance
	ScopePool

	ScopeAll = ScopeBalance | ScopeStaker | ScopeAllowance | ScopePool

	// ScopeAfterWrite is what a settled mint/stake/unstake/claim refreshes:
	// everything the transaction can have moved. Approvals use
	// ScopeAllowance alone since they touch nothing else.
	ScopeAfterWrite = ScopeBalance | ScopeStaker | ScopeAllowance | ScopePool
)

// refresher coalesces reload requests. Refreshes are driven by transaction
// settlement rather than a fixed polling timer: each settled transaction
// requests the scope it can have changed, and requests arriving while a
// settle delay is pending merge into one reload. An optional poll interval
// keeps externally-caused changes (other stakers) visible.
type refresher struct {
	reload func(context.Context, RefreshScope)
	delay  time.Duration
	poll   time.Duration

	pending chan RefreshScope
	signal  chan struct{}
}

func newRefresher(reload func(context.Context, RefreshScope), delay, poll time.Duration) *refresher {
	r := &refresher{
		reload:  reload,
		delay:   delay,
		poll:    poll,
		pending: make(chan RefreshScope, 1),
		signal:  make(chan struct{}, 1),
	}
	r.pending <- 0
	return r
}

// Request merges scope into the pending reload and wakes the loop. It never
// blocks and is safe from any goroutine.
func (r *refresher) Request(scope RefreshScope) {
	p := <-r.pending
	r.pending <- p | scope
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// take swaps the accumulated scope for zero.
func (r *refresher) take() RefreshScope {
	p := <-r.pending
	r.pending <- 0
	return p
}

// run processes requests until ctx is cancelled. Call from a dedicated
// goroutine.
func (r *refresher) run(ctx context.Context) {
	var pollC <-chan time.Time
	if r.poll > 0 {
		ticker := time.NewTicker(r.poll)
		defer ticker.Stop()
		pollC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollC:
			r.reload(ctx, ScopeAll)
		case <-r.signal:
			// Let the just-settled block propagate before re-reading, and
			// absorb further requests raised in the meantime.
			if r.delay > 0 {
				timer := time.NewTimer(r.delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			if scope := r.take(); scope != 0 {
				r.reload(ctx, scope)
			}
		}
	}
}
