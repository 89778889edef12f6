package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"github.com/stakepilot/stakepilot/internal/chain"
	"github.com/stakepilot/stakepilot/internal/contracts"
	"github.com/stakepilot/stakepilot/internal/logging"
	"github.com/stakepilot/stakepilot/internal/metrics"
	"github.com/stakepilot/stakepilot/internal/util"
)

var (
	// ErrOpPending means a transaction of the same kind is already in
	// flight. Kinds are independent: a pending stake does not block a claim.
	ErrOpPending = errors.New("operation already in flight")

	// ErrInvalidAmount covers empty, non-numeric, and non-positive amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNothingToClaim means pending rewards are zero or not yet known.
	ErrNothingToClaim = errors.New("no rewards to claim")
)

// Config tunes an Orchestrator.
type Config struct {
	// Account is the address whose balances, stake and allowance are read.
	Account common.Address

	// SettleDelay is how long a settled transaction's refresh waits before
	// re-reading, letting the new block propagate. Zero reloads immediately.
	SettleDelay time.Duration

	// PollInterval enables a background full reload so changes made by
	// other stakers become visible. Zero disables polling.
	PollInterval time.Duration

	// ReadRatePerSec caps contract read calls per second. Zero means
	// unlimited.
	ReadRatePerSec float64

	// Metrics receives operation and read metrics when non-nil.
	Metrics *metrics.Collector
}

// Orchestrator owns the staking session for one account on one chain: it
// reads contract state into a Snapshot, derives the display view, and runs
// the five transaction flows with per-kind mutual exclusion.
//
// It is torn down and rebuilt on account or chain changes; state from the
// previous session never leaks into the next.
type Orchestrator struct {
	cfg     Config
	client  *chain.Client // nil when the contracts run in mock mode
	token   *contracts.Token
	staking *contracts.Staking

	limiter *rate.Limiter

	stateMu sync.RWMutex
	snap    Snapshot

	trackers map[OpKind]*tracker

	refresher *refresher

	subMu sync.Mutex
	subs  map[chan Transition]struct{}

	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New creates an Orchestrator over a token/staking contract pair. client may
// be nil when both contracts are in mock mode.
func New(client *chain.Client, token *contracts.Token, staking *contracts.Staking, cfg Config) (*Orchestrator, error) {
	if token == nil || staking == nil {
		return nil, fmt.Errorf("token and staking contracts are required")
	}
	if client == nil && !token.IsMockMode() {
		return nil, fmt.Errorf("chain client is required outside mock mode")
	}

	o := &Orchestrator{
		cfg:      cfg,
		client:   client,
		token:    token,
		staking:  staking,
		trackers: make(map[OpKind]*tracker, len(AllOpKinds)),
		subs:     make(map[chan Transition]struct{}),
	}
	for _, kind := range AllOpKinds {
		o.trackers[kind] = newTracker(kind)
	}
	if cfg.ReadRatePerSec > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(cfg.ReadRatePerSec), int(cfg.ReadRatePerSec)+1)
	}
	o.refresher = newRefresher(o.reload, cfg.SettleDelay, cfg.PollInterval)
	return o, nil
}

// Start loads the initial snapshot and begins processing refreshes. The
// passed context bounds the initial load only; Close stops the background
// work.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true
	o.runCtx, o.cancel = context.WithCancel(context.Background())
	o.wg.Add(1)
	o.mu.Unlock()

	o.reload(ctx, ScopeAll)

	util.SafeGoWithName("orchestrator-refresh", func() {
		defer o.wg.Done()
		o.refresher.run(o.runCtx)
	})
	return nil
}

// Close cancels background work and waits for in-flight watchers to exit.
// Subscriber channels are closed afterwards.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	cancel := o.cancel
	o.mu.Unlock()

	cancel()
	o.wg.Wait()

	o.subMu.Lock()
	for ch := range o.subs {
		close(ch)
		delete(o.subs, ch)
	}
	o.subMu.Unlock()
}

// Snapshot returns a copy of the current chain state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.snap.Clone()
}

// View derives the display projection, with stakeInput driving the approval
// requirement.
func (o *Orchestrator) View(stakeInput string) DerivedView {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.ViewRequest()
	}
	return DeriveView(o.Snapshot(), stakeInput)
}

// PendingOps reports which operation kinds have a transaction in flight.
func (o *Orchestrator) PendingOps() map[OpKind]bool {
	out := make(map[OpKind]bool, len(AllOpKinds))
	for kind, tr := range o.trackers {
		out[kind] = tr.pending()
	}
	return out
}

// OpStatus returns the current state and last outcome of one flow.
func (o *Orchestrator) OpStatus(kind OpKind) (OpState, string, error) {
	tr := o.trackers[kind]
	hash, lastErr := tr.last()
	return tr.current(), hash, lastErr
}

// Subscribe registers for operation state transitions. The returned cancel
// removes the subscription; the channel is closed on cancel or Close. Slow
// consumers drop transitions instead of blocking flows.
func (o *Orchestrator) Subscribe() (<-chan Transition, func()) {
	ch := make(chan Transition, 16)
	o.subMu.Lock()
	o.subs[ch] = struct{}{}
	o.subMu.Unlock()

	cancel := func() {
		o.subMu.Lock()
		if _, ok := o.subs[ch]; ok {
			delete(o.subs, ch)
			close(ch)
		}
		o.subMu.Unlock()
	}
	return ch, cancel
}

// RequestRefresh schedules a reload of the given scope through the
// coalescing refresher.
func (o *Orchestrator) RequestRefresh(scope RefreshScope) {
	o.refresher.Request(scope)
}

// Mint mints test tokens to the account. amount is in whole tokens.
func (o *Orchestrator) Mint(ctx context.Context, amount string) error {
	wei, err := parseAmount(amount)
	if err != nil {
		return err
	}
	return o.run(ctx, OpMint, ScopeAfterWrite, func(ctx context.Context) (*types.Transaction, error) {
		return o.token.Mint(ctx, wei)
	})
}

// Approve grants the staking contract exactly amount. Approving less than a
// later stake will make that stake revert; the view's NeedsApproval guides
// the amount.
func (o *Orchestrator) Approve(ctx context.Context, amount string) error {
	wei, err := parseAmount(amount)
	if err != nil {
		return err
	}
	return o.run(ctx, OpApprove, ScopeAllowance, func(ctx context.Context) (*types.Transaction, error) {
		return o.token.Approve(ctx, o.staking.Address(), wei)
	})
}

// Stake stakes amount whole tokens. The allowance must already cover it.
func (o *Orchestrator) Stake(ctx context.Context, amount string) error {
	wei, err := parseAmount(amount)
	if err != nil {
		return err
	}
	return o.run(ctx, OpStake, ScopeAfterWrite, func(ctx context.Context) (*types.Transaction, error) {
		return o.staking.Stake(ctx, wei)
	})
}

// Unstake withdraws amount whole tokens from the stake.
func (o *Orchestrator) Unstake(ctx context.Context, amount string) error {
	wei, err := parseAmount(amount)
	if err != nil {
		return err
	}
	return o.run(ctx, OpUnstake, ScopeAfterWrite, func(ctx context.Context) (*types.Transaction, error) {
		return o.staking.Unstake(ctx, wei)
	})
}

// Claim claims all pending rewards. It refuses when rewards are zero or not
// yet loaded, so a stray click cannot burn gas on a no-op.
func (o *Orchestrator) Claim(ctx context.Context) error {
	o.stateMu.RLock()
	rewards := cloneBig(o.snap.Rewards)
	o.stateMu.RUnlock()
	if rewards == nil || rewards.Sign() == 0 {
		return ErrNothingToClaim
	}
	return o.run(ctx, OpClaim, ScopeAfterWrite, func(ctx context.Context) (*types.Transaction, error) {
		return o.staking.ClaimRewards(ctx)
	})
}

func parseAmount(amount string) (*big.Int, error) {
	wei, err := contracts.ParseUnits(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if wei.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return wei, nil
}

// run executes one flow: claim the tracker, submit, then either settle
// immediately (mock transactions are nil) or watch for confirmation in the
// background. The submitted scope is refreshed once the flow settles.
func (o *Orchestrator) run(ctx context.Context, kind OpKind, scope RefreshScope, submit func(context.Context) (*types.Transaction, error)) error {
	tr := o.trackers[kind]
	if !tr.begin() {
		return fmt.Errorf("%w: %s", ErrOpPending, kind)
	}
	o.emit(Transition{Kind: kind, State: StateSubmitting, Time: time.Now()})

	tx, err := submit(ctx)
	if err != nil {
		tr.settle(err)
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.OpRejected(kind.String())
		}
		logging.Warn("submission rejected", logging.Operation(kind.String()), logging.Err(err))
		o.emit(Transition{Kind: kind, State: StateSettled, Err: err, Time: time.Now()})
		return err
	}

	if o.cfg.Metrics != nil {
		o.cfg.Metrics.OpSubmitted(kind.String())
	}

	if tx == nil {
		// Mock-mode writes apply synchronously and produce no transaction.
		tr.settle(nil)
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.OpSettled(kind.String(), "success")
		}
		o.emit(Transition{Kind: kind, State: StateSettled, Time: time.Now()})
		o.refresher.Request(scope)
		return nil
	}

	hash := tx.Hash().Hex()
	tr.confirm(hash)
	logging.Info("transaction submitted",
		logging.Operation(kind.String()), logging.TxHash(hash))
	o.emit(Transition{Kind: kind, State: StateConfirming, TxHash: hash, Time: time.Now()})

	if !o.addWatcher() {
		// Close began between submission and watch startup. The transaction
		// is broadcast regardless; the next session observes its effects.
		tr.settle(context.Canceled)
		o.emit(Transition{Kind: kind, State: StateSettled, TxHash: hash, Err: context.Canceled, Time: time.Now()})
		return nil
	}
	util.SafeGoWithName("op-watch-"+kind.String(), func() {
		defer o.wg.Done()
		o.watch(kind, scope, tx)
	})
	return nil
}

// addWatcher registers a confirmation watcher with the lifecycle wait group.
// It refuses once Close has begun, so the group cannot grow while Close is
// already waiting on it.
func (o *Orchestrator) addWatcher() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started {
		return false
	}
	o.wg.Add(1)
	return true
}

// watch waits for confirmation on the orchestrator's lifetime context, so a
// teardown abandons the wait rather than leaking it.
func (o *Orchestrator) watch(kind OpKind, scope RefreshScope, tx *types.Transaction) {
	tr := o.trackers[kind]
	hash := tx.Hash().Hex()

	_, err := o.client.WaitForTransaction(o.runCtx, tx)
	tr.settle(err)

	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, chain.ErrReverted):
		outcome = "reverted"
		logging.Warn("transaction reverted",
			logging.Operation(kind.String()), logging.TxHash(hash))
	default:
		outcome = "error"
		logging.Error("confirmation failed",
			logging.Operation(kind.String()), logging.TxHash(hash), logging.Err(err))
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.OpSettled(kind.String(), outcome)
	}

	o.emit(Transition{Kind: kind, State: StateSettled, TxHash: hash, Err: err, Time: time.Now()})

	// Refresh even after a revert: the balance changed by gas and the
	// snapshot timestamp should reflect the settled flow.
	o.refresher.Request(scope)
}

func (o *Orchestrator) emit(t Transition) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for ch := range o.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

// readRetry covers transient RPC hiccups. One quick retry only: a reload
// that stays stale simply leaves the value unknown until the next refresh.
var readRetry = &util.RetryConfig{
	MaxRetries: 1,
	BaseDelay:  200 * time.Millisecond,
	MaxDelay:   time.Second,
	Multiplier: 2.0,
}

// reload reads the scoped values concurrently. A failed read logs, counts,
// and resets its value to unknown rather than freezing a stale number.
func (o *Orchestrator) reload(ctx context.Context, scope RefreshScope) {
	start := time.Now()
	account := o.cfg.Account
	// Without a connected account the account-scoped values stay unknown
	// rather than reading the zero address; pool reads are global and proceed.
	accountKnown := account != (common.Address{})

	var wg sync.WaitGroup
	read := func(name string, fn func(context.Context) (*big.Int, error), store func(*big.Int)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.waitRead(ctx); err != nil {
				return
			}
			v, result := util.RetryWithValue(ctx, readRetry, func() (*big.Int, error) {
				return fn(ctx)
			})
			if err := result.LastError; err != nil {
				if o.cfg.Metrics != nil {
					o.cfg.Metrics.ReadError()
				}
				logging.Warn("read failed", logging.Component(name), logging.Err(err))
				v = nil
			}
			o.stateMu.Lock()
			store(v)
			o.stateMu.Unlock()
		}()
	}

	if scope&ScopeBalance != 0 && accountKnown {
		read("balance", func(ctx context.Context) (*big.Int, error) {
			return o.token.BalanceOf(ctx, account)
		}, func(v *big.Int) { o.snap.Balance = v })
	}
	if scope&ScopeAllowance != 0 && accountKnown {
		read("allowance", func(ctx context.Context) (*big.Int, error) {
			return o.token.Allowance(ctx, account, o.staking.Address())
		}, func(v *big.Int) { o.snap.Allowance = v })
	}
	if scope&ScopeStaker != 0 && accountKnown {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.waitRead(ctx); err != nil {
				return
			}
			// Staked amount and rewards come from one call so they can
			// never disagree about the block they were read at.
			info, result := util.RetryWithValue(ctx, readRetry, func() (*contracts.StakerInfo, error) {
				return o.staking.GetStakerInfo(ctx, account)
			})
			if err := result.LastError; err != nil {
				if o.cfg.Metrics != nil {
					o.cfg.Metrics.ReadError()
				}
				logging.Warn("read failed", logging.Component("staker_info"), logging.Err(err))
				info = &contracts.StakerInfo{}
			}
			o.stateMu.Lock()
			o.snap.Staked = info.StakedAmount
			o.snap.Rewards = info.PendingRewards
			o.stateMu.Unlock()
		}()
	}
	if scope&ScopePool != 0 {
		read("total_staked", func(ctx context.Context) (*big.Int, error) {
			return o.staking.TotalStaked(ctx)
		}, func(v *big.Int) { o.snap.TotalStaked = v })
		read("reward_rate", func(ctx context.Context) (*big.Int, error) {
			return o.staking.RewardRate(ctx)
		}, func(v *big.Int) { o.snap.RewardRate = v })
	}

	wg.Wait()

	o.stateMu.Lock()
	o.snap.UpdatedAt = time.Now()
	o.stateMu.Unlock()

	if o.cfg.Metrics != nil {
		o.cfg.Metrics.ObserveReload(time.Since(start).Seconds())
	}
}

func (o *Orchestrator) waitRead(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	return o.limiter.Wait(ctx)
}
