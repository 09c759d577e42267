package execution

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"VaultCore/internal/event"
	"VaultCore/internal/fuse"
	"VaultCore/internal/market"
	"VaultCore/internal/observability"
	"VaultCore/internal/registry"
	"VaultCore/internal/risk"
)

// ErrFuseNotBound is returned when an action names a registered fuse with no
// bound implementation.
type ErrFuseNotBound struct {
	Fuse fuse.Address
}

func (e *ErrFuseNotBound) Error() string {
	return fmt.Sprintf("fuse %s has no bound implementation", e.Fuse)
}

// Approver is the external capability that grants spending authorizations.
// The vault's token plumbing lives outside this core; callbacks reach it
// only through this interface.
type Approver interface {
	Approve(ctx context.Context, asset, spender fuse.Address, amount *big.Int) error
}

// Executor drives one top-level vault call end to end: set the in-progress
// guard, run the requested fuse actions strictly in order, walk the market
// dependency closure, refresh balances through each market's balance fuse,
// fold the deltas into the vault total, and validate exposure limits —
// clearing the guard on every exit path. A failure anywhere rolls accounting
// back to its pre-call state, so a failed call leaves nothing behind.
//
// It also implements VaultOps, so callback handlers act through the vault's
// own operations rather than in its memory.
type Executor struct {
	registry   *registry.FuseRegistry
	balances   *registry.BalanceFuses
	accounting *market.Accounting
	limits     *risk.LimitManager
	callbacks  *CallbackRegistry
	guard      *Guard
	impls      map[fuse.Address]fuse.ActionFuse
	approver   Approver
	trail      event.Recorder
	metrics    *observability.Metrics
	log        zerolog.Logger
}

// Deps wires an Executor.
type Deps struct {
	Registry   *registry.FuseRegistry
	Balances   *registry.BalanceFuses
	Accounting *market.Accounting
	Limits     *risk.LimitManager
	Callbacks  *CallbackRegistry
	Approver   Approver
	Trail      event.Recorder
	Metrics    *observability.Metrics
	Log        zerolog.Logger
}

func NewExecutor(deps Deps) *Executor {
	trail := deps.Trail
	if trail == nil {
		trail = event.NopRecorder{}
	}
	return &Executor{
		registry:   deps.Registry,
		balances:   deps.Balances,
		accounting: deps.Accounting,
		limits:     deps.Limits,
		callbacks:  deps.Callbacks,
		guard:      NewGuard(),
		impls:      make(map[fuse.Address]fuse.ActionFuse),
		approver:   deps.Approver,
		trail:      trail,
		metrics:    deps.Metrics,
		log:        deps.Log,
	}
}

// Guard exposes the in-progress flag for callers that gate on it.
func (e *Executor) Guard() *Guard {
	return e.guard
}

// Bind associates a fuse implementation with its address. Binding does not
// authorize: the fuse still has to be registered before it can act.
func (e *Executor) Bind(f fuse.ActionFuse) {
	e.impls[f.Address()] = f
}

// Execute runs one top-level batch of fuse actions. Balance recomputation
// and limit checking happen only after every requested action has completed,
// never interleaved with them.
func (e *Executor) Execute(ctx context.Context, actions []fuse.Action) error {
	if err := e.guard.Begin(); err != nil {
		return err
	}
	defer e.guard.End()

	start := time.Now()
	snapshot := e.accounting.Snapshot()
	e.trail.Record(event.ExecutionStarted{Actions: len(actions)})

	err := e.executeLocked(ctx, actions)
	if err != nil {
		e.accounting.Restore(snapshot)
		e.log.Error().Err(err).Int("actions", len(actions)).Msg("execution failed, accounting restored")
		if e.metrics != nil {
			e.metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	e.trail.Record(event.ExecutionFinished{Actions: len(actions), Total: e.accounting.TotalAssets()})
	if e.metrics != nil {
		e.metrics.ExecutionsTotal.WithLabelValues("ok").Inc()
		e.metrics.ExecutionDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (e *Executor) executeLocked(ctx context.Context, actions []fuse.Action) error {
	touched, err := e.runActions(ctx, actions)
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.ActionsExecuted.Add(float64(len(actions)))
	}

	balances, err := e.refreshMarkets(ctx, touched)
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.LimitChecks.Inc()
	}
	if err := e.limits.CheckLimits(e.accounting.TotalAssets(), balances); err != nil {
		if breach, ok := err.(*risk.ErrMarketLimitExceeded); ok && e.metrics != nil {
			e.metrics.LimitBreaches.WithLabelValues(fmt.Sprintf("%d", breach.Market)).Inc()
		}
		return fmt.Errorf("limit check: %w", err)
	}

	return nil
}

// runActions invokes each action in caller-supplied order and returns the
// distinct market ids the invoked fuses operate in, in first-touch order.
func (e *Executor) runActions(ctx context.Context, actions []fuse.Action) ([]uint64, error) {
	var touched []uint64
	seen := make(map[uint64]bool)

	for i, a := range actions {
		if !e.registry.IsRegistered(a.Fuse) {
			return nil, &registry.ErrNotRegistered{Fuse: a.Fuse}
		}
		impl, ok := e.impls[a.Fuse]
		if !ok {
			return nil, &ErrFuseNotBound{Fuse: a.Fuse}
		}

		var err error
		switch a.Verb {
		case fuse.VerbEnter:
			err = impl.Enter(ctx, a.Params)
		case fuse.VerbExit:
			err = impl.Exit(ctx, a.Params)
		default:
			err = fmt.Errorf("unknown verb %d", a.Verb)
		}
		if err != nil {
			return nil, fmt.Errorf("action %d (%s %s): %w", i, a.Verb, a.Fuse, err)
		}

		if id := impl.MarketID(); !seen[id] {
			seen[id] = true
			touched = append(touched, id)
		}
	}

	return touched, nil
}

// refreshMarkets recomputes every market in the dependency closure of the
// touched set through its balance fuse, pairing each UpdateMarketTotal with
// its AddToTotal, and returns the refreshed distribution for limit checking.
// A touched market without a balance fuse is a configuration hole and fails
// the call.
func (e *Executor) refreshMarkets(ctx context.Context, touched []uint64) ([]risk.MarketBalance, error) {
	if len(touched) == 0 {
		return nil, nil
	}

	start := time.Now()
	closure := e.accounting.DependencyClosure(touched)
	updated := make([]event.MarketBalance, 0, len(closure))
	balances := make([]risk.MarketBalance, 0, len(closure))

	for _, id := range closure {
		bf, ok := e.balances.Get(id)
		if !ok {
			return nil, &registry.ErrNoBalanceFuse{Market: id}
		}

		value, err := bf.BalanceOf(ctx)
		if err != nil {
			return nil, fmt.Errorf("balance fuse for market %d: %w", id, err)
		}

		delta := e.accounting.UpdateMarketTotal(id, value)
		e.accounting.AddToTotal(delta)
		updated = append(updated, event.MarketBalance{Market: id, Balance: new(big.Int).Set(value)})
		balances = append(balances, risk.MarketBalance{MarketID: id, Balance: new(big.Int).Set(value)})
	}

	e.trail.Record(event.MarketBalancesUpdated{Balances: updated, Total: e.accounting.TotalAssets()})
	if e.metrics != nil {
		e.metrics.BalanceRefreshDuration.Observe(time.Since(start).Seconds())
		e.metrics.MarketsRefreshed.Add(float64(len(closure)))
	}
	return balances, nil
}

// HandleCallback is the entry point for an external protocol calling back
// into the vault mid-execution. While idle, dispatch is rejected outright.
func (e *Executor) HandleCallback(ctx context.Context, caller fuse.Address, sig Signature, payload []byte) error {
	if !e.guard.IsExecuting() {
		if e.metrics != nil {
			e.metrics.CallbackDispatches.WithLabelValues("rejected_idle").Inc()
		}
		return ErrNotExecuting
	}

	err := e.callbacks.Dispatch(ctx, caller, sig, payload, e)
	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.CallbackDispatches.WithLabelValues(status).Inc()
	}
	return err
}

// ExecuteActions implements VaultOps: run follow-up actions inside the
// current execution without re-entering the guard.
func (e *Executor) ExecuteActions(ctx context.Context, actions []fuse.Action) error {
	if !e.guard.IsExecuting() {
		return ErrNotExecuting
	}
	_, err := e.runActions(ctx, actions)
	return err
}

// Approve implements VaultOps by delegating to the external approver.
func (e *Executor) Approve(ctx context.Context, asset, spender fuse.Address, amount *big.Int) error {
	if e.approver == nil {
		return fmt.Errorf("no approver configured")
	}
	return e.approver.Approve(ctx, asset, spender, amount)
}
