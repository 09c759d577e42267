package market

import (
	"math/big"
)

// Accounting maintains the vault-wide total and one cached total per market,
// all in 18-decimal USD. It also holds the advisory dependency graph between
// markets: directed edges to the markets whose balances must be recomputed
// together with a given one (a lending position depending on its collateral
// market, say). The graph is data only — no cycle detection, no automatic
// propagation; whoever refreshes balances walks it.
type Accounting struct {
	total   *big.Int
	markets map[uint64]*big.Int
	deps    map[uint64][]uint64
}

func NewAccounting() *Accounting {
	return &Accounting{
		total:   new(big.Int),
		markets: make(map[uint64]*big.Int),
		deps:    make(map[uint64][]uint64),
	}
}

// TotalAssets returns the vault-wide total.
func (a *Accounting) TotalAssets() *big.Int {
	return new(big.Int).Set(a.total)
}

// TotalAssetsInMarket returns a market's cached total, zero if never set.
func (a *Accounting) TotalAssetsInMarket(marketID uint64) *big.Int {
	if v, ok := a.markets[marketID]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// AddToTotal folds a signed delta into the vault-wide total. No clamping:
// callers pair this with UpdateMarketTotal and own the ordering.
func (a *Accounting) AddToTotal(delta *big.Int) {
	a.total.Add(a.total, delta)
}

// UpdateMarketTotal stores newValue unconditionally and returns new - old as
// a signed delta. The caller is responsible for folding the delta into the
// vault-wide total via AddToTotal; the two calls are paired, not atomic.
func (a *Accounting) UpdateMarketTotal(marketID uint64, newValue *big.Int) *big.Int {
	old, ok := a.markets[marketID]
	if !ok {
		old = new(big.Int)
	}

	delta := new(big.Int).Sub(newValue, old)
	a.markets[marketID] = new(big.Int).Set(newValue)
	return delta
}

// SetDependencies replaces a market's outgoing dependency edges.
func (a *Accounting) SetDependencies(marketID uint64, deps []uint64) {
	stored := make([]uint64, len(deps))
	copy(stored, deps)
	a.deps[marketID] = stored
}

// GetDependencies returns a market's direct dependency edges.
func (a *Accounting) GetDependencies(marketID uint64) []uint64 {
	out := make([]uint64, len(a.deps[marketID]))
	copy(out, a.deps[marketID])
	return out
}

// DependencyClosure walks the graph transitively from the given markets and
// returns the deduplicated closure, inputs included, in first-seen order.
// This is the caller-side walk the graph itself never performs; a cycle in
// the configured edges terminates through the seen set rather than erroring.
func (a *Accounting) DependencyClosure(marketIDs []uint64) []uint64 {
	seen := make(map[uint64]bool, len(marketIDs))
	var order []uint64

	queue := make([]uint64, 0, len(marketIDs))
	queue = append(queue, marketIDs...)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
		queue = append(queue, a.deps[id]...)
	}

	return order
}

// Snapshot captures all totals for restore-on-failure. A failed top-level
// call must leave accounting exactly as it found it.
type Snapshot struct {
	total   *big.Int
	markets map[uint64]*big.Int
}

// Snapshot copies the current totals. Dependency edges are configuration,
// not per-call state, and are not captured.
func (a *Accounting) Snapshot() *Snapshot {
	markets := make(map[uint64]*big.Int, len(a.markets))
	for id, v := range a.markets {
		markets[id] = new(big.Int).Set(v)
	}
	return &Snapshot{
		total:   new(big.Int).Set(a.total),
		markets: markets,
	}
}

// Restore rolls totals back to a snapshot.
func (a *Accounting) Restore(s *Snapshot) {
	a.total = new(big.Int).Set(s.total)
	a.markets = make(map[uint64]*big.Int, len(s.markets))
	for id, v := range s.markets {
		a.markets[id] = new(big.Int).Set(v)
	}
}
