package risk

import (
	"fmt"
	"math/big"

	"VaultCore/internal/event"
	"VaultCore/internal/fpmath"
)

// SentinelMarketID is reserved: a non-zero limit stored under it is the
// global activation flag for the whole limit system, never a real cap.
const SentinelMarketID uint64 = 0

// ErrInvalidMarketID is returned when SetLimits names the reserved id 0.
type ErrInvalidMarketID struct {
	Market uint64
}

func (e *ErrInvalidMarketID) Error() string {
	return fmt.Sprintf("market id %d is reserved", e.Market)
}

// ErrLimitTooHigh is returned when a limit exceeds 100% (1e18).
type ErrLimitTooHigh struct {
	Market uint64
	Limit  *big.Int
}

func (e *ErrLimitTooHigh) Error() string {
	return fmt.Sprintf("limit %s for market %d exceeds 100%%", e.Limit, e.Market)
}

// ErrMarketLimitExceeded reports the first market whose balance breaches its
// cap, with the measured balance and the computed ceiling.
type ErrMarketLimitExceeded struct {
	Market  uint64
	Balance *big.Int
	Allowed *big.Int
}

func (e *ErrMarketLimitExceeded) Error() string {
	return fmt.Sprintf("market %d balance %s exceeds allowed %s", e.Market, e.Balance, e.Allowed)
}

// MarketLimit is one (market, WAD-scaled percentage) configuration entry.
type MarketLimit struct {
	MarketID uint64
	Limit    *big.Int
}

// MarketBalance is one (market, measured balance) pair for a limit check.
type MarketBalance struct {
	MarketID uint64
	Balance  *big.Int
}

// LimitManager enforces optional per-market exposure caps expressed as a
// fraction of total vault value. The system as a whole toggles between
// Inactive (default, checks are no-ops) and Active via the sentinel slot.
type LimitManager struct {
	// limits[SentinelMarketID] non-zero means the system is Active.
	limits map[uint64]*big.Int
	trail  event.Recorder
}

func NewLimitManager(trail event.Recorder) *LimitManager {
	if trail == nil {
		trail = event.NopRecorder{}
	}
	return &LimitManager{
		limits: make(map[uint64]*big.Int),
		trail:  trail,
	}
}

// Activate switches limit enforcement on.
func (m *LimitManager) Activate() {
	m.limits[SentinelMarketID] = big.NewInt(1)
	m.trail.Record(event.MarketLimitsActivated{})
}

// Deactivate switches limit enforcement off. Configured limits survive.
func (m *LimitManager) Deactivate() {
	delete(m.limits, SentinelMarketID)
	m.trail.Record(event.MarketLimitsDeactivated{})
}

// IsActive reports whether limit enforcement is on.
func (m *LimitManager) IsActive() bool {
	v, ok := m.limits[SentinelMarketID]
	return ok && v.Sign() != 0
}

// SetLimits stores a batch of caps. The batch is validated in full before
// any entry is applied, so a bad entry leaves the configuration untouched.
// The sentinel id is rejected even while the system is Inactive.
func (m *LimitManager) SetLimits(entries []MarketLimit) error {
	for _, e := range entries {
		if e.MarketID == SentinelMarketID {
			return &ErrInvalidMarketID{Market: e.MarketID}
		}
		if e.Limit.Cmp(fpmath.WAD) > 0 {
			return &ErrLimitTooHigh{Market: e.MarketID, Limit: new(big.Int).Set(e.Limit)}
		}
	}

	recorded := make([]event.LimitEntry, 0, len(entries))
	for _, e := range entries {
		m.limits[e.MarketID] = new(big.Int).Set(e.Limit)
		recorded = append(recorded, event.LimitEntry{Market: e.MarketID, Limit: new(big.Int).Set(e.Limit)})
	}

	m.trail.Record(event.MarketLimitsUpdated{Limits: recorded})
	return nil
}

// Limit returns a market's configured cap, nil if none is set.
func (m *LimitManager) Limit(marketID uint64) *big.Int {
	if v, ok := m.limits[marketID]; ok && marketID != SentinelMarketID {
		return new(big.Int).Set(v)
	}
	return nil
}

// CheckLimits validates a balance distribution against the configured caps.
// A no-op while Inactive. When Active, each market's ceiling is
// floor(limit * totalVaultValue / 1e18) at full precision; a balance
// exactly at the ceiling passes, one unit above fails. Markets with no
// configured limit are uncapped. Evaluation is in input order and the first
// breach aborts the whole check.
func (m *LimitManager) CheckLimits(totalVaultValue *big.Int, balances []MarketBalance) error {
	if !m.IsActive() {
		return nil
	}

	for _, b := range balances {
		limit, ok := m.limits[b.MarketID]
		if !ok || b.MarketID == SentinelMarketID {
			continue
		}

		allowed := fpmath.PercentOf(totalVaultValue, limit)
		if b.Balance.Cmp(allowed) > 0 {
			return &ErrMarketLimitExceeded{
				Market:  b.MarketID,
				Balance: new(big.Int).Set(b.Balance),
				Allowed: allowed,
			}
		}
	}

	return nil
}
