package event

import (
	"math/big"

	"VaultCore/internal/fuse"
)

// FuseAdded records a fuse joining the registry.
type FuseAdded struct {
	Fuse fuse.Address `json:"fuse"`
}

func (FuseAdded) RecordType() RecordType { return RecordTypeFuseAdded }
func (FuseAdded) MarketID() *uint64      { return nil }

// FuseRemoved records a fuse leaving the registry.
type FuseRemoved struct {
	Fuse fuse.Address `json:"fuse"`
}

func (FuseRemoved) RecordType() RecordType { return RecordTypeFuseRemoved }
func (FuseRemoved) MarketID() *uint64      { return nil }

// BalanceFuseAdded records a market's balance fuse slot being filled.
type BalanceFuseAdded struct {
	Market uint64       `json:"market"`
	Fuse   fuse.Address `json:"fuse"`
}

func (BalanceFuseAdded) RecordType() RecordType { return RecordTypeBalanceFuseAdded }
func (r BalanceFuseAdded) MarketID() *uint64    { return &r.Market }

// BalanceFuseRemoved records a market's balance fuse slot being cleared.
type BalanceFuseRemoved struct {
	Market uint64       `json:"market"`
	Fuse   fuse.Address `json:"fuse"`
}

func (BalanceFuseRemoved) RecordType() RecordType { return RecordTypeBalanceFuseRemoved }
func (r BalanceFuseRemoved) MarketID() *uint64    { return &r.Market }

// SubstratesGranted records a wholesale substrate reconfiguration for a
// market. Substrates is the complete new allow-list, not a delta.
type SubstratesGranted struct {
	Market     uint64           `json:"market"`
	Substrates []fuse.Substrate `json:"substrates"`
}

func (SubstratesGranted) RecordType() RecordType { return RecordTypeSubstratesGranted }
func (r SubstratesGranted) MarketID() *uint64    { return &r.Market }

// MarketLimitsActivated records the exposure-limit system switching on.
type MarketLimitsActivated struct{}

func (MarketLimitsActivated) RecordType() RecordType { return RecordTypeMarketLimitsActivated }
func (MarketLimitsActivated) MarketID() *uint64      { return nil }

// MarketLimitsDeactivated records the exposure-limit system switching off.
type MarketLimitsDeactivated struct{}

func (MarketLimitsDeactivated) RecordType() RecordType { return RecordTypeMarketLimitsDeactivated }
func (MarketLimitsDeactivated) MarketID() *uint64      { return nil }

// LimitEntry is one (market, WAD-scaled percentage) pair.
type LimitEntry struct {
	Market uint64   `json:"market"`
	Limit  *big.Int `json:"limit"`
}

// MarketLimitsUpdated records a batch of limit changes.
type MarketLimitsUpdated struct {
	Limits []LimitEntry `json:"limits"`
}

func (MarketLimitsUpdated) RecordType() RecordType { return RecordTypeMarketLimitsUpdated }
func (MarketLimitsUpdated) MarketID() *uint64      { return nil }

// CallbackHandlerUpdated records a (caller, signature) pair being bound to a
// callback handler.
type CallbackHandlerUpdated struct {
	Caller    fuse.Address `json:"caller"`
	Signature string       `json:"signature"`
	Handler   string       `json:"handler"`
}

func (CallbackHandlerUpdated) RecordType() RecordType { return RecordTypeCallbackHandlerUpdated }
func (CallbackHandlerUpdated) MarketID() *uint64      { return nil }

// WithdrawalSequenceUpdated records the instant-withdrawal plan being
// replaced. Fuses is the complete new order.
type WithdrawalSequenceUpdated struct {
	Fuses []fuse.Address `json:"fuses"`
}

func (WithdrawalSequenceUpdated) RecordType() RecordType {
	return RecordTypeWithdrawalSequenceUpdated
}
func (WithdrawalSequenceUpdated) MarketID() *uint64 { return nil }

// MarketBalance is one refreshed (market, value) pair.
type MarketBalance struct {
	Market  uint64   `json:"market"`
	Balance *big.Int `json:"balance"`
}

// MarketBalancesUpdated records a balance refresh cycle across markets.
type MarketBalancesUpdated struct {
	Balances []MarketBalance `json:"balances"`
	Total    *big.Int        `json:"total"`
}

func (MarketBalancesUpdated) RecordType() RecordType { return RecordTypeMarketBalancesUpdated }
func (MarketBalancesUpdated) MarketID() *uint64      { return nil }

// ExecutionStarted records entry into a top-level execute call.
type ExecutionStarted struct {
	Actions int `json:"actions"`
}

func (ExecutionStarted) RecordType() RecordType { return RecordTypeExecutionStarted }
func (ExecutionStarted) MarketID() *uint64      { return nil }

// ExecutionFinished records completion of a top-level execute call.
type ExecutionFinished struct {
	Actions int      `json:"actions"`
	Total   *big.Int `json:"total"`
}

func (ExecutionFinished) RecordType() RecordType { return RecordTypeExecutionFinished }
func (ExecutionFinished) MarketID() *uint64      { return nil }
