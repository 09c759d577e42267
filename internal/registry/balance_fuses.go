package registry

import (
	"context"
	"fmt"
	"math/big"

	"VaultCore/internal/event"
	"VaultCore/internal/fpmath"
	"VaultCore/internal/fuse"
)

// ErrBalanceFuseExists is returned when a market's slot already holds the
// requested fuse.
type ErrBalanceFuseExists struct {
	Market uint64
	Fuse   fuse.Address
}

func (e *ErrBalanceFuseExists) Error() string {
	return fmt.Sprintf("market %d already uses balance fuse %s", e.Market, e.Fuse)
}

// ErrNoBalanceFuse is returned when a market has no balance fuse configured.
type ErrNoBalanceFuse struct {
	Market uint64
}

func (e *ErrNoBalanceFuse) Error() string {
	return fmt.Sprintf("market %d has no balance fuse", e.Market)
}

// ErrNotReadyToRemove is returned when a balance fuse still reports value
// above the dust tolerance; removing it would silently orphan that value.
type ErrNotReadyToRemove struct {
	Market    uint64
	Residual  *big.Int
	Tolerance *big.Int
}

func (e *ErrNotReadyToRemove) Error() string {
	return fmt.Sprintf("market %d balance fuse not ready to remove: residual %s exceeds tolerance %s",
		e.Market, e.Residual, e.Tolerance)
}

// BalanceFuses holds the one-per-market balance fuse slots. Unlike the
// action-fuse registry this is not a growable list: each market has exactly
// one slot, filled or empty.
type BalanceFuses struct {
	fuses map[uint64]fuse.BalanceFuse
	dust  *big.Int
	trail event.Recorder
}

// NewBalanceFuses creates the slot table. decimals is the vault's value
// precision; the dust tolerance for removal is derived from it.
func NewBalanceFuses(decimals uint8, trail event.Recorder) *BalanceFuses {
	if trail == nil {
		trail = event.NopRecorder{}
	}
	return &BalanceFuses{
		fuses: make(map[uint64]fuse.BalanceFuse),
		dust:  fpmath.DustTolerance(decimals),
		trail: trail,
	}
}

// Set fills a market's slot. Re-setting the identical fuse fails; replacing
// with a different fuse is a legitimate reconfiguration and succeeds.
func (b *BalanceFuses) Set(marketID uint64, f fuse.BalanceFuse) error {
	if current, ok := b.fuses[marketID]; ok && current.Address() == f.Address() {
		return &ErrBalanceFuseExists{Market: marketID, Fuse: f.Address()}
	}

	b.fuses[marketID] = f
	b.trail.Record(event.BalanceFuseAdded{Market: marketID, Fuse: f.Address()})
	return nil
}

// Remove clears a market's slot after confirming the outgoing fuse reports
// no more than dust. The residual query goes through the fuse itself, so a
// market still holding value cannot lose its accounting silently.
func (b *BalanceFuses) Remove(ctx context.Context, marketID uint64) error {
	f, ok := b.fuses[marketID]
	if !ok {
		return &ErrNoBalanceFuse{Market: marketID}
	}

	residual, err := f.BalanceOf(ctx)
	if err != nil {
		return fmt.Errorf("query residual for market %d: %w", marketID, err)
	}
	if residual.Cmp(b.dust) > 0 {
		return &ErrNotReadyToRemove{
			Market:    marketID,
			Residual:  new(big.Int).Set(residual),
			Tolerance: new(big.Int).Set(b.dust),
		}
	}

	delete(b.fuses, marketID)
	b.trail.Record(event.BalanceFuseRemoved{Market: marketID, Fuse: f.Address()})
	return nil
}

// Get returns the balance fuse serving a market.
func (b *BalanceFuses) Get(marketID uint64) (fuse.BalanceFuse, bool) {
	f, ok := b.fuses[marketID]
	return f, ok
}

// DustTolerance returns the removal threshold.
func (b *BalanceFuses) DustTolerance() *big.Int {
	return new(big.Int).Set(b.dust)
}
