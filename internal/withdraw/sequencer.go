package withdraw

import (
	"context"
	"fmt"
	"math/big"

	"VaultCore/internal/event"
	"VaultCore/internal/fuse"
	"VaultCore/internal/registry"
)

// ErrFuseUnsupported is returned when a plan entry names a fuse that is not
// currently registered.
type ErrFuseUnsupported struct {
	Fuse fuse.Address
}

func (e *ErrFuseUnsupported) Error() string {
	return fmt.Sprintf("fuse %s not registered, cannot join withdrawal sequence", e.Fuse)
}

// Entry is one step of the instant-withdrawal plan: a fuse and the params it
// should exit with. The same fuse may appear at several positions with
// different params (withdraw the same asset from market A, then market B).
type Entry struct {
	Fuse   fuse.Address
	Params []fuse.Substrate
}

type paramKey struct {
	fuse     fuse.Address
	position int
}

// Sequencer holds the priority order in which fuses are tried to satisfy an
// immediate withdrawal. Params are keyed by (fuse, position), so repeated
// fuses keep distinct parameter vectors.
type Sequencer struct {
	registry *registry.FuseRegistry
	order    []fuse.Address
	params   map[paramKey][]fuse.Substrate
	trail    event.Recorder
}

func NewSequencer(reg *registry.FuseRegistry, trail event.Recorder) *Sequencer {
	if trail == nil {
		trail = event.NopRecorder{}
	}
	return &Sequencer{
		registry: reg,
		params:   make(map[paramKey][]fuse.Substrate),
		trail:    trail,
	}
}

// Configure replaces the entire plan. Every entry's fuse is validated
// against the registry before anything is stored, so a bad entry leaves the
// previous plan intact.
func (s *Sequencer) Configure(entries []Entry) error {
	for _, e := range entries {
		if !s.registry.IsRegistered(e.Fuse) {
			return &ErrFuseUnsupported{Fuse: e.Fuse}
		}
	}

	order := make([]fuse.Address, 0, len(entries))
	params := make(map[paramKey][]fuse.Substrate, len(entries))
	for i, e := range entries {
		order = append(order, e.Fuse)
		p := make([]fuse.Substrate, len(e.Params))
		copy(p, e.Params)
		params[paramKey{fuse: e.Fuse, position: i}] = p
	}

	s.order = order
	s.params = params

	s.trail.Record(event.WithdrawalSequenceUpdated{Fuses: order})
	return nil
}

// Sequence returns the plan's fuse order.
func (s *Sequencer) Sequence() []fuse.Address {
	out := make([]fuse.Address, len(s.order))
	copy(out, s.order)
	return out
}

// Params returns the parameter vector stored for a fuse at a given position
// in the sequence, nil if that (fuse, position) pair is not in the plan.
func (s *Sequencer) Params(f fuse.Address, position int) []fuse.Substrate {
	p, ok := s.params[paramKey{fuse: f, position: position}]
	if !ok {
		return nil
	}
	out := make([]fuse.Substrate, len(p))
	copy(out, p)
	return out
}

// ExitFunc attempts one withdrawal step: exit the named fuse with the stored
// params, trying to free up to remaining value. It returns how much was
// actually freed.
type ExitFunc func(ctx context.Context, f fuse.Address, params []fuse.Substrate, remaining *big.Int) (*big.Int, error)

// Drain walks the plan strictly in stored order until amount is satisfied or
// the sequence is exhausted. It returns the unsatisfied remainder, zero when
// the full amount was freed. Any step failure aborts the walk.
func (s *Sequencer) Drain(ctx context.Context, amount *big.Int, exit ExitFunc) (*big.Int, error) {
	remaining := new(big.Int).Set(amount)

	for i, f := range s.order {
		if remaining.Sign() <= 0 {
			break
		}

		freed, err := exit(ctx, f, s.Params(f, i), new(big.Int).Set(remaining))
		if err != nil {
			return remaining, fmt.Errorf("withdrawal step %d (%s): %w", i, f, err)
		}
		remaining.Sub(remaining, freed)
	}

	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	return remaining, nil
}
