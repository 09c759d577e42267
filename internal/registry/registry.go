package registry

import (
	"fmt"

	"VaultCore/internal/event"
	"VaultCore/internal/fuse"
)

// ErrAlreadyRegistered is returned when a fuse is added twice.
type ErrAlreadyRegistered struct {
	Fuse fuse.Address
}

func (e *ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("fuse %s already registered", e.Fuse)
}

// ErrNotRegistered is returned when an operation names a fuse the registry
// does not hold.
type ErrNotRegistered struct {
	Fuse fuse.Address
}

func (e *ErrNotRegistered) Error() string {
	return fmt.Sprintf("fuse %s not registered", e.Fuse)
}

// FuseRegistry tracks which fuse identities are authorized to act. It keeps
// an append-ordered list plus a reverse index storing position+1, so removal
// is O(1) swap-remove and membership is a single map lookup.
//
// Invariant: for every fuse at list index i, index[fuse] == i+1; a fuse
// absent from the list has no index entry (reads as 0).
type FuseRegistry struct {
	fuses []fuse.Address
	index map[fuse.Address]int
	trail event.Recorder
}

func NewFuseRegistry(trail event.Recorder) *FuseRegistry {
	if trail == nil {
		trail = event.NopRecorder{}
	}
	return &FuseRegistry{
		index: make(map[fuse.Address]int),
		trail: trail,
	}
}

// Register appends a fuse to the authorized list.
func (r *FuseRegistry) Register(f fuse.Address) error {
	if r.index[f] != 0 {
		return &ErrAlreadyRegistered{Fuse: f}
	}

	r.fuses = append(r.fuses, f)
	r.index[f] = len(r.fuses)

	r.trail.Record(event.FuseAdded{Fuse: f})
	return nil
}

// Unregister removes a fuse via swap-remove: the last list element moves
// into the vacated slot and its index entry is rewritten, keeping both
// structures in agreement without shifting the tail.
func (r *FuseRegistry) Unregister(f fuse.Address) error {
	pos := r.index[f]
	if pos == 0 {
		return &ErrNotRegistered{Fuse: f}
	}

	lastIdx := len(r.fuses) - 1
	last := r.fuses[lastIdx]

	r.fuses[pos-1] = last
	r.index[last] = pos
	delete(r.index, f)
	r.fuses = r.fuses[:lastIdx]

	r.trail.Record(event.FuseRemoved{Fuse: f})
	return nil
}

// IsRegistered reports membership.
func (r *FuseRegistry) IsRegistered(f fuse.Address) bool {
	return r.index[f] != 0
}

// IndexOf returns the stored position+1 for a fuse; 0 means not registered.
func (r *FuseRegistry) IndexOf(f fuse.Address) int {
	return r.index[f]
}

// List returns the fuses in registration order (post swap-remove order).
func (r *FuseRegistry) List() []fuse.Address {
	out := make([]fuse.Address, len(r.fuses))
	copy(out, r.fuses)
	return out
}

// Len returns the number of registered fuses.
func (r *FuseRegistry) Len() int {
	return len(r.fuses)
}
