package registry_test

import (
	"errors"
	"math/rand"
	"testing"

	"VaultCore/internal/fuse"
	"VaultCore/internal/registry"
	"VaultCore/internal/testutil"
)

// ============================================================================
// Test: Register / Unregister
// ============================================================================

func TestRegister_Duplicate(t *testing.T) {
	r := registry.NewFuseRegistry(nil)
	a := testutil.Addr(1)

	if err := r.Register(a); err != nil {
		t.Fatalf("first register: %v", err)
	}

	err := r.Register(a)
	var dup *registry.ErrAlreadyRegistered
	if !errors.As(err, &dup) {
		t.Fatalf("got %v, want ErrAlreadyRegistered", err)
	}
	if dup.Fuse != a {
		t.Errorf("error names fuse %s, want %s", dup.Fuse, a)
	}
	if r.Len() != 1 {
		t.Errorf("duplicate register changed length: got %d, want 1", r.Len())
	}
}

func TestUnregister_Absent(t *testing.T) {
	r := registry.NewFuseRegistry(nil)

	err := r.Unregister(testutil.Addr(9))
	var notReg *registry.ErrNotRegistered
	if !errors.As(err, &notReg) {
		t.Fatalf("got %v, want ErrNotRegistered", err)
	}
}

func TestUnregister_SwapRemove(t *testing.T) {
	r := registry.NewFuseRegistry(nil)
	a, b, c := testutil.Addr(1), testutil.Addr(2), testutil.Addr(3)
	for _, f := range []fuse.Address{a, b, c} {
		if err := r.Register(f); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	// Removing the middle element moves the last into its slot.
	if err := r.Unregister(b); err != nil {
		t.Fatalf("unregister: %v", err)
	}

	got := r.List()
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("got order %v, want [a c]", got)
	}
	if r.IndexOf(c) != 2 {
		t.Errorf("moved fuse index: got %d, want 2", r.IndexOf(c))
	}
	if r.IsRegistered(b) {
		t.Error("removed fuse still reports registered")
	}
	if r.IndexOf(b) != 0 {
		t.Errorf("removed fuse index: got %d, want 0", r.IndexOf(b))
	}
}

func TestUnregister_LastElement(t *testing.T) {
	r := registry.NewFuseRegistry(nil)
	a := testutil.Addr(1)
	if err := r.Register(a); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Unregister(a); err != nil {
		t.Fatalf("unregister sole element: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("got len %d, want 0", r.Len())
	}

	// Re-registration after removal must work.
	if err := r.Register(a); err != nil {
		t.Errorf("re-register after removal: %v", err)
	}
}

// ============================================================================
// Test: index invariant under random churn
// ============================================================================

// The list and the reverse index must agree after every mutation: the fuse at
// list position i reads back index i+1, and nothing else has an index entry.
func TestRegistry_IndexInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := registry.NewFuseRegistry(nil)

	live := make(map[fuse.Address]bool)

	for step := 0; step < 2000; step++ {
		f := testutil.Addr(byte(rng.Intn(64)))

		if live[f] && rng.Intn(2) == 0 {
			if err := r.Unregister(f); err != nil {
				t.Fatalf("step %d: unregister live fuse: %v", step, err)
			}
			delete(live, f)
		} else if !live[f] {
			if err := r.Register(f); err != nil {
				t.Fatalf("step %d: register new fuse: %v", step, err)
			}
			live[f] = true
		}

		list := r.List()
		if len(list) != len(live) {
			t.Fatalf("step %d: list len %d, live set %d", step, len(list), len(live))
		}
		for i, addr := range list {
			if got := r.IndexOf(addr); got != i+1 {
				t.Fatalf("step %d: fuse at position %d has index %d, want %d", step, i, got, i+1)
			}
		}
	}

	for f := range live {
		if !r.IsRegistered(f) {
			t.Errorf("live fuse %v not registered", f)
		}
	}
}
