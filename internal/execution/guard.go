package execution

import (
	"errors"
	"sync/atomic"
)

// ErrAlreadyExecuting is returned when a top-level call begins while another
// is still in progress. Top-level calls are strictly serialized.
var ErrAlreadyExecuting = errors.New("execution already in progress")

// ErrNotExecuting is returned when a callback arrives while the vault is
// idle. Only callbacks triggered mid-execution by a known fuse's external
// call are legitimate; anything else is an unauthorized re-entrant call.
var ErrNotExecuting = errors.New("no execution in progress")

// Guard is the single-slot in-progress flag distinguishing a legitimate
// mid-execution callback from an unrelated re-entrant call. It is set before
// any fuse runs and cleared only after all fuses and any triggered callbacks
// have completed, on every exit path.
type Guard struct {
	executing atomic.Bool
}

func NewGuard() *Guard {
	return &Guard{}
}

// Begin marks a top-level protected operation as in progress.
func (g *Guard) Begin() error {
	if !g.executing.CompareAndSwap(false, true) {
		return ErrAlreadyExecuting
	}
	return nil
}

// End clears the flag. Safe to defer: clearing an idle guard is a no-op.
func (g *Guard) End() {
	g.executing.Store(false)
}

// IsExecuting reports whether a top-level operation is in progress.
func (g *Guard) IsExecuting() bool {
	return g.executing.Load()
}
