package execution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"VaultCore/internal/event"
	"VaultCore/internal/fuse"
)

// Signature identifies the operation an external protocol invoked when it
// called back into the vault: the first 4 bytes of the SHA-256 of the
// operation's canonical name.
type Signature [4]byte

// NewSignature derives a signature from an operation name, e.g.
// "onFlashLoan(address,address,uint256,uint256,bytes)".
func NewSignature(operation string) Signature {
	sum := sha256.Sum256([]byte(operation))
	var sig Signature
	copy(sig[:], sum[:4])
	return sig
}

// Hex returns the 0x-prefixed hex form.
func (s Signature) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

func (s Signature) String() string {
	return s.Hex()
}

// ErrHandlerNotFound is returned when no handler is registered for a
// (caller, signature) pair.
type ErrHandlerNotFound struct {
	Caller    fuse.Address
	Signature Signature
}

func (e *ErrHandlerNotFound) Error() string {
	return fmt.Sprintf("no callback handler for caller %s signature %s", e.Caller, e.Signature)
}

// Approval is a spending authorization a callback may ask the vault to grant:
// allow spender to pull amount of asset.
type Approval struct {
	Asset   fuse.Address
	Spender fuse.Address
	Amount  *big.Int
}

// Followup is what a handler may return: further fuse actions to run
// immediately, and an optional approval. Both are applied before control
// returns to the external protocol that triggered the callback.
type Followup struct {
	Actions  []fuse.Action
	Approval *Approval
}

// VaultOps is the capability a handler receives instead of executing in
// shared vault memory: an explicit reference to the vault's own mutation
// operations, scoped to what a mid-execution callback legitimately needs.
type VaultOps interface {
	// ExecuteActions runs fuse actions inside the current execution.
	ExecuteActions(ctx context.Context, actions []fuse.Action) error

	// Approve grants a counterparty a spending authorization.
	Approve(ctx context.Context, asset, spender fuse.Address, amount *big.Int) error
}

// Handler reacts to one external protocol's callback on the vault's behalf
// (repay a flash loan, post collateral, re-approve) without every fuse
// author special-casing that protocol's callback shape.
type Handler interface {
	// Name identifies the handler in audit records.
	Name() string

	// HandleCallback processes the raw payload. A nil Followup means the
	// callback needed no further vault action.
	HandleCallback(ctx context.Context, vault VaultOps, payload []byte) (*Followup, error)
}

// CallbackRegistry maps (expected caller, operation signature) to a handler.
// Keys are hashed so the table stays a flat lookup regardless of how callers
// encode their operation names.
type CallbackRegistry struct {
	handlers map[[32]byte]Handler
	trail    event.Recorder
}

func NewCallbackRegistry(trail event.Recorder) *CallbackRegistry {
	if trail == nil {
		trail = event.NopRecorder{}
	}
	return &CallbackRegistry{
		handlers: make(map[[32]byte]Handler),
		trail:    trail,
	}
}

func callbackKey(caller fuse.Address, sig Signature) [32]byte {
	h := sha256.New()
	h.Write(caller[:])
	h.Write(sig[:])
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// RegisterHandler binds a (caller, signature) pair to a handler, replacing
// any previous binding for that pair.
func (c *CallbackRegistry) RegisterHandler(h Handler, expectedCaller fuse.Address, sig Signature) {
	c.handlers[callbackKey(expectedCaller, sig)] = h
	c.trail.Record(event.CallbackHandlerUpdated{
		Caller:    expectedCaller,
		Signature: sig.Hex(),
		Handler:   h.Name(),
	})
}

// Dispatch routes an external protocol's mid-execution callback to its
// registered handler, forwarding the raw payload and the vault capability.
// Any followup the handler returns is applied through the capability before
// Dispatch returns.
func (c *CallbackRegistry) Dispatch(ctx context.Context, caller fuse.Address, sig Signature, payload []byte, vault VaultOps) error {
	h, ok := c.handlers[callbackKey(caller, sig)]
	if !ok {
		return &ErrHandlerNotFound{Caller: caller, Signature: sig}
	}

	followup, err := h.HandleCallback(ctx, vault, payload)
	if err != nil {
		return fmt.Errorf("callback handler %s: %w", h.Name(), err)
	}
	if followup == nil {
		return nil
	}

	if len(followup.Actions) > 0 {
		if err := vault.ExecuteActions(ctx, followup.Actions); err != nil {
			return fmt.Errorf("callback followup actions: %w", err)
		}
	}
	if followup.Approval != nil {
		a := followup.Approval
		if err := vault.Approve(ctx, a.Asset, a.Spender, a.Amount); err != nil {
			return fmt.Errorf("callback followup approval: %w", err)
		}
	}

	return nil
}
