package execution_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"VaultCore/internal/execution"
	"VaultCore/internal/fuse"
	"VaultCore/internal/testutil"
)

// stubHandler is a scriptable callback handler.
type stubHandler struct {
	name     string
	followup *execution.Followup
	err      error

	payloads [][]byte
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) HandleCallback(_ context.Context, _ execution.VaultOps, payload []byte) (*execution.Followup, error) {
	h.payloads = append(h.payloads, payload)
	return h.followup, h.err
}

// stubVault records what a followup asked for.
type stubVault struct {
	actions    [][]fuse.Action
	approvals  []execution.Approval
	actionsErr error
	approveErr error
}

func (v *stubVault) ExecuteActions(_ context.Context, actions []fuse.Action) error {
	v.actions = append(v.actions, actions)
	return v.actionsErr
}

func (v *stubVault) Approve(_ context.Context, asset, spender fuse.Address, amount *big.Int) error {
	v.approvals = append(v.approvals, execution.Approval{Asset: asset, Spender: spender, Amount: amount})
	return v.approveErr
}

// ============================================================================
// Test: Signature
// ============================================================================

func TestNewSignature_Deterministic(t *testing.T) {
	a := execution.NewSignature("onFlashLoan(address,address,uint256,uint256,bytes)")
	b := execution.NewSignature("onFlashLoan(address,address,uint256,uint256,bytes)")
	if a != b {
		t.Error("same operation name should yield the same signature")
	}
	if a == execution.NewSignature("onMorphoFlashLoan(uint256,bytes)") {
		t.Error("distinct operation names should yield distinct signatures")
	}
}

// ============================================================================
// Test: handler key scoping
// ============================================================================

// Handlers are keyed by the (caller, signature) pair: the same signature from
// a different caller, or a different signature from the same caller, must not
// route to each other's handlers.
func TestCallbackRegistry_KeyScoping(t *testing.T) {
	reg := execution.NewCallbackRegistry(nil)
	callerA, callerB := testutil.Addr(1), testutil.Addr(2)
	sigX := execution.NewSignature("opX()")
	sigY := execution.NewSignature("opY()")

	hAX := &stubHandler{name: "a-x"}
	hBY := &stubHandler{name: "b-y"}
	reg.RegisterHandler(hAX, callerA, sigX)
	reg.RegisterHandler(hBY, callerB, sigY)

	vault := &stubVault{}
	ctx := context.Background()

	if err := reg.Dispatch(ctx, callerA, sigX, []byte("p1"), vault); err != nil {
		t.Fatalf("dispatch registered pair: %v", err)
	}
	if len(hAX.payloads) != 1 || string(hAX.payloads[0]) != "p1" {
		t.Errorf("handler a-x payloads: %v", hAX.payloads)
	}

	// Crossed pairs miss.
	for _, tc := range []struct {
		caller fuse.Address
		sig    execution.Signature
	}{
		{callerA, sigY},
		{callerB, sigX},
		{testutil.Addr(3), sigX},
	} {
		err := reg.Dispatch(ctx, tc.caller, tc.sig, nil, vault)
		var notFound *execution.ErrHandlerNotFound
		if !errors.As(err, &notFound) {
			t.Errorf("caller %s sig %s: got %v, want ErrHandlerNotFound", tc.caller, tc.sig, err)
		}
	}

	if len(hBY.payloads) != 0 {
		t.Error("handler b-y should never have been invoked")
	}
}

func TestCallbackRegistry_ReplaceBinding(t *testing.T) {
	reg := execution.NewCallbackRegistry(nil)
	caller := testutil.Addr(1)
	sig := execution.NewSignature("op()")

	old := &stubHandler{name: "old"}
	next := &stubHandler{name: "next"}
	reg.RegisterHandler(old, caller, sig)
	reg.RegisterHandler(next, caller, sig)

	if err := reg.Dispatch(context.Background(), caller, sig, nil, &stubVault{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(old.payloads) != 0 || len(next.payloads) != 1 {
		t.Error("dispatch should reach the replacement handler only")
	}
}

// ============================================================================
// Test: followup application
// ============================================================================

func TestDispatch_AppliesFollowup(t *testing.T) {
	reg := execution.NewCallbackRegistry(nil)
	caller := testutil.Addr(1)
	sig := execution.NewSignature("op()")

	actions := []fuse.Action{{Fuse: testutil.Addr(5), Verb: fuse.VerbExit}}
	h := &stubHandler{
		name: "repay",
		followup: &execution.Followup{
			Actions: actions,
			Approval: &execution.Approval{
				Asset:   testutil.Addr(10),
				Spender: caller,
				Amount:  big.NewInt(1234),
			},
		},
	}
	reg.RegisterHandler(h, caller, sig)

	vault := &stubVault{}
	if err := reg.Dispatch(context.Background(), caller, sig, nil, vault); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(vault.actions) != 1 || len(vault.actions[0]) != 1 || vault.actions[0][0].Fuse != actions[0].Fuse {
		t.Errorf("followup actions not applied: %v", vault.actions)
	}
	if len(vault.approvals) != 1 {
		t.Fatalf("followup approval not applied: %v", vault.approvals)
	}
	if got := vault.approvals[0]; got.Spender != caller || got.Amount.Cmp(big.NewInt(1234)) != 0 {
		t.Errorf("approval: got %+v", got)
	}
}

func TestDispatch_NilFollowupNeedsNoVaultAction(t *testing.T) {
	reg := execution.NewCallbackRegistry(nil)
	caller := testutil.Addr(1)
	sig := execution.NewSignature("op()")
	reg.RegisterHandler(&stubHandler{name: "noop"}, caller, sig)

	vault := &stubVault{}
	if err := reg.Dispatch(context.Background(), caller, sig, nil, vault); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(vault.actions) != 0 || len(vault.approvals) != 0 {
		t.Error("nil followup must not touch the vault capability")
	}
}

func TestDispatch_HandlerErrorPropagates(t *testing.T) {
	reg := execution.NewCallbackRegistry(nil)
	caller := testutil.Addr(1)
	sig := execution.NewSignature("op()")
	reg.RegisterHandler(&stubHandler{name: "boom", err: errors.New("protocol reverted")}, caller, sig)

	err := reg.Dispatch(context.Background(), caller, sig, nil, &stubVault{})
	if err == nil {
		t.Fatal("handler error should propagate")
	}
}

func TestDispatch_FollowupActionErrorPropagates(t *testing.T) {
	reg := execution.NewCallbackRegistry(nil)
	caller := testutil.Addr(1)
	sig := execution.NewSignature("op()")
	reg.RegisterHandler(&stubHandler{
		name:     "repay",
		followup: &execution.Followup{Actions: []fuse.Action{{Fuse: testutil.Addr(5)}}},
	}, caller, sig)

	vault := &stubVault{actionsErr: errors.New("fuse failed")}
	if err := reg.Dispatch(context.Background(), caller, sig, nil, vault); err == nil {
		t.Fatal("followup action failure should propagate")
	}
}
