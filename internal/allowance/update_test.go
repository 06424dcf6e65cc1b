package allowance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"allowanceScope/internal/model"
)

func revertedErr(op string) error {
	return &model.CallError{Kind: model.CallReverted, Op: op, Err: fmt.Errorf("execution reverted")}
}

func fatalErr(op string) error {
	return &model.CallError{Kind: model.CallOther, Op: op, Err: fmt.Errorf("intrinsic gas too low")}
}

type fakePending struct {
	err error
}

func (p fakePending) Confirm(_ context.Context, _ uint64) error {
	return p.err
}

// scriptedWriter consumes one response per call and records the call
// sequence as "method:amount" strings.
type scriptedWriter struct {
	calls      []string
	responses  []error
	confirmErr error
}

func (w *scriptedWriter) record(method string, amount *big.Int) (PendingChange, error) {
	w.calls = append(w.calls, fmt.Sprintf("%s:%s", method, amount))
	var err error
	if len(w.responses) > 0 {
		err = w.responses[0]
		w.responses = w.responses[1:]
	}
	if err != nil {
		return nil, err
	}
	return fakePending{err: w.confirmErr}, nil
}

func (w *scriptedWriter) Approve(_ context.Context, _ common.Address, amount *big.Int) (PendingChange, error) {
	return w.record("approve", amount)
}

func (w *scriptedWriter) IncreaseAllowance(_ context.Context, _ common.Address, delta *big.Int) (PendingChange, error) {
	return w.record("increase", delta)
}

func (w *scriptedWriter) DecreaseAllowance(_ context.Context, _ common.Address, delta *big.Int) (PendingChange, error) {
	return w.record("decrease", delta)
}

func readyReconciler(t *testing.T, writer TokenWriter, current int64) (*Reconciler, *fakeEvents) {
	t.Helper()
	reader := &fakeReader{amounts: map[common.Address]*big.Int{
		spenderOne: big.NewInt(current),
	}}
	events := &fakeEvents{events: approvalsFor(spenderOne)}
	reconciler := newTestReconciler(t, reader, events, writer)
	if err := reconciler.Refresh(context.Background(), testOwner); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return reconciler, events
}

func TestNextStateTransitions(t *testing.T) {
	if got := nextState(stateDirectSet, nil); got != stateDone {
		t.Fatalf("success should finish: %d", got)
	}
	if got := nextState(stateDirectSet, revertedErr("approve")); got != stateDeltaSet {
		t.Fatalf("direct revert should fall back to delta: %d", got)
	}
	if got := nextState(stateDeltaSet, revertedErr("increase")); got != stateResetThenSet {
		t.Fatalf("delta revert should fall back to reset: %d", got)
	}
	if got := nextState(stateResetThenSet, revertedErr("approve")); got != stateFailed {
		t.Fatalf("revert on last strategy is fatal: %d", got)
	}
	if got := nextState(stateDirectSet, fatalErr("approve")); got != stateFailed {
		t.Fatalf("non-revert failure is fatal: %d", got)
	}
	if got := nextState(stateDeltaSet, errors.New("plain")); got != stateFailed {
		t.Fatalf("unclassified failure is fatal: %d", got)
	}
}

func TestUpdateFallbackChainDeterminism(t *testing.T) {
	writer := &scriptedWriter{responses: []error{
		revertedErr("approve"),
		revertedErr("increase"),
		nil,
		nil,
	}}
	reconciler, events := readyReconciler(t, writer, 4)

	if err := reconciler.Update(context.Background(), spenderOne, "10"); err != nil {
		t.Fatalf("update: %v", err)
	}

	want := []string{"approve:10", "increase:6", "approve:0", "approve:10"}
	if len(writer.calls) != len(want) {
		t.Fatalf("call count mismatch: %v", writer.calls)
	}
	for i, call := range want {
		if writer.calls[i] != call {
			t.Fatalf("call %d: got %s, want %s", i, writer.calls[i], call)
		}
	}

	// Initial refresh plus exactly one re-discovery after success.
	if events.calls != 2 {
		t.Fatalf("expected exactly one re-discovery, got %d runs", events.calls)
	}
}

func TestUpdateDecreaseDelta(t *testing.T) {
	writer := &scriptedWriter{responses: []error{
		revertedErr("approve"),
		nil,
	}}
	reconciler, _ := readyReconciler(t, writer, 10)

	if err := reconciler.Update(context.Background(), spenderOne, "4"); err != nil {
		t.Fatalf("update: %v", err)
	}

	want := []string{"approve:4", "decrease:6"}
	if len(writer.calls) != 2 || writer.calls[0] != want[0] || writer.calls[1] != want[1] {
		t.Fatalf("calls mismatch: %v", writer.calls)
	}
}

func TestUpdateFatalAbortsImmediately(t *testing.T) {
	writer := &scriptedWriter{responses: []error{fatalErr("approve")}}
	reconciler, events := readyReconciler(t, writer, 4)

	err := reconciler.Update(context.Background(), spenderOne, "10")
	if err == nil {
		t.Fatalf("expected fatal error")
	}
	var callErr *model.CallError
	if !errors.As(err, &callErr) || callErr.Kind != model.CallOther {
		t.Fatalf("error should propagate unchanged: %v", err)
	}
	if len(writer.calls) != 1 {
		t.Fatalf("expected a single call, got %v", writer.calls)
	}
	if events.calls != 1 {
		t.Fatalf("failed update must not refresh, got %d runs", events.calls)
	}
}

func TestUpdateExhaustedChainSurfacesRevert(t *testing.T) {
	writer := &scriptedWriter{responses: []error{
		revertedErr("approve"),
		revertedErr("increase"),
		revertedErr("approve"),
	}}
	reconciler, events := readyReconciler(t, writer, 4)

	err := reconciler.Update(context.Background(), spenderOne, "10")
	if err == nil {
		t.Fatalf("expected failure after exhausting the chain")
	}
	var callErr *model.CallError
	if !errors.As(err, &callErr) || callErr.Kind != model.CallReverted {
		t.Fatalf("final revert should surface: %v", err)
	}

	want := []string{"approve:10", "increase:6", "approve:0"}
	if len(writer.calls) != len(want) {
		t.Fatalf("calls mismatch: %v", writer.calls)
	}
	if events.calls != 1 {
		t.Fatalf("failed update must not refresh, got %d runs", events.calls)
	}
}

func TestUpdateConfirmFailureIsFatal(t *testing.T) {
	writer := &scriptedWriter{confirmErr: &model.TransportError{Op: "confirm approve", Err: fmt.Errorf("timeout")}}
	reconciler, events := readyReconciler(t, writer, 4)

	if err := reconciler.Update(context.Background(), spenderOne, "10"); err == nil {
		t.Fatalf("expected confirmation failure")
	}
	if len(writer.calls) != 1 {
		t.Fatalf("expected a single call, got %v", writer.calls)
	}
	if events.calls != 1 {
		t.Fatalf("unconfirmed update must not refresh, got %d runs", events.calls)
	}
}

func TestRevokeIsUpdateToZero(t *testing.T) {
	revokeWriter := &scriptedWriter{}
	revokeReconciler, _ := readyReconciler(t, revokeWriter, 4)
	if err := revokeReconciler.Revoke(context.Background(), spenderOne); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	updateWriter := &scriptedWriter{}
	updateReconciler, _ := readyReconciler(t, updateWriter, 4)
	if err := updateReconciler.Update(context.Background(), spenderOne, "0"); err != nil {
		t.Fatalf("update to zero: %v", err)
	}

	if len(revokeWriter.calls) != len(updateWriter.calls) {
		t.Fatalf("call sequences differ: %v vs %v", revokeWriter.calls, updateWriter.calls)
	}
	for i := range revokeWriter.calls {
		if revokeWriter.calls[i] != updateWriter.calls[i] {
			t.Fatalf("call %d differs: %s vs %s", i, revokeWriter.calls[i], updateWriter.calls[i])
		}
	}
}

func TestUpdateUnknownSpenderRejected(t *testing.T) {
	writer := &scriptedWriter{}
	reconciler, _ := readyReconciler(t, writer, 4)

	if err := reconciler.Update(context.Background(), spenderTwo, "10"); err == nil {
		t.Fatalf("expected unknown spender error")
	}
	if len(writer.calls) != 0 {
		t.Fatalf("no calls should be issued: %v", writer.calls)
	}
}
