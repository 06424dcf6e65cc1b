package allowance

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"allowanceScope/internal/identity"
	"allowanceScope/internal/model"
)

var (
	testOwner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	spenderOne   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	spenderTwo   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	spenderThree = common.HexToAddress("0x0000000000000000000000000000000000000003")
	spenderFour  = common.HexToAddress("0x0000000000000000000000000000000000000004")
)

type fakeReader struct {
	mu      sync.Mutex
	amounts map[common.Address]*big.Int
	err     error
	calls   int
}

func (f *fakeReader) Allowance(_ context.Context, _, spender common.Address) (*big.Int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	amount, ok := f.amounts[spender]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(amount), nil
}

type fakeEvents struct {
	events []model.ApprovalEvent
	err    error
	calls  int
}

func (f *fakeEvents) ApprovalEvents(_ context.Context, _ common.Address) ([]model.ApprovalEvent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func approvalsFor(spenders ...common.Address) []model.ApprovalEvent {
	events := make([]model.ApprovalEvent, 0, len(spenders))
	for i, spender := range spenders {
		events = append(events, model.ApprovalEvent{
			BlockNumber: uint64(i + 1),
			TxHash:      fmt.Sprintf("0x%064x", i),
			Owner:       testOwner.Hex(),
			Spender:     spender.Hex(),
			Value:       "1",
		})
	}
	return events
}

func newTestReconciler(t *testing.T, reader *fakeReader, events *fakeEvents, writer TokenWriter) *Reconciler {
	t.Helper()
	reconciler, err := NewReconciler(Options{
		Reader:   reader,
		Writer:   writer,
		Events:   events,
		Identity: identity.Map{},
		Meta:     model.TokenMeta{Decimals: 0, TotalSupply: "1000000"},
	})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	return reconciler
}

func TestDiscoveryDedupesSpenders(t *testing.T) {
	reader := &fakeReader{amounts: map[common.Address]*big.Int{
		spenderOne: big.NewInt(50),
		spenderTwo: big.NewInt(50),
	}}
	events := &fakeEvents{events: approvalsFor(spenderOne, spenderTwo, spenderOne, spenderTwo, spenderOne)}
	reconciler := newTestReconciler(t, reader, events, nil)

	if err := reconciler.Refresh(context.Background(), testOwner); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got := reconciler.Allowances()
	if len(got) != 2 {
		t.Fatalf("expected 2 allowances, got %d", len(got))
	}
	if reader.calls != 2 {
		t.Fatalf("expected one query per distinct spender, got %d", reader.calls)
	}
	// Equal amounts keep first-occurrence order through the stable sort.
	if got[0].Spender != spenderOne.Hex() || got[1].Spender != spenderTwo.Hex() {
		t.Fatalf("order mismatch: %s, %s", got[0].Spender, got[1].Spender)
	}
}

func TestDiscoveryNearZeroFilter(t *testing.T) {
	reader := &fakeReader{amounts: map[common.Address]*big.Int{
		spenderOne: big.NewInt(100),
		spenderTwo: big.NewInt(0),
	}}
	events := &fakeEvents{events: approvalsFor(spenderOne, spenderTwo)}
	reconciler := newTestReconciler(t, reader, events, nil)

	if err := reconciler.Refresh(context.Background(), testOwner); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got := reconciler.Allowances()
	if len(got) != 1 || got[0].Spender != spenderOne.Hex() {
		t.Fatalf("zero allowance should be filtered: %+v", got)
	}
	if got[0].PendingTarget.Sign() != 0 {
		t.Fatalf("pending target should stage at zero")
	}
}

func TestDiscoverySortDescendingStable(t *testing.T) {
	reader := &fakeReader{amounts: map[common.Address]*big.Int{
		spenderOne:   big.NewInt(100),
		spenderTwo:   big.NewInt(50),
		spenderThree: big.NewInt(100),
		spenderFour:  big.NewInt(0),
	}}
	events := &fakeEvents{events: approvalsFor(spenderOne, spenderTwo, spenderThree, spenderFour)}
	reconciler := newTestReconciler(t, reader, events, nil)

	if err := reconciler.Refresh(context.Background(), testOwner); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got := reconciler.Allowances()
	if len(got) != 3 {
		t.Fatalf("expected 3 allowances, got %d", len(got))
	}
	wantOrder := []common.Address{spenderOne, spenderThree, spenderTwo}
	for i, want := range wantOrder {
		if got[i].Spender != want.Hex() {
			t.Fatalf("position %d: got %s, want %s", i, got[i].Spender, want.Hex())
		}
	}
}

func TestDiscoveryIdentityBestEffort(t *testing.T) {
	reader := &fakeReader{amounts: map[common.Address]*big.Int{
		spenderOne: big.NewInt(10),
		spenderTwo: big.NewInt(5),
	}}
	events := &fakeEvents{events: approvalsFor(spenderOne, spenderTwo)}
	reconciler, err := NewReconciler(Options{
		Reader:   reader,
		Events:   events,
		Identity: identity.Map{spenderOne: "Router"},
		Meta:     model.TokenMeta{Decimals: 0, TotalSupply: "1000000"},
	})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	if err := reconciler.Refresh(context.Background(), testOwner); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got := reconciler.Allowances()
	if got[0].DisplayName != "Router" {
		t.Fatalf("resolved name mismatch: %q", got[0].DisplayName)
	}
	if got[1].DisplayName != identity.Shorten(spenderTwo) {
		t.Fatalf("fallback name mismatch: %q", got[1].DisplayName)
	}
}

func TestSetPendingTargetStagesOnly(t *testing.T) {
	reader := &fakeReader{amounts: map[common.Address]*big.Int{
		spenderOne: big.NewInt(10),
	}}
	events := &fakeEvents{events: approvalsFor(spenderOne)}
	reconciler := newTestReconciler(t, reader, events, nil)

	if err := reconciler.Refresh(context.Background(), testOwner); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := reconciler.SetPendingTarget(spenderOne, "7"); err != nil {
		t.Fatalf("stage target: %v", err)
	}

	got := reconciler.Allowances()
	if got[0].PendingTarget.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("pending target mismatch: %s", got[0].PendingTarget)
	}
	// Staging never touches the live amount.
	if got[0].CurrentAmount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("current amount must not change: %s", got[0].CurrentAmount)
	}
	if err := reconciler.SetPendingTarget(spenderTwo, "1"); err == nil {
		t.Fatalf("expected unknown spender error")
	}
}

func TestDiscoveryZeroOwnerIsNoOp(t *testing.T) {
	reader := &fakeReader{}
	events := &fakeEvents{}
	reconciler := newTestReconciler(t, reader, events, nil)

	if err := reconciler.Refresh(context.Background(), common.Address{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if events.calls != 0 || reader.calls != 0 {
		t.Fatalf("no fetch should occur without an owner")
	}
	if reconciler.Status() != RunPending {
		t.Fatalf("status should remain pending, got %s", reconciler.Status())
	}
}

func TestDiscoveryFailureKeepsPreviousSet(t *testing.T) {
	reader := &fakeReader{amounts: map[common.Address]*big.Int{
		spenderOne: big.NewInt(10),
	}}
	events := &fakeEvents{events: approvalsFor(spenderOne)}
	reconciler := newTestReconciler(t, reader, events, nil)

	if err := reconciler.Refresh(context.Background(), testOwner); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if reconciler.Status() != RunReady {
		t.Fatalf("status should be ready, got %s", reconciler.Status())
	}

	reader.err = &model.TransportError{Op: "allowance", Err: fmt.Errorf("node down")}
	if err := reconciler.Refresh(context.Background(), testOwner); err == nil {
		t.Fatalf("expected refresh failure")
	}
	if reconciler.Status() != RunFailed {
		t.Fatalf("status should be failed, got %s", reconciler.Status())
	}

	// The stale set stays visible after a failed run.
	got := reconciler.Allowances()
	if len(got) != 1 || got[0].Spender != spenderOne.Hex() {
		t.Fatalf("previous set should remain: %+v", got)
	}
}
