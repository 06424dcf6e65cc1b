// Package allowance implements the reconciliation core: discovery of
// current spender authorizations from historical Approval events, and
// the multi-strategy protocol that moves an authorization to a target
// value despite non-uniform token contract semantics.
package allowance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"allowanceScope/internal/model"
)

// TokenReader queries live authorization state.
type TokenReader interface {
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
}

// PendingChange is a submitted authorization change awaiting finality.
type PendingChange interface {
	Confirm(ctx context.Context, minConfirmations uint64) error
}

// TokenWriter issues authorization-setting calls. Failures carry the
// model.CallError classification that drives the fallback chain.
type TokenWriter interface {
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (PendingChange, error)
	IncreaseAllowance(ctx context.Context, spender common.Address, delta *big.Int) (PendingChange, error)
	DecreaseAllowance(ctx context.Context, spender common.Address, delta *big.Int) (PendingChange, error)
}

// EventSource supplies the ordered historical Approval records for an
// owner.
type EventSource interface {
	ApprovalEvents(ctx context.Context, owner common.Address) ([]model.ApprovalEvent, error)
}

// Identity resolves optional display names. Both lookups are
// best-effort and independent.
type Identity interface {
	ApplicationName(ctx context.Context, addr common.Address) (string, bool)
	ReverseName(ctx context.Context, addr common.Address) (string, bool)
}

// RunStatus is the state of the latest discovery run.
type RunStatus int

const (
	RunPending RunStatus = iota
	RunReady
	RunFailed
)

func (s RunStatus) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunReady:
		return "ready"
	case RunFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configure a Reconciler. Writer may be nil for read-only use.
type Options struct {
	Reader           TokenReader
	Writer           TokenWriter
	Events           EventSource
	Identity         Identity
	Meta             model.TokenMeta
	MinConfirmations uint64
	Logger           *zap.Logger
}

// Reconciler owns the reconciled allowance set for one owner+token pair.
// It is not safe for concurrent use; callers serialize invocations.
type Reconciler struct {
	reader      TokenReader
	writer      TokenWriter
	events      EventSource
	identity    Identity
	decimals    uint8
	totalSupply *big.Int
	minConf     uint64
	logger      *zap.Logger

	owner      common.Address
	status     RunStatus
	runErr     error
	allowances []model.Allowance
}

// NewReconciler builds a Reconciler from its capability collaborators.
func NewReconciler(opts Options) (*Reconciler, error) {
	if opts.Reader == nil {
		return nil, fmt.Errorf("token reader is required")
	}
	if opts.Events == nil {
		return nil, fmt.Errorf("event source is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var totalSupply *big.Int
	if opts.Meta.TotalSupply != "" {
		parsed, ok := new(big.Int).SetString(opts.Meta.TotalSupply, 10)
		if !ok {
			return nil, fmt.Errorf("invalid total supply: %s", opts.Meta.TotalSupply)
		}
		totalSupply = parsed
	}

	return &Reconciler{
		reader:      opts.Reader,
		writer:      opts.Writer,
		events:      opts.Events,
		identity:    opts.Identity,
		decimals:    opts.Meta.Decimals,
		totalSupply: totalSupply,
		minConf:     opts.MinConfirmations,
		logger:      logger,
		status:      RunPending,
	}, nil
}

// Status reports the state of the latest discovery run.
func (r *Reconciler) Status() RunStatus {
	return r.status
}

// Loading reports whether a discovery run is in flight.
func (r *Reconciler) Loading() bool {
	return r.status == RunPending
}

// Err returns the failure of the latest run, if any.
func (r *Reconciler) Err() error {
	return r.runErr
}

// Allowances returns the last successfully reconciled set. After a
// failed run the previous set remains visible (failed-and-stale).
func (r *Reconciler) Allowances() []model.Allowance {
	out := make([]model.Allowance, len(r.allowances))
	copy(out, r.allowances)
	return out
}

// Display renders an amount with this reconciler's token parameters.
func (r *Reconciler) Display(amount *big.Int) string {
	return FormatAmount(amount, r.decimals, r.totalSupply)
}

// SetPendingTarget stages a user-edited target amount for a spender. It
// is presentation state only; no authorization changes until Update is
// invoked.
func (r *Reconciler) SetPendingTarget(spender common.Address, amountText string) error {
	for i := range r.allowances {
		if r.allowances[i].Spender == spender.Hex() {
			r.allowances[i].PendingTarget = ParseAmount(amountText, r.decimals)
			return nil
		}
	}
	return fmt.Errorf("unknown spender %s", spender.Hex())
}

func (r *Reconciler) current(spender common.Address) (*big.Int, bool) {
	for _, a := range r.allowances {
		if a.Spender == spender.Hex() {
			return a.CurrentAmount, true
		}
	}
	return nil, false
}
