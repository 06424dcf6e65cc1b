package allowance

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"allowanceScope/internal/model"
)

// updateState is the position in the strategy chain. Some deployed
// tokens reject a direct approve between two non-zero values, so the
// chain degrades from absolute-set to delta-set to reset-then-set.
type updateState int

const (
	stateDirectSet updateState = iota
	stateDeltaSet
	stateResetThenSet
	stateDone
	stateFailed
)

// nextState is the chain policy: only the well-known revert
// classification advances to the next strategy; any other failure is
// fatal, and a revert on the last strategy is fatal too.
func nextState(state updateState, err error) updateState {
	if err == nil {
		return stateDone
	}
	var callErr *model.CallError
	if !errors.As(err, &callErr) || callErr.Kind != model.CallReverted {
		return stateFailed
	}
	switch state {
	case stateDirectSet:
		return stateDeltaSet
	case stateDeltaSet:
		return stateResetThenSet
	default:
		return stateFailed
	}
}

// Update moves the spender's authorization to the amount parsed from
// amountText, negotiating the strategy chain. On success, discovery
// re-runs once to refresh the whole set; on failure nothing refreshes
// since no change was confirmed.
func (r *Reconciler) Update(ctx context.Context, spender common.Address, amountText string) error {
	if r.writer == nil {
		return fmt.Errorf("no token writer configured")
	}
	if r.status != RunReady {
		return fmt.Errorf("discovery has not completed")
	}
	current, ok := r.current(spender)
	if !ok {
		return fmt.Errorf("unknown spender %s", spender.Hex())
	}

	target := ParseAmount(amountText, r.decimals)
	if err := r.runChain(ctx, spender, current, target); err != nil {
		return err
	}

	return r.Refresh(ctx, r.owner)
}

// Revoke is the degenerate update to zero; same chain, same semantics.
func (r *Reconciler) Revoke(ctx context.Context, spender common.Address) error {
	return r.Update(ctx, spender, "0")
}

func (r *Reconciler) runChain(ctx context.Context, spender common.Address, current, target *big.Int) error {
	state := stateDirectSet
	for {
		err := r.attempt(ctx, state, spender, current, target)
		next := nextState(state, err)
		switch next {
		case stateDone:
			return nil
		case stateFailed:
			return err
		}
		r.logger.Debug("authorization call reverted, trying next strategy",
			zap.String("spender", spender.Hex()),
			zap.Int("state", int(state)),
		)
		state = next
	}
}

func (r *Reconciler) attempt(ctx context.Context, state updateState, spender common.Address, current, target *big.Int) error {
	switch state {
	case stateDirectSet:
		return r.submit(ctx, func(ctx context.Context) (PendingChange, error) {
			return r.writer.Approve(ctx, spender, target)
		})
	case stateDeltaSet:
		delta := new(big.Int).Sub(target, current)
		if delta.Sign() >= 0 {
			return r.submit(ctx, func(ctx context.Context) (PendingChange, error) {
				return r.writer.IncreaseAllowance(ctx, spender, delta)
			})
		}
		return r.submit(ctx, func(ctx context.Context) (PendingChange, error) {
			return r.writer.DecreaseAllowance(ctx, spender, delta.Neg(delta))
		})
	case stateResetThenSet:
		// The zero-set must confirm before the final approve so an
		// interim non-zero window never exists. A zero window does, and
		// that transient is intentional.
		if err := r.submit(ctx, func(ctx context.Context) (PendingChange, error) {
			return r.writer.Approve(ctx, spender, big.NewInt(0))
		}); err != nil {
			return err
		}
		return r.submit(ctx, func(ctx context.Context) (PendingChange, error) {
			return r.writer.Approve(ctx, spender, target)
		})
	default:
		return fmt.Errorf("invalid update state %d", state)
	}
}

func (r *Reconciler) submit(ctx context.Context, send func(context.Context) (PendingChange, error)) error {
	pending, err := send(ctx)
	if err != nil {
		return err
	}
	return pending.Confirm(ctx, r.minConf)
}
