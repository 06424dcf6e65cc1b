package allowance

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"allowanceScope/internal/identity"
	"allowanceScope/internal/model"
)

// Refresh runs discovery for the owner and replaces the reconciled set
// wholesale. A zero owner is not-yet-ready and the call is a no-op. On
// failure the previous set is kept and the run is marked failed.
func (r *Reconciler) Refresh(ctx context.Context, owner common.Address) error {
	if owner == (common.Address{}) {
		return nil
	}

	r.owner = owner
	r.status = RunPending
	r.runErr = nil

	allowances, err := r.discover(ctx, owner)
	if err != nil {
		r.status = RunFailed
		r.runErr = err
		r.logger.Warn("discovery failed", zap.String("owner", owner.Hex()), zap.Error(err))
		return err
	}

	r.allowances = allowances
	r.status = RunReady
	r.logger.Info("discovery complete", zap.String("owner", owner.Hex()), zap.Int("allowances", len(allowances)))
	return nil
}

func (r *Reconciler) discover(ctx context.Context, owner common.Address) ([]model.Allowance, error) {
	events, err := r.events.ApprovalEvents(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("approval events: %w", err)
	}

	spenders := dedupeSpenders(events)

	// Per-spender queries are independent; one failure fails the run.
	amounts := make([]*big.Int, len(spenders))
	g, gctx := errgroup.WithContext(ctx)
	for i, spender := range spenders {
		i, spender := i, spender
		g.Go(func() error {
			amount, err := r.reader.Allowance(gctx, owner, spender)
			if err != nil {
				return fmt.Errorf("allowance %s: %w", spender.Hex(), err)
			}
			amounts[i] = amount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.Allowance, 0, len(spenders))
	for i, spender := range spenders {
		amount := amounts[i]
		// Amounts below the three-decimal display resolution carry no
		// actionable state and are dropped. The threshold is fixed at
		// three digits regardless of token decimals.
		if FormatAmount(amount, r.decimals, r.totalSupply) == zeroDisplay {
			continue
		}
		out = append(out, model.Allowance{
			Spender:       spender.Hex(),
			DisplayName:   r.displayName(ctx, spender),
			CurrentAmount: amount,
			PendingTarget: big.NewInt(0),
		})
	}

	// Descending by live amount; equal amounts keep first-occurrence order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CurrentAmount.Cmp(out[j].CurrentAmount) > 0
	})

	return out, nil
}

// dedupeSpenders keeps one entry per spender in first-occurrence order.
func dedupeSpenders(events []model.ApprovalEvent) []common.Address {
	seen := make(map[common.Address]struct{}, len(events))
	spenders := make([]common.Address, 0, len(events))
	for _, event := range events {
		if !common.IsHexAddress(event.Spender) {
			continue
		}
		spender := common.HexToAddress(event.Spender)
		if _, ok := seen[spender]; ok {
			continue
		}
		seen[spender] = struct{}{}
		spenders = append(spenders, spender)
	}
	return spenders
}

func (r *Reconciler) displayName(ctx context.Context, spender common.Address) string {
	if r.identity != nil {
		if name, ok := r.identity.ApplicationName(ctx, spender); ok {
			return name
		}
		if name, ok := r.identity.ReverseName(ctx, spender); ok {
			return name
		}
	}
	return identity.Shorten(spender)
}
