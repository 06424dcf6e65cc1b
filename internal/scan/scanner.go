package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"allowanceScope/internal/chain"
	"allowanceScope/internal/erc20"
	"allowanceScope/internal/model"
)

// Config holds runtime settings for the approval scanner.
type Config struct {
	Token        common.Address
	FromBlock    uint64
	ToBlock      uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Scanner streams historical Approval logs for one token and owner. Runs
// are one-shot; nothing is persisted between invocations.
type Scanner struct {
	cfg     Config
	chain   *chain.Client
	decoder *erc20.ApprovalDecoder
	logger  *zap.Logger
}

// NewScanner builds a Scanner with its dependencies.
func NewScanner(cfg Config, chainClient *chain.Client, logger *zap.Logger) (*Scanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := erc20.NewApprovalDecoder()
	if err != nil {
		return nil, err
	}
	return &Scanner{
		cfg:     cfg,
		chain:   chainClient,
		decoder: decoder,
		logger:  logger,
	}, nil
}

// ApprovalEvents fetches the ordered Approval history for the owner. The
// owner address is matched on topic1 so the node filters server-side.
func (s *Scanner) ApprovalEvents(ctx context.Context, owner common.Address) ([]model.ApprovalEvent, error) {
	if s.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if s.cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}

	chainID, err := s.chain.GetChainID(ctx)
	if err != nil {
		return nil, &model.TransportError{Op: "chain id", Err: err}
	}
	if !chainID.IsUint64() {
		return nil, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := s.cfg.FromBlock
	to := s.cfg.ToBlock
	if to == 0 {
		latest, err := s.chain.LatestBlockNumber(ctx)
		if err != nil {
			return nil, &model.TransportError{Op: "latest block", Err: err}
		}
		to = latest
	}

	ranges, err := SplitRange(from, to, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	// The owner address sits right-aligned in topic1.
	topics := [][]common.Hash{
		{s.decoder.Topic0()},
		{common.BytesToHash(owner.Bytes())},
	}

	seen := make(map[string]struct{})
	events := make([]model.ApprovalEvent, 0)
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		s.logger.Debug("fetch approval logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := s.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, topics)
		if err != nil {
			return nil, &model.TransportError{Op: "filter logs", Err: err}
		}

		for _, log := range logs {
			if log.Removed {
				continue
			}
			id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			event, err := s.decoder.Decode(chainIDValue, log)
			if err != nil {
				s.logger.Warn("skip undecodable log", zap.String("tx", log.TxHash.Hex()), zap.Error(err))
				continue
			}
			events = append(events, event)
		}
	}

	s.logger.Info("approval scan complete", zap.Int("events", len(events)), zap.Uint64("from", from), zap.Uint64("to", to))
	return events, nil
}

func (s *Scanner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, topics [][]common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := s.withBackoff(ctx, func(ctx context.Context) error {
		var err error
		logs, err = s.chain.FilterLogs(ctx, fromBlock, toBlock, []common.Address{s.cfg.Token}, topics)
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

// withBackoff runs fn up to MaxRetries+1 times, doubling the wait between
// attempts starting from RetryBackoff. The last error wins.
func (s *Scanner) withBackoff(ctx context.Context, fn func(context.Context) error) error {
	attempts := s.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	delay := s.cfg.RetryBackoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
