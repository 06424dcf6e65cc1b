package erc20

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"allowanceScope/internal/model"
)

// ApprovalDecoder converts raw Approval logs into normalized events.
type ApprovalDecoder struct {
	event abi.Event
}

// NewApprovalDecoder builds a decoder for the ERC20 Approval event.
func NewApprovalDecoder() (*ApprovalDecoder, error) {
	tokenABI, err := TokenABI()
	if err != nil {
		return nil, err
	}
	return &ApprovalDecoder{event: tokenABI.Events["Approval"]}, nil
}

// Topic0 returns the Approval event signature hash.
func (d *ApprovalDecoder) Topic0() common.Hash {
	return d.event.ID
}

// CanDecode checks if the topic0 is the Approval signature.
func (d *ApprovalDecoder) CanDecode(topic0 string) bool {
	return strings.EqualFold(topic0, d.event.ID.Hex())
}

// Decode converts a raw log into an ApprovalEvent. The owner and spender
// addresses are right-aligned in topic1 and topic2.
func (d *ApprovalDecoder) Decode(chainID uint64, log types.Log) (model.ApprovalEvent, error) {
	if len(log.Topics) != 3 {
		return model.ApprovalEvent{}, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != d.event.ID {
		return model.ApprovalEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	var indexed struct {
		Owner   common.Address
		Spender common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), log.Topics[1:]); err != nil {
		return model.ApprovalEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.ApprovalEvent{}, fmt.Errorf("unpack approval: %w", err)
	}
	if len(values) != 1 {
		return model.ApprovalEvent{}, fmt.Errorf("unexpected approval values: %d", len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return model.ApprovalEvent{}, fmt.Errorf("unsupported value type %T", values[0])
	}

	return model.ApprovalEvent{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Token:       log.Address.Hex(),
		Owner:       indexed.Owner.Hex(),
		Spender:     indexed.Spender.Hex(),
		Value:       value.String(),
	}, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
