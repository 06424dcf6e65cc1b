package erc20

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"allowanceScope/internal/chain"
	"allowanceScope/internal/model"
)

// Caller reads token state via eth_call. Failures are wrapped as
// TransportError since queries sit outside the authorization-setting flow.
type Caller struct {
	client *chain.Client
	token  common.Address
}

// NewCaller builds a read-side caller for one token contract.
func NewCaller(client *chain.Client, token common.Address) *Caller {
	return &Caller{client: client, token: token}
}

// Allowance returns the live authorization for owner -> spender.
func (c *Caller) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	tokenABI, err := TokenABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	data, err := tokenABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}

	msg := ethereum.CallMsg{To: &c.token, Data: data}
	resp, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, &model.TransportError{Op: "allowance", Err: err}
	}

	values, err := tokenABI.Unpack("allowance", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack allowance: %w", err)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported allowance type %T", values[0])
	}
	return amount, nil
}
