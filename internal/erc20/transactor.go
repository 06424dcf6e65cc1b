package erc20

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"allowanceScope/internal/chain"
	"allowanceScope/internal/model"
)

const receiptPollInterval = 2 * time.Second

// Transactor issues authorization-setting transactions against one token
// contract. Reverts surface at gas estimation, before anything is
// submitted, and are classified for the update fallback chain.
type Transactor struct {
	client   *chain.Client
	token    common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
}

// NewTransactor builds a write-side transactor from a hex private key.
func NewTransactor(ctx context.Context, client *chain.Client, token common.Address, privateKeyHex string, gasLimit uint64) (*Transactor, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	return &Transactor{
		client:   client,
		token:    token,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		gasLimit: gasLimit,
	}, nil
}

// From returns the transacting account.
func (t *Transactor) From() common.Address {
	return t.from
}

// Approve sets the authorization to an absolute amount.
func (t *Transactor) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*PendingTx, error) {
	return t.send(ctx, "approve", spender, amount)
}

// IncreaseAllowance raises the authorization by delta.
func (t *Transactor) IncreaseAllowance(ctx context.Context, spender common.Address, delta *big.Int) (*PendingTx, error) {
	return t.send(ctx, "increaseAllowance", spender, delta)
}

// DecreaseAllowance lowers the authorization by delta.
func (t *Transactor) DecreaseAllowance(ctx context.Context, spender common.Address, delta *big.Int) (*PendingTx, error) {
	return t.send(ctx, "decreaseAllowance", spender, delta)
}

func (t *Transactor) send(ctx context.Context, method string, spender common.Address, amount *big.Int) (*PendingTx, error) {
	tokenABI, err := TokenABI()
	if err != nil {
		return nil, &model.CallError{Kind: model.CallOther, Op: method, Err: err}
	}

	data, err := tokenABI.Pack(method, spender, amount)
	if err != nil {
		return nil, &model.CallError{Kind: model.CallOther, Op: method, Err: err}
	}

	nonce, err := t.client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, &model.CallError{Kind: model.CallOther, Op: method, Err: err}
	}
	gasPrice, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &model.CallError{Kind: model.CallOther, Op: method, Err: err}
	}

	gas := t.gasLimit
	if gas == 0 {
		gas, err = t.client.EstimateGas(ctx, ethereum.CallMsg{
			From: t.from,
			To:   &t.token,
			Data: data,
		})
		if err != nil {
			return nil, classify(method, err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &t.token,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), t.key)
	if err != nil {
		return nil, &model.CallError{Kind: model.CallOther, Op: method, Err: err}
	}

	if err := t.client.SendTransaction(ctx, signed); err != nil {
		return nil, classify(method, err)
	}

	return &PendingTx{client: t.client, op: method, hash: signed.Hash()}, nil
}

// classify maps a node error to the recoverable revert signal or the
// fatal catch-all. The node reports reverts as an "execution reverted"
// RPC error; that is the only empirically observable capability signal.
func classify(op string, err error) *model.CallError {
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return &model.CallError{Kind: model.CallReverted, Op: op, Err: err}
	}
	return &model.CallError{Kind: model.CallOther, Op: op, Err: err}
}

// hasConfirmations reports whether a transaction mined at minedBlock has
// minConfirmations blocks on top of it. A reorg can briefly leave the
// chain head behind the mined block; that counts as zero confirmations,
// not as a wrapped uint64.
func hasConfirmations(latest, minedBlock, minConfirmations uint64) bool {
	if latest < minedBlock {
		return false
	}
	return latest-minedBlock+1 >= minConfirmations
}

// PendingTx is a submitted authorization change awaiting confirmation.
type PendingTx struct {
	client *chain.Client
	op     string
	hash   common.Hash
}

// Hash returns the transaction hash.
func (p *PendingTx) Hash() common.Hash {
	return p.hash
}

// Confirm polls until the transaction has minConfirmations blocks on top
// of it. A mined-but-failed receipt classifies as a revert. No internal
// timeout is imposed; cancellation comes from the context.
func (p *PendingTx) Confirm(ctx context.Context, minConfirmations uint64) error {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := p.client.TransactionReceipt(ctx, p.hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return &model.CallError{Kind: model.CallReverted, Op: p.op, Err: fmt.Errorf("transaction %s reverted", p.hash.Hex())}
			}
			latest, err := p.client.LatestBlockNumber(ctx)
			if err != nil {
				return &model.TransportError{Op: "confirm " + p.op, Err: err}
			}
			if hasConfirmations(latest, receipt.BlockNumber.Uint64(), minConfirmations) {
				return nil
			}
		} else if err != nil && !errors.Is(err, ethereum.NotFound) {
			return &model.TransportError{Op: "confirm " + p.op, Err: err}
		}

		select {
		case <-ctx.Done():
			return &model.TransportError{Op: "confirm " + p.op, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}
