package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"allowanceScope/internal/chain"
)

// ensRegistryAddress is the canonical ENS registry, identical on mainnet
// and the public testnets.
var ensRegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

const ensABIJSON = `[
  {
    "inputs": [{"internalType": "bytes32", "name": "node", "type": "bytes32"}],
    "name": "resolver",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes32", "name": "node", "type": "bytes32"}],
    "name": "name",
    "outputs": [{"internalType": "string", "name": "", "type": "string"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	ensABI     abi.ABI
	ensABIOnce sync.Once
	ensABIErr  error
)

func ensABIInstance() (abi.ABI, error) {
	ensABIOnce.Do(func() {
		ensABI, ensABIErr = abi.JSON(strings.NewReader(ensABIJSON))
	})
	return ensABI, ensABIErr
}

// ENSReverse resolves reverse records (<addr>.addr.reverse) through the
// ENS registry. Lookups are best-effort; any failure is a miss.
type ENSReverse struct {
	client *chain.Client
	logger *zap.Logger
}

func NewENSReverse(client *chain.Client, logger *zap.Logger) *ENSReverse {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ENSReverse{client: client, logger: logger}
}

func (r *ENSReverse) ApplicationName(_ context.Context, _ common.Address) (string, bool) {
	return "", false
}

func (r *ENSReverse) ReverseName(ctx context.Context, addr common.Address) (string, bool) {
	if r.client == nil {
		return "", false
	}

	parsed, err := ensABIInstance()
	if err != nil {
		return "", false
	}

	node := reverseNode(addr)

	resolverAddr, ok := r.callAddress(ctx, parsed, ensRegistryAddress, "resolver", node)
	if !ok || resolverAddr == (common.Address{}) {
		return "", false
	}

	data, err := parsed.Pack("name", node)
	if err != nil {
		return "", false
	}
	resp, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &resolverAddr, Data: data}, nil)
	if err != nil {
		r.logger.Debug("ens name call failed", zap.String("addr", addr.Hex()), zap.Error(err))
		return "", false
	}
	values, err := parsed.Unpack("name", resp)
	if err != nil {
		return "", false
	}
	name, ok := values[0].(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func (r *ENSReverse) callAddress(ctx context.Context, parsed abi.ABI, target common.Address, method string, node [32]byte) (common.Address, bool) {
	data, err := parsed.Pack(method, node)
	if err != nil {
		return common.Address{}, false
	}
	resp, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err != nil {
		r.logger.Debug("ens registry call failed", zap.String("method", method), zap.Error(err))
		return common.Address{}, false
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return common.Address{}, false
	}
	out, ok := values[0].(common.Address)
	return out, ok
}

// reverseNode computes namehash("<hex-addr>.addr.reverse").
func reverseNode(addr common.Address) [32]byte {
	labels := []string{strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")), "addr", "reverse"}
	var node [32]byte
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		node = [32]byte(crypto.Keccak256Hash(node[:], label))
	}
	return node
}
