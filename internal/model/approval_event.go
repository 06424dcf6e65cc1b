package model

// ApprovalEvent is the normalized representation of an ERC-20 Approval log.
// It is decoded once at the chain boundary and never mutated afterwards;
// the spender lives right-aligned in topic2 of the raw log.
type ApprovalEvent struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Token       string `json:"token"`
	Owner       string `json:"owner"`
	Spender     string `json:"spender"`
	Value       string `json:"value"`
}
