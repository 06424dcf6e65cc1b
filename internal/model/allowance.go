package model

import "math/big"

// Allowance is the reconciled view of one spender's standing authorization.
// Exactly one exists per spender within a discovery run. CurrentAmount is
// only refreshed by a full re-run of discovery, never patched in place.
type Allowance struct {
	Spender       string
	DisplayName   string
	CurrentAmount *big.Int
	PendingTarget *big.Int
}

// AllowanceRecord is the JSONL export form of an Allowance. Amounts are
// rendered as decimal strings so they survive arbitrary precision.
type AllowanceRecord struct {
	Token         string `json:"token"`
	Owner         string `json:"owner"`
	Spender       string `json:"spender"`
	DisplayName   string `json:"display_name,omitempty"`
	CurrentAmount string `json:"current_amount"`
	Display       string `json:"display"`
	ExportedAt    string `json:"exported_at"`
}
