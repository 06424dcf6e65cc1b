package model

// TokenMeta captures ERC20 metadata. TotalSupply is a decimal string; an
// empty value means the supply call failed and the unlimited-display
// heuristic is disabled.
type TokenMeta struct {
	Address     string `json:"address"`
	Decimals    uint8  `json:"decimals"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	TotalSupply string `json:"total_supply"`
}
