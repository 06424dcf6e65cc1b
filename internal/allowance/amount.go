package allowance

import (
	"math/big"
	"strings"
)

const (
	displayDecimals  = 3
	zeroDisplay      = "0.000"
	unlimitedDisplay = "Unlimited"
)

// FormatAmount renders a raw token amount with exactly three fractional
// digits, rounded half-up. An amount above totalSupply renders as the
// literal Unlimited token; that is a display heuristic for effectively
// unlimited approvals, not a protocol-level distinction. A nil
// totalSupply disables the heuristic.
func FormatAmount(amount *big.Int, decimals uint8, totalSupply *big.Int) string {
	if amount == nil {
		return zeroDisplay
	}
	if totalSupply != nil && amount.Cmp(totalSupply) > 0 {
		return unlimitedDisplay
	}
	rat := new(big.Rat).SetFrac(amount, pow10(decimals))
	return rat.FloatString(displayDecimals)
}

// ParseAmount converts user-entered decimal text into a raw token amount
// at full precision. Missing fractional digits are zero-padded, excess
// fractional digits are truncated (never rounded), and malformed input,
// including more than one decimal point, coerces to zero.
func ParseAmount(text string, decimals uint8) *big.Int {
	text = strings.TrimSpace(text)
	parts := strings.Split(text, ".")
	if len(parts) > 2 {
		return big.NewInt(0)
	}

	intPart := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > int(decimals) {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	digits := intPart + frac
	if digits == "" {
		return big.NewInt(0)
	}
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok || value.Sign() < 0 {
		return big.NewInt(0)
	}
	return value
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
