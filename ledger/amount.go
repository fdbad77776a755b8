package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Address identifies an owner at the ledger boundary. The format follows the
// original EVM deployment (0x-prefixed hex) but the core only compares
// addresses for equality, so any non-empty opaque string is accepted.
type Address string

// Valid reports whether the address is usable as an owner identity.
func (a Address) Valid() bool {
	return strings.TrimSpace(string(a)) != ""
}

func (a Address) String() string {
	return string(a)
}

// Pow10 returns 10^n as a big integer. Decimal exponents in this system are
// small (≤ 30), so the table-free computation is fine.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Units returns n whole asset units at the given decimal scale, e.g.
// Units(2, 18) is 2 ETH in wei.
func Units(n int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Pow10(decimals))
}

// IsPositive reports whether x is a usable transfer amount (> 0). A nil
// amount is treated as zero.
func IsPositive(x *big.Int) bool {
	return x != nil && x.Sign() > 0
}

// ParseAmount converts a decimal string in asset units (e.g. "0.5") into a
// raw integer amount at the asset's scale. Inputs with more fractional
// digits than the asset carries are rejected rather than silently truncated.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatAmount renders a raw integer amount as a decimal string in asset
// units. The inverse of ParseAmount.
func FormatAmount(x *big.Int, decimals uint8) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -int32(decimals)).String()
}
