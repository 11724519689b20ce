package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// NativeDecimals is the fixed decimal base of the native unit (wei per ether).
	NativeDecimals = 18
	// StableDecimals is the fixed decimal base every stable value is expressed in.
	StableDecimals = 18
)

// ParseUnits converts a human readable amount such as "0.025" into its integer
// representation with the given number of decimals.
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrapf(err, "parse amount %q", s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative, got %s", s)
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", s, decimals)
	}

	return scaled.BigInt(), nil
}

// ParseEther converts an ether amount into wei.
func ParseEther(s string) (*big.Int, error) {
	return ParseUnits(s, NativeDecimals)
}

// FormatUnits renders an integer amount with the given decimals, trailing zeros trimmed.
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}

	return decimal.NewFromBigInt(v, -decimals).String()
}

// FormatEther renders wei as ether.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, NativeDecimals)
}

// Ether returns n whole ether in wei.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Pow10(NativeDecimals))
}

// Pow10 returns 10^n as a new big.Int.
func Pow10(n uint) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
