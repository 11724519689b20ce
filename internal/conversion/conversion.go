// Package conversion maps native-unit amounts to their stable-unit value.
//
// All arithmetic is integer-only: a native amount with NativeDecimals is
// multiplied by the oracle rate and normalized to StableDecimals regardless of
// the oracle's own precision. The result is truncated toward zero.
package conversion

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/internal/domain"
	"github.com/vadiminshakov/fundme/internal/oracle"
)

// ToStable reads the current rate from o and converts nativeAmount.
func ToStable(ctx context.Context, nativeAmount *big.Int, o oracle.Oracle) (*big.Int, error) {
	rate, err := o.LatestRate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read rate")
	}

	return Convert(nativeAmount, rate)
}

// Convert computes nativeAmount * rate * 10^StableDecimals / 10^(rate.Decimals + NativeDecimals).
func Convert(nativeAmount *big.Int, rate oracle.Rate) (*big.Int, error) {
	if err := rate.Validate(); err != nil {
		return nil, err
	}
	if nativeAmount == nil || nativeAmount.Sign() < 0 {
		return nil, errors.Errorf("invalid native amount %v", nativeAmount)
	}

	num := new(big.Int).Mul(nativeAmount, rate.Value)
	num.Mul(num, domain.Pow10(domain.StableDecimals))

	return num.Quo(num, denominator(rate.Decimals)), nil
}

// MinimumNative returns the smallest native amount whose stable value is at
// least minStable at the given rate.
func MinimumNative(minStable *big.Int, rate oracle.Rate) (*big.Int, error) {
	if err := rate.Validate(); err != nil {
		return nil, err
	}

	// ceil(minStable * 10^(rateDecimals + native) / (rate * 10^stable))
	num := new(big.Int).Mul(minStable, denominator(rate.Decimals))
	den := new(big.Int).Mul(rate.Value, domain.Pow10(domain.StableDecimals))

	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}

	return q, nil
}

func denominator(rateDecimals uint8) *big.Int {
	return domain.Pow10(uint(rateDecimals) + domain.NativeDecimals)
}
