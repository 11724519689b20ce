// Package oracle provides the price sources the ledger reads the native/stable
// exchange rate from.
package oracle

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/internal/domain"
)

var (
	// ErrOracleUnavailable is returned when the rate could not be read.
	ErrOracleUnavailable = errors.New("fundme: oracle unavailable")
	// ErrInvalidRate is returned for a missing or non-positive rate.
	ErrInvalidRate = errors.New("fundme: invalid oracle rate")
)

// Rate is a stable-per-native exchange rate in fixed point: Value / 10^Decimals.
type Rate struct {
	Value    *big.Int
	Decimals uint8
}

// Validate reports ErrInvalidRate unless the rate is strictly positive.
func (r Rate) Validate() error {
	if r.Value == nil || r.Value.Sign() <= 0 {
		return errors.Wrapf(ErrInvalidRate, "rate %s", r.String())
	}

	return nil
}

func (r Rate) String() string {
	if r.Value == nil {
		return "<nil>"
	}

	return domain.FormatUnits(r.Value, int32(r.Decimals))
}

// Oracle supplies the current exchange rate.
type Oracle interface {
	LatestRate(ctx context.Context) (Rate, error)
}
