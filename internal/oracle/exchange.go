package oracle

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/fundme/internal/domain"
)

// ExchangeDecimals is the precision exchange ticker prices are scaled to.
const ExchangeDecimals = 8

// Pricer returns the last traded price for a pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// Exchange derives the rate from an exchange ticker.
type Exchange struct {
	pricer Pricer
	pair   domain.Pair
}

// NewExchange creates an oracle that prices pair through p.
func NewExchange(p Pricer, pair domain.Pair) *Exchange {
	return &Exchange{pricer: p, pair: pair}
}

// LatestRate implements Oracle. Sub-precision digits are truncated.
func (e *Exchange) LatestRate(ctx context.Context) (Rate, error) {
	price, err := e.pricer.GetPrice(ctx, e.pair)
	if err != nil {
		return Rate{}, errors.Wrapf(ErrOracleUnavailable, "get %s price: %v", e.pair.String(), err)
	}

	return Rate{Value: price.Shift(ExchangeDecimals).BigInt(), Decimals: ExchangeDecimals}, nil
}
