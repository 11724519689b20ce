package deploy

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/config"
	"github.com/vadiminshakov/fundme/internal/clients"
	"github.com/vadiminshakov/fundme/internal/oracle"
	"github.com/vadiminshakov/fundme/internal/services/pricer"
	"github.com/vadiminshakov/fundme/pkg/retrier"
	"go.uber.org/zap"
)

// retrying retries transient oracle read failures. Invalid rates are final.
type retrying struct {
	o oracle.Oracle
	r *retrier.Retrier
}

func newRetrying(o oracle.Oracle, l *zap.Logger) *retrying {
	return &retrying{
		o: o,
		r: retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(200*time.Millisecond),
			retrier.WithMaxInterval(time.Second),
			retrier.WithLogger(l, "oracle read"),
		),
	}
}

func (o *retrying) LatestRate(ctx context.Context) (oracle.Rate, error) {
	return retrier.DoWithData(o.r, ctx, func(ctx context.Context) (oracle.Rate, error) {
		rate, err := o.o.LatestRate(ctx)
		if err == nil {
			err = rate.Validate()
		}
		if errors.Is(err, oracle.ErrInvalidRate) {
			return oracle.Rate{}, retrier.Permanent(err)
		}
		return rate, err
	})
}

// priceOracle selects the oracle for the target network.
func (d *deployer) priceOracle(ctx context.Context, cfg config.Config, network config.Network) (oracle.Oracle, *oracle.Mock, error) {
	if cfg.IsDevelopment() {
		mock := oracle.NewMock(cfg.MockDecimals, cfg.MockInitialAnswer)
		d.l.Info("deployed mock price feed",
			zap.String("network", network.Name),
			zap.Uint8("decimals", cfg.MockDecimals),
			zap.String("answer", cfg.MockInitialAnswer.String()))
		return mock, mock, nil
	}

	switch cfg.PriceSource {
	case config.PriceSourceBinance, config.PriceSourceBybit, config.PriceSourceHyperliquid:
		p := d.pricer
		if p == nil {
			var err error
			if p, err = exchangePricer(ctx, cfg.PriceSource); err != nil {
				return nil, nil, err
			}
		}
		d.l.Info("using exchange price source", zap.String("source", cfg.PriceSource), zap.String("pair", cfg.Pair.String()))
		return newRetrying(oracle.NewExchange(p, cfg.Pair), d.l), nil, nil
	}

	if network.EthUsdPriceFeed == (common.Address{}) {
		return nil, nil, errors.Errorf("no eth_usd_price_feed configured for network %s (chain id %d)", network.Name, network.ChainID)
	}

	caller := d.caller
	if caller == nil {
		client, err := clients.DialEth(ctx, d.l, network.RPCURL, network.ChainID)
		if err != nil {
			return nil, nil, err
		}
		d.closers = append(d.closers, func() error {
			client.Close()
			return nil
		})
		caller = client
	}

	feed, err := oracle.NewFeed(caller, network.EthUsdPriceFeed, oracle.WithMaxAge(cfg.MaxAge))
	if err != nil {
		return nil, nil, err
	}
	d.l.Info("using price feed", zap.String("network", network.Name), zap.String("feed", network.EthUsdPriceFeed.Hex()))

	return newRetrying(feed, d.l), nil, nil
}

func exchangePricer(ctx context.Context, source string) (oracle.Pricer, error) {
	switch source {
	case config.PriceSourceBinance:
		return pricer.NewBinancePricer(clients.NewBinanceClient("", "")), nil
	case config.PriceSourceBybit:
		return pricer.NewBybitPricer(clients.NewBybitClient("", "")), nil
	case config.PriceSourceHyperliquid:
		info, err := clients.NewHyperliquidInfo(ctx, "")
		if err != nil {
			return nil, err
		}
		return pricer.NewHyperliquidPricer(info), nil
	}
	return nil, errors.Errorf("unsupported price source %q", source)
}
