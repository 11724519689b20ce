// Package clients constructs the external API clients used by a deployment.
package clients

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/pkg/retrier"
	"go.uber.org/zap"
)

// DialEth connects to an Ethereum JSON-RPC endpoint and checks it answers
// with the expected chain id. Zero chainID skips the check.
func DialEth(ctx context.Context, l *zap.Logger, rpcURL string, chainID int64) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpc url is required")
	}

	r := retrier.New(retrier.WithLogger(l, "eth dial"))

	return retrier.DoWithData(r, ctx, func(ctx context.Context) (*ethclient.Client, error) {
		client, err := ethclient.DialContext(ctx, rpcURL)
		if err != nil {
			return nil, errors.Wrapf(err, "dial %s", rpcURL)
		}

		id, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, errors.Wrap(err, "get chain id")
		}
		if chainID != 0 && id.Int64() != chainID {
			client.Close()
			return nil, retrier.Permanent(errors.Errorf("rpc %s serves chain %s, want %d", rpcURL, id, chainID))
		}

		return client, nil
	})
}
