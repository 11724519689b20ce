package clients

import (
	"context"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// HyperliquidMainnetURL is the public Hyperliquid API.
const HyperliquidMainnetURL = "https://api.hyperliquid.xyz"

// NewHyperliquidInfo returns a client for the public Info API. The exchange
// is bound to a throwaway key because price reads are never signed.
func NewHyperliquidInfo(ctx context.Context, baseURL string) (*hyperliquid.Info, error) {
	if baseURL == "" {
		baseURL = HyperliquidMainnetURL
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate hyperliquid read key")
	}
	accountAddr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	// Info and SpotMeta are fetched lazily by the SDK
	ex := hyperliquid.NewExchange(ctx, key, baseURL, nil, "", accountAddr, nil)

	return ex.Info(), nil
}
