package deploy

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/config"
)

// DeployerKeyEnv holds the hex private key of the deploying account.
const DeployerKeyEnv = "DEPLOYER_PRIVATE_KEY"

// devDeployerKey is the first well-known local dev chain account.
const devDeployerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// AddressFromKey derives the account address of a hex encoded private key.
func AddressFromKey(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return common.Address{}, errors.Wrap(err, "parse deployer private key")
	}

	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// ResolveOwner picks the ledger owner: the deployer key from the environment,
// then the configured owner, then the dev chain deployer on development networks.
func ResolveOwner(cfg config.Config, getenv func(string) string) (common.Address, error) {
	if key := getenv(DeployerKeyEnv); key != "" {
		return AddressFromKey(key)
	}
	if cfg.Owner != (common.Address{}) {
		return cfg.Owner, nil
	}
	if cfg.IsDevelopment() {
		return AddressFromKey(devDeployerKey)
	}

	return common.Address{}, errors.Errorf("no owner for network %s: set %s or 'owner' in config", cfg.Network, DeployerKeyEnv)
}
