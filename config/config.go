// Package config loads the fundme deployment configuration.
package config

import (
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	PriceSourceChainlink   = "chainlink"
	PriceSourceBinance     = "binance"
	PriceSourceBybit       = "bybit"
	PriceSourceHyperliquid = "hyperliquid"
)

const (
	defaultNetwork           = "hardhat"
	defaultMockDecimals      = 8
	defaultMockInitialAnswer = "2000"
	defaultMinimumUSD        = "50"
	defaultStartingBalance   = "10000"
	defaultPair              = "ETH_USDT"
	defaultWalDir            = "./wal/ledger"
	defaultStateDir          = "./wal/accounts"
	defaultMaxAge            = time.Hour
)

// Network describes a chain the ledger can be deployed against.
type Network struct {
	Name               string
	ChainID            int64
	EthUsdPriceFeed    common.Address
	RPCURL             string
	BlockConfirmations int
}

// Config is a parsed and validated configuration.
type Config struct {
	Network           string
	ChainID           int64
	Networks          []Network
	DevelopmentChains []string
	MockDecimals      uint8
	MockInitialAnswer *big.Int
	MinimumUSD        *big.Int
	StartingBalance   *big.Int
	PriceSource       string
	Pair              domain.Pair
	WalDir            string
	StateDir          string
	Owner             common.Address
	MaxAge            time.Duration
}

// NetworkTmp is the yaml form of Network.
type NetworkTmp struct {
	Name               string `yaml:"name"`
	ChainID            int64  `yaml:"chain_id"`
	EthUsdPriceFeed    string `yaml:"eth_usd_price_feed,omitempty"`
	RPCURL             string `yaml:"rpc_url,omitempty"`
	BlockConfirmations int    `yaml:"block_confirmations,omitempty"`
}

// ConfigTmp is the yaml form of Config. Amounts are human decimal strings.
type ConfigTmp struct {
	Network           string        `yaml:"network"`
	ChainID           int64         `yaml:"chain_id,omitempty"`
	Networks          []NetworkTmp  `yaml:"networks,omitempty"`
	DevelopmentChains []string      `yaml:"development_chains,omitempty"`
	MockDecimals      *uint8        `yaml:"mock_decimals,omitempty"`
	MockInitialAnswer string        `yaml:"mock_initial_answer,omitempty"`
	MinimumUSD        string        `yaml:"minimum_usd,omitempty"`
	StartingBalance   string        `yaml:"starting_balance,omitempty"`
	PriceSource       string        `yaml:"price_source,omitempty"`
	Pair              string        `yaml:"pair,omitempty"`
	WalDir            string        `yaml:"wal_dir,omitempty"`
	StateDir          string        `yaml:"state_dir,omitempty"`
	Owner             string        `yaml:"owner,omitempty"`
	MaxAge            time.Duration `yaml:"max_age,omitempty"`
}

// DefaultNetworks are the chains known without a config file.
func DefaultNetworks() []NetworkTmp {
	return []NetworkTmp{
		{Name: "sepolia", ChainID: 11155111, EthUsdPriceFeed: "0x694AA1769357215DE4FAC875bf1109F721fA9Ba3", BlockConfirmations: 6},
		{Name: "rinkeby", ChainID: 4, EthUsdPriceFeed: "0x8A753747A1Fa494EC906cE90E9f37563A8AF630e", BlockConfirmations: 6},
		{Name: "localhost", ChainID: 31337, RPCURL: "http://127.0.0.1:8545"},
		{Name: "hardhat", ChainID: 31337},
	}
}

// Load reads the yaml config at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Parse(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	return Parse(data)
}

// Parse decodes yaml config data and fills in defaults.
func Parse(data []byte) (Config, error) {
	var tmp ConfigTmp
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &tmp); err != nil {
			return Config{}, errors.Wrap(err, "decode yaml config")
		}
	}

	return tmp.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Config{
		Network:           strings.ToLower(strings.TrimSpace(c.Network)),
		ChainID:           c.ChainID,
		DevelopmentChains: c.DevelopmentChains,
		MockDecimals:      defaultMockDecimals,
		PriceSource:       strings.ToLower(strings.TrimSpace(c.PriceSource)),
		WalDir:            c.WalDir,
		StateDir:          c.StateDir,
		MaxAge:            c.MaxAge,
	}
	if cfg.Network == "" {
		cfg.Network = defaultNetwork
	}
	if len(cfg.DevelopmentChains) == 0 {
		cfg.DevelopmentChains = []string{"hardhat", "localhost"}
	}
	if c.MockDecimals != nil {
		cfg.MockDecimals = *c.MockDecimals
	}
	if cfg.PriceSource == "" {
		cfg.PriceSource = PriceSourceChainlink
	}
	if cfg.WalDir == "" {
		cfg.WalDir = defaultWalDir
	}
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaultMaxAge
	}

	switch cfg.PriceSource {
	case PriceSourceChainlink, PriceSourceBinance, PriceSourceBybit, PriceSourceHyperliquid:
	default:
		return Config{}, errors.Errorf("incorrect 'price_source' param in yaml config: %q (chainlink, binance, bybit or hyperliquid)", c.PriceSource)
	}

	networks := c.Networks
	if len(networks) == 0 {
		networks = DefaultNetworks()
	}
	for _, n := range networks {
		parsed, err := n.toNetwork()
		if err != nil {
			return Config{}, err
		}
		cfg.Networks = append(cfg.Networks, parsed)
	}

	var err error
	answer := orDefault(c.MockInitialAnswer, defaultMockInitialAnswer)
	if cfg.MockInitialAnswer, err = domain.ParseUnits(answer, int32(cfg.MockDecimals)); err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'mock_initial_answer' param in yaml config: %s", answer)
	}
	minimum := orDefault(c.MinimumUSD, defaultMinimumUSD)
	if cfg.MinimumUSD, err = domain.ParseUnits(minimum, domain.StableDecimals); err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'minimum_usd' param in yaml config: %s", minimum)
	}
	starting := orDefault(c.StartingBalance, defaultStartingBalance)
	if cfg.StartingBalance, err = domain.ParseUnits(starting, domain.NativeDecimals); err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'starting_balance' param in yaml config: %s", starting)
	}
	if cfg.MockInitialAnswer.Sign() <= 0 || cfg.MinimumUSD.Sign() <= 0 {
		return Config{}, errors.New("mock_initial_answer and minimum_usd must be positive")
	}

	pair := orDefault(c.Pair, defaultPair)
	if cfg.Pair, err = domain.ParsePair(pair); err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'pair' param in yaml config: %s", pair)
	}

	if c.Owner != "" {
		if !common.IsHexAddress(c.Owner) {
			return Config{}, errors.Errorf("incorrect 'owner' param in yaml config: %s", c.Owner)
		}
		cfg.Owner = common.HexToAddress(c.Owner)
	}

	if cfg.ChainID == 0 {
		if n, ok := cfg.NetworkByName(cfg.Network); ok {
			cfg.ChainID = n.ChainID
		}
	}

	return cfg, nil
}

func (n NetworkTmp) toNetwork() (Network, error) {
	if n.Name == "" {
		return Network{}, errors.New("network name cannot be empty")
	}

	parsed := Network{
		Name:               strings.ToLower(n.Name),
		ChainID:            n.ChainID,
		RPCURL:             n.RPCURL,
		BlockConfirmations: n.BlockConfirmations,
	}
	if n.EthUsdPriceFeed != "" {
		if !common.IsHexAddress(n.EthUsdPriceFeed) {
			return Network{}, errors.Errorf("incorrect 'eth_usd_price_feed' for network %s: %s", n.Name, n.EthUsdPriceFeed)
		}
		parsed.EthUsdPriceFeed = common.HexToAddress(n.EthUsdPriceFeed)
	}

	return parsed, nil
}

// IsDevelopment reports whether the selected network is a local dev chain.
func (c Config) IsDevelopment() bool {
	for _, name := range c.DevelopmentChains {
		if strings.EqualFold(name, c.Network) {
			return true
		}
	}
	return false
}

// NetworkByName looks up a configured network.
func (c Config) NetworkByName(name string) (Network, bool) {
	for _, n := range c.Networks {
		if strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return Network{}, false
}

// NetworkByChainID looks up a configured network by chain id.
func (c Config) NetworkByChainID(id int64) (Network, bool) {
	for _, n := range c.Networks {
		if n.ChainID == id {
			return n, true
		}
	}
	return Network{}, false
}

// Selected returns the network the deployment targets, by name first and by
// chain id otherwise. hardhat and localhost share a chain id.
func (c Config) Selected() (Network, error) {
	if n, ok := c.NetworkByName(c.Network); ok {
		return n, nil
	}
	if c.ChainID != 0 {
		if n, ok := c.NetworkByChainID(c.ChainID); ok {
			return n, nil
		}
	}
	return Network{}, errors.Errorf("unknown network %q (chain id %d)", c.Network, c.ChainID)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
