package oracle

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// aggregatorABI is the read-only subset of AggregatorV3Interface.
const aggregatorABI = `[
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}
]`

// ContractCaller executes read-only contract calls. *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Feed reads an on-chain price aggregator.
type Feed struct {
	caller  ContractCaller
	address common.Address
	abi     abi.ABI
	maxAge  time.Duration
	now     func() time.Time

	mu       sync.Mutex
	decimals *uint8
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithMaxAge rejects answers older than d. Zero disables the check.
func WithMaxAge(d time.Duration) FeedOption {
	return func(f *Feed) {
		f.maxAge = d
	}
}

// NewFeed binds the aggregator deployed at address.
func NewFeed(caller ContractCaller, address common.Address, opts ...FeedOption) (*Feed, error) {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse aggregator ABI")
	}

	f := &Feed{
		caller:  caller,
		address: address,
		abi:     parsed,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Address returns the aggregator contract address.
func (f *Feed) Address() common.Address {
	return f.address
}

// LatestRate implements Oracle.
func (f *Feed) LatestRate(ctx context.Context) (Rate, error) {
	decimals, err := f.loadDecimals(ctx)
	if err != nil {
		return Rate{}, err
	}

	out, err := f.call(ctx, "latestRoundData")
	if err != nil {
		return Rate{}, err
	}
	if len(out) != 5 {
		return Rate{}, errors.Wrapf(ErrOracleUnavailable, "latestRoundData returned %d values", len(out))
	}

	answer, ok := out[1].(*big.Int)
	if !ok {
		return Rate{}, errors.Wrapf(ErrOracleUnavailable, "unexpected answer type %T", out[1])
	}
	updatedAt, ok := out[3].(*big.Int)
	if !ok {
		return Rate{}, errors.Wrapf(ErrOracleUnavailable, "unexpected updatedAt type %T", out[3])
	}

	if f.maxAge > 0 {
		age := f.now().Sub(time.Unix(updatedAt.Int64(), 0))
		if age > f.maxAge {
			return Rate{}, errors.Wrapf(ErrOracleUnavailable, "answer is stale: updated %s ago", age.Truncate(time.Second))
		}
	}

	return Rate{Value: answer, Decimals: decimals}, nil
}

func (f *Feed) loadDecimals(ctx context.Context) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.decimals != nil {
		return *f.decimals, nil
	}

	out, err := f.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, errors.Wrapf(ErrOracleUnavailable, "decimals returned %d values", len(out))
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, errors.Wrapf(ErrOracleUnavailable, "unexpected decimals type %T", out[0])
	}

	f.decimals = &d
	return d, nil
}

func (f *Feed) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := f.abi.Pack(method)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	res, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &f.address, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrOracleUnavailable, "call %s on %s: %v", method, f.address.Hex(), err)
	}

	out, err := f.abi.Unpack(method, res)
	if err != nil {
		return nil, errors.Wrapf(ErrOracleUnavailable, "decode %s from %s: %v", method, f.address.Hex(), err)
	}

	return out, nil
}
