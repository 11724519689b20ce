// Package deploy assembles a ledger for the configured network: price oracle,
// owner, journal and the local account book.
package deploy

import (
	"context"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/config"
	"github.com/vadiminshakov/fundme/internal/events"
	"github.com/vadiminshakov/fundme/internal/ledger"
	"github.com/vadiminshakov/fundme/internal/oracle"
	"github.com/vadiminshakov/fundme/internal/storage/accounts"
	"github.com/vadiminshakov/fundme/internal/storage/journal"
	"github.com/vadiminshakov/fundme/internal/wallet"
	"go.uber.org/zap"
)

// Deployment is a ready to use ledger with its supporting components.
type Deployment struct {
	Ledger  *ledger.Ledger
	Wallet  *wallet.Wallet
	Network config.Network
	// Mock is the deployed mock price feed on development networks, nil otherwise.
	Mock     *oracle.Mock
	Events   *events.Broadcaster
	Restored int

	l       *zap.Logger
	closers []func() error
}

type deployer struct {
	l       *zap.Logger
	getenv  func(string) string
	caller  oracle.ContractCaller
	pricer  oracle.Pricer
	closers []func() error
}

// Option configures Deploy.
type Option func(*deployer)

// WithContractCaller reads the price feed through c instead of dialing the
// network RPC endpoint.
func WithContractCaller(c oracle.ContractCaller) Option {
	return func(d *deployer) {
		d.caller = c
	}
}

// WithPricer uses p for exchange price sources.
func WithPricer(p oracle.Pricer) Option {
	return func(d *deployer) {
		d.pricer = p
	}
}

// WithGetenv replaces the environment lookup.
func WithGetenv(getenv func(string) string) Option {
	return func(d *deployer) {
		d.getenv = getenv
	}
}

// Deploy builds the ledger described by cfg and restores it from the journal.
func Deploy(ctx context.Context, cfg config.Config, l *zap.Logger, opts ...Option) (_ *Deployment, err error) {
	if l == nil {
		l = zap.NewNop()
	}
	d := &deployer{l: l, getenv: os.Getenv}
	for _, opt := range opts {
		opt(d)
	}
	defer func() {
		if err != nil {
			closeAll(d.closers, l)
		}
	}()

	network, err := cfg.Selected()
	if err != nil {
		return nil, err
	}

	owner, err := ResolveOwner(cfg, d.getenv)
	if err != nil {
		return nil, err
	}

	priceFeed, mock, err := d.priceOracle(ctx, cfg, network)
	if err != nil {
		return nil, errors.Wrap(err, "price feed")
	}

	store, err := accounts.NewStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	book, err := wallet.New(l.Named("wallet"), store, cfg.StartingBalance)
	if err != nil {
		return nil, err
	}

	wal, err := journal.NewWALStore(cfg.WalDir)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, wal.Close)

	broadcaster := events.NewBroadcaster(0)
	fundMe, err := ledger.New(priceFeed, owner, book,
		ledger.WithMinimum(cfg.MinimumUSD),
		ledger.WithJournal(wal),
		ledger.WithPublisher(broadcaster),
		ledger.WithLogger(l.Named("ledger")),
	)
	if err != nil {
		return nil, err
	}

	restored, err := fundMe.Restore()
	if err != nil {
		return nil, errors.Wrap(err, "restore ledger")
	}

	l.Info("ledger deployed",
		zap.String("network", network.Name),
		zap.Int64("chain_id", network.ChainID),
		zap.String("owner", owner.Hex()),
		zap.Int("restored_calls", restored),
		zap.Int("block_confirmations", network.BlockConfirmations))

	return &Deployment{
		Ledger:   fundMe,
		Wallet:   book,
		Network:  network,
		Mock:     mock,
		Events:   broadcaster,
		Restored: restored,
		l:        l,
		closers:  d.closers,
	}, nil
}

// Fund attaches amount wei from the account of from to a contribution. The
// value is returned to the account when the ledger rejects it.
func (d *Deployment) Fund(ctx context.Context, from common.Address, amount *big.Int) error {
	if err := d.Wallet.Debit(ctx, from, amount); err != nil {
		return err
	}

	if err := d.Ledger.Fund(ctx, from, amount); err != nil {
		if rerr := d.Wallet.Credit(ctx, from, amount); rerr != nil {
			d.l.Error("failed to refund rejected contribution", zap.String("funder", from.Hex()), zap.Error(rerr))
		}
		return err
	}

	return nil
}

// Close releases the journal and network connections.
func (d *Deployment) Close() error {
	return closeAll(d.closers, d.l)
}

func closeAll(closers []func() error, l *zap.Logger) error {
	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			l.Warn("close failed", zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
