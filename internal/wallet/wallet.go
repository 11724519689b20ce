// Package wallet keeps native balances of local accounts and moves value
// between them and the ledger.
package wallet

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/internal/domain"
	"github.com/vadiminshakov/fundme/internal/storage/accounts"
	"go.uber.org/zap"
)

// DefaultStartingBalance is the balance of an account seen for the first time.
var DefaultStartingBalance = domain.Ether(10_000)

var (
	// ErrInsufficientFunds is returned when an account cannot cover a debit.
	ErrInsufficientFunds = errors.New("fundme: insufficient funds")
	// ErrRejected is returned when the recipient does not accept incoming value.
	ErrRejected = errors.New("fundme: recipient rejected transfer")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("fundme: invalid amount")
)

type stateStore interface {
	Load() (*accounts.State, error)
	Save(state accounts.State) error
}

// Wallet is an in-memory account book, optionally persisted.
type Wallet struct {
	mu        sync.Mutex
	balances  map[common.Address]*big.Int
	rejecting map[common.Address]bool
	starting  *big.Int
	store     stateStore
	l         *zap.Logger
}

// New creates a wallet. store may be nil. Accounts never seen before start
// with starting wei; nil means DefaultStartingBalance.
func New(l *zap.Logger, store stateStore, starting *big.Int) (*Wallet, error) {
	if l == nil {
		l = zap.NewNop()
	}
	if starting == nil {
		starting = DefaultStartingBalance
	}
	if starting.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "starting balance %s", starting)
	}

	w := &Wallet{
		balances:  make(map[common.Address]*big.Int),
		rejecting: make(map[common.Address]bool),
		starting:  new(big.Int).Set(starting),
		store:     store,
		l:         l,
	}

	if err := w.load(); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Wallet) load() error {
	if w.store == nil {
		return nil
	}

	state, err := w.store.Load()
	if err != nil {
		return errors.Wrap(err, "load accounts")
	}
	if state == nil {
		return nil
	}

	for hex, v := range state.Balances {
		if !common.IsHexAddress(hex) {
			return errors.Errorf("invalid account address %q", hex)
		}
		bal, ok := new(big.Int).SetString(v, 10)
		if !ok || bal.Sign() < 0 {
			return errors.Errorf("invalid balance %q for %s", v, hex)
		}
		w.balances[common.HexToAddress(hex)] = bal
	}
	for _, hex := range state.Rejecting {
		if !common.IsHexAddress(hex) {
			return errors.Errorf("invalid account address %q", hex)
		}
		w.rejecting[common.HexToAddress(hex)] = true
	}

	w.l.Debug("accounts loaded", zap.Int("accounts", len(w.balances)), zap.Int("rejecting", len(w.rejecting)))

	return nil
}

// BalanceOf returns the balance of a.
func (w *Wallet) BalanceOf(a common.Address) *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return new(big.Int).Set(w.balanceLocked(a))
}

func (w *Wallet) balanceLocked(a common.Address) *big.Int {
	if bal, ok := w.balances[a]; ok {
		return bal
	}
	return w.starting
}

// Debit takes amount wei from a to attach it to a contribution.
func (w *Wallet) Debit(_ context.Context, a common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "%v", amount)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	bal := w.balanceLocked(a)
	if bal.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientFunds, "%s has %s ether, needs %s",
			a.Hex(), domain.FormatEther(bal), domain.FormatEther(amount))
	}

	prev := bal
	w.balances[a] = new(big.Int).Sub(bal, amount)
	if err := w.saveLocked(); err != nil {
		w.balances[a] = prev
		return err
	}

	return nil
}

// Credit adds amount wei to a.
func (w *Wallet) Credit(_ context.Context, a common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "%v", amount)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.creditLocked(a, amount)
}

func (w *Wallet) creditLocked(a common.Address, amount *big.Int) error {
	prev, had := w.balances[a]
	w.balances[a] = new(big.Int).Add(w.balanceLocked(a), amount)
	if err := w.saveLocked(); err != nil {
		if had {
			w.balances[a] = prev
		} else {
			delete(w.balances, a)
		}
		return err
	}

	return nil
}

// Transfer pays amount wei to the recipient. Accounts marked as rejecting
// refuse any value.
func (w *Wallet) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "%v", amount)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.rejecting[to] {
		return errors.Wrapf(ErrRejected, "%s", to.Hex())
	}

	if err := w.creditLocked(to, amount); err != nil {
		return err
	}

	w.l.Info("transfer", zap.String("to", to.Hex()), zap.String("ether", domain.FormatEther(amount)))

	return nil
}

// SetRejecting marks a as refusing (or accepting again) incoming transfers.
func (w *Wallet) SetRejecting(a common.Address, reject bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.rejecting[a]
	if reject {
		w.rejecting[a] = true
	} else {
		delete(w.rejecting, a)
	}

	if err := w.saveLocked(); err != nil {
		if prev {
			w.rejecting[a] = true
		} else {
			delete(w.rejecting, a)
		}
		return err
	}

	return nil
}

func (w *Wallet) saveLocked() error {
	if w.store == nil {
		return nil
	}

	state := accounts.State{Balances: make(map[string]string, len(w.balances))}
	for a, bal := range w.balances {
		state.Balances[a.Hex()] = bal.String()
	}
	for a := range w.rejecting {
		state.Rejecting = append(state.Rejecting, a.Hex())
	}
	sort.Strings(state.Rejecting)

	if err := w.store.Save(state); err != nil {
		return errors.Wrap(err, "save accounts")
	}

	return nil
}
