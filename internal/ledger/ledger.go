// Package ledger implements the pooled-funding ledger: contributors fund it in
// the native unit above a minimum stable value, and the owner withdraws the
// whole pool.
//
// Every mutating call runs to completion under the ledger lock and either
// applies all of its effects or none. The owner payout is an untrusted callback:
// calls made from inside it must use the context it receives and run as nested
// calls of the withdrawal, observing the already-cleared state.
package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/internal/conversion"
	"github.com/vadiminshakov/fundme/internal/domain"
	"github.com/vadiminshakov/fundme/internal/events"
	"github.com/vadiminshakov/fundme/internal/oracle"
	"go.uber.org/zap"
)

// DefaultMinimumStable is the minimum contribution, 50 stable units.
var DefaultMinimumStable = domain.Ether(50)

// Transferrer pays value out of the ledger. Transfer runs while the
// withdrawal holds the ledger lock: any ledger call it makes must use ctx or a
// context derived from it, on the same goroutine. A call made with an
// unrelated context waits for the lock and never returns.
type Transferrer interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

// Journal persists ledger calls.
type Journal interface {
	Append(rec domain.TxRecord) error
	Records() ([]domain.TxRecord, error)
}

// Publisher receives committed events.
type Publisher interface {
	Publish(e events.Event)
}

// Ledger is the authoritative contribution state.
type Ledger struct {
	owner     common.Address
	priceFeed oracle.Oracle
	minimum   *big.Int
	payee     Transferrer
	journal   Journal
	publisher Publisher
	l         *zap.Logger
	now       func() time.Time

	mu sync.RWMutex
	st *state
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMinimum overrides the minimum stable value of a contribution.
func WithMinimum(minStable *big.Int) Option {
	return func(l *Ledger) {
		l.minimum = minStable
	}
}

// WithJournal persists every committed call to j.
func WithJournal(j Journal) Option {
	return func(l *Ledger) {
		l.journal = j
	}
}

// WithPublisher publishes committed events to p.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		l.l = logger
	}
}

// New creates a ledger bound to priceFeed and owned by owner. payee performs
// the owner payout on withdrawal.
func New(priceFeed oracle.Oracle, owner common.Address, payee Transferrer, opts ...Option) (*Ledger, error) {
	if priceFeed == nil {
		return nil, errors.New("price feed is required")
	}
	if owner == (common.Address{}) {
		return nil, errors.New("owner is required")
	}
	if payee == nil {
		return nil, errors.New("transferrer is required")
	}

	l := &Ledger{
		owner:     owner,
		priceFeed: priceFeed,
		minimum:   DefaultMinimumStable,
		payee:     payee,
		l:         zap.NewNop(),
		now:       time.Now,
		st:        newState(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.minimum == nil || l.minimum.Sign() <= 0 {
		return nil, errors.Errorf("minimum must be positive, got %v", l.minimum)
	}
	l.minimum = new(big.Int).Set(l.minimum)

	return l, nil
}

// Fund records a contribution of amount wei from caller. The stable value of
// amount at the current oracle rate must reach the minimum.
func (l *Ledger) Fund(ctx context.Context, caller common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrapf(ErrZeroValue, "got %v", amount)
	}

	err := l.run(ctx, func(ctx context.Context, c *call) error {
		return l.fund(ctx, c, caller, amount)
	})
	if err != nil {
		l.l.Debug("fund rejected", zap.String("funder", caller.Hex()), zap.String("amount", amount.String()), zap.Error(err))
		return err
	}

	l.l.Info("funded", zap.String("funder", caller.Hex()), zap.String("ether", domain.FormatEther(amount)))
	return nil
}

// Receive accepts a plain value transfer to the ledger as a contribution.
func (l *Ledger) Receive(ctx context.Context, caller common.Address, amount *big.Int) error {
	return l.Fund(ctx, caller, amount)
}

func (l *Ledger) fund(ctx context.Context, c *call, caller common.Address, amount *big.Int) error {
	value, err := conversion.ToStable(ctx, amount, l.priceFeed)
	if err != nil {
		return err
	}
	if value.Cmp(l.minimum) < 0 {
		return errors.Wrapf(ErrInsufficientContribution, "%s stable is below minimum %s",
			domain.FormatUnits(value, domain.StableDecimals), domain.FormatUnits(l.minimum, domain.StableDecimals))
	}

	c.setAmount(caller, new(big.Int).Add(c.amountOf(caller), amount))
	c.appendFunder(caller)
	c.setPooled(new(big.Int).Add(c.pooled(), amount))
	c.emit(events.KindFunded, caller, amount, 0)

	return nil
}

// run executes fn as one unit of work. A context carrying a running call of
// this ledger joins it as a nested call; otherwise a new top-level call starts
// under the ledger lock.
func (l *Ledger) run(ctx context.Context, fn func(ctx context.Context, c *call) error) error {
	if c, ok := callFrom(ctx, l); ok {
		m := c.mark()
		if err := fn(ctx, c); err != nil {
			c.rollback(m)
			return err
		}
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c := &call{l: l, st: l.st, txID: uuid.New().String()}
	defer c.done.Store(true)

	ctx = context.WithValue(ctx, callKey{}, c)
	m := c.mark()

	if err := fn(ctx, c); err != nil {
		c.rollback(m)
		if c.journaled {
			if jerr := l.record(c, domain.TxReverted); jerr != nil {
				l.l.Error("failed to journal reverted call", zap.String("tx", c.txID), zap.Error(jerr))
			}
		}
		return err
	}

	if l.journal != nil {
		if err := l.record(c, domain.TxCommitted); err != nil {
			if !c.journaled {
				c.rollback(m)
				return err
			}
			// value already left the ledger, the in-memory state is authoritative
			l.l.Error("failed to journal committed call", zap.String("tx", c.txID), zap.Error(err))
		}
	}

	l.st.commit()
	if l.publisher != nil {
		for _, e := range c.events {
			l.publisher.Publish(e)
		}
	}

	return nil
}

func (l *Ledger) record(c *call, status domain.TxStatus) error {
	rec := domain.TxRecord{
		ID:     c.txID,
		Status: status,
		Time:   l.now(),
		Ops:    append([]domain.Op(nil), c.ops...),
	}
	if err := l.journal.Append(rec); err != nil {
		return errors.Wrapf(ErrJournal, "tx %s (%s): %v", c.txID, status, err)
	}
	return nil
}

// view runs fn against the state. Reads issued from inside a running call see
// its uncommitted state; all other reads wait for the running call to finish.
func (l *Ledger) view(ctx context.Context, fn func(st *state)) {
	if _, ok := callFrom(ctx, l); ok {
		fn(l.st)
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(l.st)
}

// PriceFeed returns the oracle the ledger was created with.
func (l *Ledger) PriceFeed() oracle.Oracle {
	return l.priceFeed
}

// Owner returns the identity allowed to withdraw.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

// Minimum returns the minimum stable value of a contribution.
func (l *Ledger) Minimum() *big.Int {
	return new(big.Int).Set(l.minimum)
}

// AmountFunded returns the cumulative contribution of a since the last withdrawal.
func (l *Ledger) AmountFunded(ctx context.Context, a common.Address) *big.Int {
	var v *big.Int
	l.view(ctx, func(st *state) { v = st.amountOf(a) })
	return v
}

// Funder returns the funder recorded at position i of the funder list.
func (l *Ledger) Funder(ctx context.Context, i int) (common.Address, error) {
	var (
		a  common.Address
		ok bool
		n  int
	)
	l.view(ctx, func(st *state) {
		a, ok = st.funderAt(i)
		n = st.funderCount()
	})
	if !ok {
		return common.Address{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", i, n)
	}
	return a, nil
}

// FunderCount returns the length of the funder list.
func (l *Ledger) FunderCount(ctx context.Context) int {
	var n int
	l.view(ctx, func(st *state) { n = st.funderCount() })
	return n
}

// Funders returns a copy of the funder list.
func (l *Ledger) Funders(ctx context.Context) []common.Address {
	var list []common.Address
	l.view(ctx, func(st *state) { list = st.funderList() })
	return list
}

// Balance returns the pooled balance held by the ledger.
func (l *Ledger) Balance(ctx context.Context) *big.Int {
	var v *big.Int
	l.view(ctx, func(st *state) { v = st.pooled() })
	return v
}
