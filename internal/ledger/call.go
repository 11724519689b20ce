package ledger

import (
	"context"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vadiminshakov/fundme/internal/domain"
	"github.com/vadiminshakov/fundme/internal/events"
)

type callKey struct{}

// call is one top-level unit of work together with every nested call made
// from inside it. It meters storage access and buffers events and journal
// ops until the top-level call commits.
type call struct {
	l    *Ledger
	st   *state
	txID string

	reads  int
	writes int

	events []events.Event
	ops    []domain.Op

	// journaled is set once a pending record has been written.
	journaled bool

	// done is set when the top-level call returns; a leaked context may be
	// checked from another goroutine.
	done atomic.Bool
}

type callMark struct {
	state  int
	events int
	ops    int
}

// callFrom returns the running call of l that ctx was derived from.
func callFrom(ctx context.Context, l *Ledger) (*call, bool) {
	c, ok := ctx.Value(callKey{}).(*call)
	if !ok || c.l != l || c.done.Load() {
		return nil, false
	}
	return c, true
}

func (c *call) mark() callMark {
	return callMark{state: c.st.mark(), events: len(c.events), ops: len(c.ops)}
}

func (c *call) rollback(m callMark) {
	c.st.revertTo(m.state)
	c.events = c.events[:m.events]
	c.ops = c.ops[:m.ops]
}

func (c *call) amountOf(a common.Address) *big.Int {
	c.reads++
	return c.st.amountOf(a)
}

func (c *call) setAmount(a common.Address, v *big.Int) {
	c.writes++
	c.st.setAmount(a, v)
}

func (c *call) funderCount() int {
	c.reads++
	return c.st.funderCount()
}

func (c *call) funderAt(i int) common.Address {
	c.reads++
	a, _ := c.st.funderAt(i)
	return a
}

func (c *call) funders() []common.Address {
	c.reads++
	return c.st.funderList()
}

func (c *call) appendFunder(a common.Address) {
	c.writes++
	c.st.appendFunder(a)
}

func (c *call) clearFunders() {
	c.writes++
	c.st.clearFunders()
}

func (c *call) pooled() *big.Int {
	c.reads++
	return c.st.pooled()
}

func (c *call) setPooled(v *big.Int) {
	c.writes++
	c.st.setPooled(v)
}

func (c *call) emit(kind events.Kind, account common.Address, amount *big.Int, funders int) {
	c.events = append(c.events, events.Event{
		Kind:      kind,
		Timestamp: c.l.now(),
		Account:   account,
		Amount:    amount.String(),
		Funders:   funders,
	})
	c.ops = append(c.ops, domain.Op{
		Kind:    opKind(kind),
		Account: account,
		Amount:  new(big.Int).Set(amount),
	})
}

// checkpoint writes a pending journal record before value leaves the ledger.
func (c *call) checkpoint() error {
	if c.journaled || c.l.journal == nil {
		return nil
	}
	if err := c.l.record(c, domain.TxPending); err != nil {
		return err
	}
	c.journaled = true
	return nil
}

func opKind(k events.Kind) domain.OpKind {
	if k == events.KindWithdrawn {
		return domain.OpWithdraw
	}
	return domain.OpFund
}
