package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/internal/domain"
	"github.com/vadiminshakov/fundme/internal/events"
	"go.uber.org/zap"
)

// Receipt describes a completed withdrawal.
type Receipt struct {
	TxID string
	// Amount is the pooled balance paid to the owner.
	Amount *big.Int
	// Funders is the number of funder list entries that were reset.
	Funders int
	// StorageReads and StorageWrites count state accesses made by the
	// withdrawal itself, excluding calls nested in the payout.
	StorageReads  int
	StorageWrites int
}

// Withdraw pays the whole pooled balance to the owner and resets every
// contributor. The funder list is read from state on every iteration.
func (l *Ledger) Withdraw(ctx context.Context, caller common.Address) (Receipt, error) {
	return l.withdraw(ctx, caller, false)
}

// CheaperWithdraw is Withdraw with the funder list read once into a local
// copy. Its effects are identical; only StorageReads differs.
func (l *Ledger) CheaperWithdraw(ctx context.Context, caller common.Address) (Receipt, error) {
	return l.withdraw(ctx, caller, true)
}

func (l *Ledger) withdraw(ctx context.Context, caller common.Address, cached bool) (Receipt, error) {
	if err := RequireOwner(caller, l.owner); err != nil {
		l.l.Warn("withdraw rejected", zap.String("caller", caller.Hex()))
		return Receipt{}, err
	}

	var rcpt Receipt
	err := l.run(ctx, func(ctx context.Context, c *call) error {
		reads, writes := c.reads, c.writes
		zero := new(big.Int)

		var reset int
		if cached {
			funders := c.funders()
			for _, f := range funders {
				c.setAmount(f, zero)
			}
			reset = len(funders)
		} else {
			for i := 0; i < c.funderCount(); i++ {
				c.setAmount(c.funderAt(i), zero)
				reset++
			}
		}
		c.clearFunders()

		amount := c.pooled()
		c.setPooled(zero)
		c.emit(events.KindWithdrawn, l.owner, amount, reset)

		rcpt = Receipt{
			TxID:          c.txID,
			Amount:        amount,
			Funders:       reset,
			StorageReads:  c.reads - reads,
			StorageWrites: c.writes - writes,
		}

		if err := c.checkpoint(); err != nil {
			return err
		}

		// state is cleared before value leaves the ledger
		if amount.Sign() > 0 {
			if err := l.payee.Transfer(ctx, l.owner, amount); err != nil {
				return errors.Wrapf(ErrTransferFailed, "send %s wei to %s: %v", amount.String(), l.owner.Hex(), err)
			}
		}

		return nil
	})
	if err != nil {
		l.l.Error("withdraw failed", zap.String("owner", l.owner.Hex()), zap.Error(err))
		return Receipt{}, err
	}

	l.l.Info("withdrawn",
		zap.String("owner", l.owner.Hex()),
		zap.String("ether", domain.FormatEther(rcpt.Amount)),
		zap.Int("funders", rcpt.Funders),
		zap.Bool("cached", cached),
		zap.Int("storage_reads", rcpt.StorageReads),
	)

	return rcpt, nil
}
