package ledger

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/internal/domain"
	"go.uber.org/zap"
)

// Restore rebuilds state from the journal and returns the number of applied
// calls. Calls whose last record is committed are applied. A call left pending
// is a withdrawal whose payout may have happened, so it is applied as paid;
// pending calls without a withdrawal are skipped. Restore must run before the
// ledger is used.
func (l *Ledger) Restore() (int, error) {
	if l.journal == nil {
		return 0, nil
	}

	records, err := l.journal.Records()
	if err != nil {
		return 0, errors.Wrap(err, "read journal")
	}

	order := make([]string, 0, len(records))
	last := make(map[string]domain.TxRecord, len(records))
	for _, rec := range records {
		if _, seen := last[rec.ID]; !seen {
			order = append(order, rec.ID)
		}
		last[rec.ID] = rec
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	applied := 0
	for _, id := range order {
		rec := last[id]
		switch rec.Status {
		case domain.TxCommitted:
			if err := l.apply(rec); err != nil {
				l.st.revertTo(0)
				return 0, err
			}
			applied++
		case domain.TxPending:
			if !hasWithdrawal(rec) {
				l.l.Warn("skipping call left pending in journal", zap.String("tx", id), zap.Int("ops", len(rec.Ops)))
				continue
			}
			l.l.Warn("applying withdrawal left pending in journal as paid", zap.String("tx", id))
			if err := l.apply(rec); err != nil {
				l.st.revertTo(0)
				return 0, err
			}
			applied++
		}
	}
	l.st.commit()

	return applied, nil
}

func (l *Ledger) apply(rec domain.TxRecord) error {
	st := l.st
	for _, op := range rec.Ops {
		if op.Amount == nil || op.Amount.Sign() < 0 {
			return errors.Errorf("tx %s: invalid %s amount %v", rec.ID, op.Kind, op.Amount)
		}

		switch op.Kind {
		case domain.OpFund:
			st.setAmount(op.Account, new(big.Int).Add(st.amountOf(op.Account), op.Amount))
			st.appendFunder(op.Account)
			st.setPooled(new(big.Int).Add(st.pooled(), op.Amount))
		case domain.OpWithdraw:
			if st.pooled().Cmp(op.Amount) != 0 {
				l.l.Warn("journaled withdrawal does not match pooled balance",
					zap.String("tx", rec.ID), zap.String("journaled", op.Amount.String()), zap.String("pooled", st.pooled().String()))
			}
			for _, f := range st.funderList() {
				st.setAmount(f, new(big.Int))
			}
			st.clearFunders()
			st.setPooled(new(big.Int))
		default:
			return errors.Errorf("tx %s: unknown op %q", rec.ID, op.Kind)
		}
	}
	return nil
}

func hasWithdrawal(rec domain.TxRecord) bool {
	for _, op := range rec.Ops {
		if op.Kind == domain.OpWithdraw {
			return true
		}
	}
	return false
}
