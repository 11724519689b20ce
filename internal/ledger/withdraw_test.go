package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/fundme/internal/domain"
	"github.com/vadiminshakov/fundme/internal/events"
)

type withdrawFunc func(l *Ledger, ctx context.Context, caller common.Address) (Receipt, error)

var withdrawVariants = []struct {
	name string
	fn   withdrawFunc
}{
	{"withdraw", (*Ledger).Withdraw},
	{"cheaperWithdraw", (*Ledger).CheaperWithdraw},
}

func fundSix(t *testing.T, l *Ledger) []common.Address {
	t.Helper()
	accounts := make([]common.Address, 0, 6)
	for i := 0; i < 6; i++ {
		a := account(i)
		if i == 0 {
			a = owner
		}
		require.NoError(t, l.Fund(context.Background(), a, domain.Ether(1)))
		accounts = append(accounts, a)
	}
	return accounts
}

func TestWithdraw_SingleFunder(t *testing.T) {
	for _, v := range withdrawVariants {
		t.Run(v.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.ledger.Fund(ctx, owner, domain.Ether(1)))

			rcpt, err := v.fn(f.ledger, ctx, owner)
			require.NoError(t, err)
			assert.Equal(t, domain.Ether(1), rcpt.Amount)
			assert.Equal(t, 1, rcpt.Funders)
			assert.NotEmpty(t, rcpt.TxID)

			assert.Equal(t, "0", f.ledger.Balance(ctx).String())
			assert.Equal(t, domain.Ether(1), f.payee.total())
		})
	}
}

func TestWithdraw_MultipleFunders(t *testing.T) {
	for _, v := range withdrawVariants {
		t.Run(v.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			accounts := fundSix(t, f.ledger)
			require.Equal(t, domain.Ether(6), f.ledger.Balance(ctx))

			_, err := v.fn(f.ledger, ctx, owner)
			require.NoError(t, err)

			assert.Equal(t, "0", f.ledger.Balance(ctx).String())
			assert.Equal(t, domain.Ether(6), f.payee.total())
			assert.Equal(t, 0, f.ledger.FunderCount(ctx))
			_, err = f.ledger.Funder(ctx, 0)
			assert.ErrorIs(t, err, ErrIndexOutOfRange)
			for _, a := range accounts {
				assert.Equal(t, "0", f.ledger.AmountFunded(ctx, a).String(), a.Hex())
			}
		})
	}
}

func TestWithdraw_OnlyOwner(t *testing.T) {
	for _, v := range withdrawVariants {
		t.Run(v.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			accounts := fundSix(t, f.ledger)
			before := takeSnapshot(f.ledger, accounts...)
			published := len(f.pub.events)

			_, err := v.fn(f.ledger, ctx, attacker)
			require.ErrorIs(t, err, ErrNotOwner)

			assert.Equal(t, before, takeSnapshot(f.ledger, accounts...))
			assert.Empty(t, f.payee.transfers)
			assert.Len(t, f.pub.events, published)
		})
	}
}

func TestWithdraw_TransferFailureRollsBack(t *testing.T) {
	for _, v := range withdrawVariants {
		t.Run(v.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			accounts := fundSix(t, f.ledger)
			before := takeSnapshot(f.ledger, accounts...)
			published := len(f.pub.events)

			f.payee.err = errors.New("recipient rejects value")
			_, err := v.fn(f.ledger, ctx, owner)
			require.ErrorIs(t, err, ErrTransferFailed)
			assert.Contains(t, err.Error(), "recipient rejects value")

			assert.Equal(t, before, takeSnapshot(f.ledger, accounts...))
			assert.Len(t, f.pub.events, published)

			// the ledger keeps working after the rollback
			f.payee.err = nil
			rcpt, err := v.fn(f.ledger, ctx, owner)
			require.NoError(t, err)
			assert.Equal(t, domain.Ether(6), rcpt.Amount)
		})
	}
}

func TestWithdraw_EmptyLedger(t *testing.T) {
	for _, v := range withdrawVariants {
		t.Run(v.name, func(t *testing.T) {
			f := newFixture(t)

			rcpt, err := v.fn(f.ledger, context.Background(), owner)
			require.NoError(t, err)
			assert.Equal(t, "0", rcpt.Amount.String())
			assert.Zero(t, rcpt.Funders)
			assert.Empty(t, f.payee.transfers)
		})
	}
}

func TestWithdraw_StateIsClearedBeforePayout(t *testing.T) {
	for _, v := range withdrawVariants {
		t.Run(v.name, func(t *testing.T) {
			f := newFixture(t)
			accounts := fundSix(t, f.ledger)

			var seen snapshot
			f.payee.hook = func(ctx context.Context) {
				seen = snapshot{
					Balance: f.ledger.Balance(ctx).String(),
					Funders: f.ledger.Funders(ctx),
					Amounts: map[common.Address]string{},
				}
				for _, a := range accounts {
					seen.Amounts[a] = f.ledger.AmountFunded(ctx, a).String()
				}
			}

			_, err := v.fn(f.ledger, context.Background(), owner)
			require.NoError(t, err)

			assert.Equal(t, "0", seen.Balance)
			assert.Empty(t, seen.Funders)
			for _, a := range accounts {
				assert.Equal(t, "0", seen.Amounts[a])
			}
		})
	}
}

func TestWithdraw_ReentrantWithdrawCannotDoubleSpend(t *testing.T) {
	for _, v := range withdrawVariants {
		t.Run(v.name, func(t *testing.T) {
			f := newFixture(t)
			fundSix(t, f.ledger)

			var nested []Receipt
			f.payee.hook = func(ctx context.Context) {
				if len(nested) > 2 {
					return
				}
				rcpt, err := v.fn(f.ledger, ctx, owner)
				require.NoError(t, err)
				nested = append(nested, rcpt)
			}

			rcpt, err := v.fn(f.ledger, context.Background(), owner)
			require.NoError(t, err)
			assert.Equal(t, domain.Ether(6), rcpt.Amount)

			require.Len(t, nested, 1, "nested withdraw has nothing to pay, so it does not re-enter")
			assert.Equal(t, "0", nested[0].Amount.String())
			assert.Equal(t, domain.Ether(6), f.payee.total())
			assert.Equal(t, []*big.Int{domain.Ether(6)}, f.payee.transfers)
		})
	}
}

func TestWithdraw_NestedFundRolledBackWithFailedPayout(t *testing.T) {
	for _, v := range withdrawVariants {
		t.Run(v.name, func(t *testing.T) {
			f := newFixture(t)
			accounts := fundSix(t, f.ledger)
			before := takeSnapshot(f.ledger, append(accounts, attacker)...)
			published := len(f.pub.events)

			f.payee.err = errors.New("out of gas")
			f.payee.hook = func(ctx context.Context) {
				require.NoError(t, f.ledger.Fund(ctx, attacker, domain.Ether(3)))
				assert.Equal(t, domain.Ether(3), f.ledger.Balance(ctx))
			}

			_, err := v.fn(f.ledger, context.Background(), owner)
			require.ErrorIs(t, err, ErrTransferFailed)

			assert.Equal(t, before, takeSnapshot(f.ledger, append(accounts, attacker)...))
			assert.Len(t, f.pub.events, published)
		})
	}
}

func TestWithdraw_NestedFundSurvivesSuccessfulPayout(t *testing.T) {
	for _, v := range withdrawVariants {
		t.Run(v.name, func(t *testing.T) {
			f := newFixture(t)
			fundSix(t, f.ledger)
			published := len(f.pub.events)

			f.payee.hook = func(ctx context.Context) {
				require.NoError(t, f.ledger.Fund(ctx, attacker, domain.Ether(3)))
				// a failing nested call only undoes itself
				assert.ErrorIs(t, f.ledger.Fund(ctx, attacker, big.NewInt(1)), ErrInsufficientContribution)
			}

			_, err := v.fn(f.ledger, context.Background(), owner)
			require.NoError(t, err)

			ctx := context.Background()
			assert.Equal(t, domain.Ether(3), f.ledger.Balance(ctx))
			assert.Equal(t, []common.Address{attacker}, f.ledger.Funders(ctx))
			assert.Equal(t, domain.Ether(3), f.ledger.AmountFunded(ctx, attacker))

			require.Len(t, f.pub.events, published+2)
			assert.Equal(t, events.KindWithdrawn, f.pub.events[published].Kind)
			assert.Equal(t, 6, f.pub.events[published].Funders)
			assert.Equal(t, events.KindFunded, f.pub.events[published+1].Kind)
		})
	}
}

func TestWithdraw_OutsideReadersWaitForCompletion(t *testing.T) {
	f := newFixture(t)
	fundSix(t, f.ledger)

	got := make(chan string, 1)
	f.payee.hook = func(context.Context) {
		go func() { got <- f.ledger.Balance(context.Background()).String() }()
		time.Sleep(20 * time.Millisecond)
		select {
		case v := <-got:
			t.Errorf("outside reader observed %s during the payout", v)
		default:
		}
	}

	_, err := f.ledger.Withdraw(context.Background(), owner)
	require.NoError(t, err)

	select {
	case v := <-got:
		assert.Equal(t, "0", v)
	case <-time.After(time.Second):
		t.Fatal("outside reader did not complete")
	}
}

func TestWithdraw_VariantsAreEquivalent(t *testing.T) {
	scenarios := []struct {
		name  string
		funds []int // account index per fund call, -1 for the owner
		fail  bool
	}{
		{"no funders", nil, false},
		{"single funder", []int{1}, false},
		{"six distinct", []int{-1, 1, 2, 3, 4, 5}, false},
		{"repeated funders", []int{1, 1, 2, 1, 3, 2}, false},
		{"payout fails", []int{1, 2, 2}, true},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			type outcome struct {
				Err     string
				Amount  string
				Funders int
				Writes  int
				State   snapshot
				Events  []events.Kind
				Paid    string
			}

			run := func(fn withdrawFunc) (outcome, Receipt) {
				f := newFixture(t)
				ctx := context.Background()
				var known []common.Address
				for _, idx := range sc.funds {
					a := owner
					if idx >= 0 {
						a = account(idx)
					}
					require.NoError(t, f.ledger.Fund(ctx, a, domain.Ether(int64(idx+2))))
					known = append(known, a)
				}
				if sc.fail {
					f.payee.err = errors.New("rejected")
				}

				rcpt, err := fn(f.ledger, ctx, owner)
				o := outcome{
					Funders: rcpt.Funders,
					Writes:  rcpt.StorageWrites,
					State:   takeSnapshot(f.ledger, known...),
					Paid:    f.payee.total().String(),
				}
				if err != nil {
					o.Err = err.Error()
					assert.ErrorIs(t, err, ErrTransferFailed)
				}
				if rcpt.Amount != nil {
					o.Amount = rcpt.Amount.String()
				}
				for _, e := range f.pub.events {
					o.Events = append(o.Events, e.Kind)
				}
				return o, rcpt
			}

			standard, sr := run((*Ledger).Withdraw)
			cheaper, cr := run((*Ledger).CheaperWithdraw)

			if sc.fail {
				require.NotEmpty(t, standard.Err)
			}
			assert.Equal(t, standard, cheaper)
			assert.LessOrEqual(t, cr.StorageReads, sr.StorageReads)
		})
	}
}

func TestCheaperWithdraw_ReadsFunderListOnce(t *testing.T) {
	standard := newFixture(t)
	cheaper := newFixture(t)
	fundSix(t, standard.ledger)
	fundSix(t, cheaper.ledger)

	sr, err := standard.ledger.Withdraw(context.Background(), owner)
	require.NoError(t, err)
	cr, err := cheaper.ledger.CheaperWithdraw(context.Background(), owner)
	require.NoError(t, err)

	// length and element per iteration plus the final length check and the pool read
	assert.Equal(t, 2*6+2, sr.StorageReads)
	// one list read and the pool read
	assert.Equal(t, 2, cr.StorageReads)
	assert.Equal(t, sr.StorageWrites, cr.StorageWrites)
	assert.Equal(t, 6+2, cr.StorageWrites)
}

func TestWithdraw_LeakedPayoutContextActsAsOutsideCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Fund(ctx, account(1), domain.Ether(1)))

	var leaked context.Context
	f.payee.hook = func(ctx context.Context) { leaked = ctx }
	_, err := f.ledger.Withdraw(ctx, owner)
	require.NoError(t, err)
	f.payee.hook = nil
	require.NotNil(t, leaked)

	done := make(chan error, 1)
	go func() {
		done <- f.ledger.Fund(leaked, account(2), domain.Ether(1))
	}()
	require.NoError(t, <-done)

	assert.Equal(t, domain.Ether(1), f.ledger.Balance(leaked))
	assert.Equal(t, 1, f.ledger.FunderCount(ctx))
	assert.Equal(t, domain.Ether(1), f.ledger.AmountFunded(ctx, account(2)))
}
