package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/fundme/internal/domain"
	"github.com/vadiminshakov/fundme/internal/events"
	"github.com/vadiminshakov/fundme/internal/oracle"
	"go.uber.org/zap"
)

var (
	owner    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	attacker = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

// account returns a deterministic test identity.
func account(i int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + i)))
}

// mockPayee records payouts. hook runs inside Transfer with the payout context.
type mockPayee struct {
	mu        sync.Mutex
	transfers []*big.Int
	err       error
	hook      func(ctx context.Context)
}

func (p *mockPayee) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	if p.hook != nil {
		p.hook(ctx)
	}
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if to != owner {
		return errors.New("unexpected recipient")
	}
	p.transfers = append(p.transfers, new(big.Int).Set(amount))
	return nil
}

func (p *mockPayee) total() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	sum := new(big.Int)
	for _, t := range p.transfers {
		sum.Add(sum, t)
	}
	return sum
}

// memJournal keeps records in memory and fails the writes selected by failOn.
type memJournal struct {
	records []domain.TxRecord
	failOn  map[domain.TxStatus]bool
}

func (j *memJournal) Append(rec domain.TxRecord) error {
	if j.failOn[rec.Status] {
		return errors.New("disk full")
	}
	j.records = append(j.records, rec)
	return nil
}

func (j *memJournal) Records() ([]domain.TxRecord, error) {
	return j.records, nil
}

type capturePublisher struct {
	events []events.Event
}

func (c *capturePublisher) Publish(e events.Event) {
	c.events = append(c.events, e)
}

type fixture struct {
	ledger *Ledger
	oracle *oracle.Mock
	payee  *mockPayee
	pub    *capturePublisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		oracle: oracle.NewMock(oracle.DefaultMockDecimals, oracle.DefaultMockAnswer),
		payee:  &mockPayee{},
		pub:    &capturePublisher{},
	}
	opts = append([]Option{WithLogger(zap.NewNop()), WithPublisher(f.pub)}, opts...)
	l, err := New(f.oracle, owner, f.payee, opts...)
	require.NoError(t, err)
	f.ledger = l
	return f
}

// snapshot is the observable ledger state.
type snapshot struct {
	Balance string
	Funders []common.Address
	Amounts map[common.Address]string
}

func takeSnapshot(l *Ledger, known ...common.Address) snapshot {
	ctx := context.Background()
	s := snapshot{
		Balance: l.Balance(ctx).String(),
		Funders: l.Funders(ctx),
		Amounts: make(map[common.Address]string),
	}
	for _, a := range append(known, s.Funders...) {
		s.Amounts[a] = l.AmountFunded(ctx, a).String()
	}
	return s
}

func sumFunded(l *Ledger, accounts ...common.Address) *big.Int {
	sum := new(big.Int)
	seen := make(map[common.Address]bool)
	for _, a := range accounts {
		if seen[a] {
			continue
		}
		seen[a] = true
		sum.Add(sum, l.AmountFunded(context.Background(), a))
	}
	return sum
}

func mustEther(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := domain.ParseEther(s)
	require.NoError(t, err)
	return v
}
