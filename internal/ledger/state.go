package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// state is the raw ledger storage. Every mutation pushes an undo entry so a
// unit of work can be rolled back to any earlier mark.
type state struct {
	amountFunded map[common.Address]*big.Int
	funders      []common.Address
	balance      *big.Int

	undo []func()
}

func newState() *state {
	return &state{
		amountFunded: make(map[common.Address]*big.Int),
		balance:      new(big.Int),
	}
}

func (s *state) amountOf(a common.Address) *big.Int {
	if v, ok := s.amountFunded[a]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (s *state) setAmount(a common.Address, v *big.Int) {
	prev, had := s.amountFunded[a]
	s.undo = append(s.undo, func() {
		if had {
			s.amountFunded[a] = prev
		} else {
			delete(s.amountFunded, a)
		}
	})

	if v.Sign() == 0 {
		delete(s.amountFunded, a)
		return
	}
	s.amountFunded[a] = new(big.Int).Set(v)
}

func (s *state) funderCount() int {
	return len(s.funders)
}

func (s *state) funderAt(i int) (common.Address, bool) {
	if i < 0 || i >= len(s.funders) {
		return common.Address{}, false
	}
	return s.funders[i], true
}

func (s *state) funderList() []common.Address {
	return append([]common.Address(nil), s.funders...)
}

func (s *state) appendFunder(a common.Address) {
	n := len(s.funders)
	s.undo = append(s.undo, func() { s.funders = s.funders[:n] })
	s.funders = append(s.funders, a)
}

func (s *state) clearFunders() {
	prev := s.funders
	s.undo = append(s.undo, func() { s.funders = prev })
	s.funders = nil
}

func (s *state) pooled() *big.Int {
	return new(big.Int).Set(s.balance)
}

func (s *state) setPooled(v *big.Int) {
	prev := s.balance
	s.undo = append(s.undo, func() { s.balance = prev })
	s.balance = new(big.Int).Set(v)
}

func (s *state) mark() int {
	return len(s.undo)
}

func (s *state) revertTo(mark int) {
	for i := len(s.undo) - 1; i >= mark; i-- {
		s.undo[i]()
	}
	s.undo = s.undo[:mark]
}

func (s *state) commit() {
	s.undo = nil
}
