package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxStatus is the lifecycle state of a journaled ledger call.
type TxStatus string

const (
	// TxPending is written before a withdrawal hands value to the owner.
	TxPending TxStatus = "pending"
	// TxCommitted marks a call whose effects are final.
	TxCommitted TxStatus = "committed"
	// TxReverted marks a pending call that rolled back.
	TxReverted TxStatus = "reverted"
)

// OpKind names a state change inside a journaled call.
type OpKind string

const (
	OpFund     OpKind = "fund"
	OpWithdraw OpKind = "withdraw"
)

// Op is a single applied state change. For OpFund Account is the funder, for
// OpWithdraw it is the owner that received Amount.
type Op struct {
	Kind    OpKind         `json:"kind"`
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount"`
}

// TxRecord is one top-level ledger call with every op it applied, in order.
// A call is written more than once when it passes through TxPending; the last
// record for an ID wins.
type TxRecord struct {
	ID     string    `json:"id"`
	Status TxStatus  `json:"status"`
	Time   time.Time `json:"time"`
	Ops    []Op      `json:"ops"`
}
