package ledger

import (
	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/internal/oracle"
)

var (
	// ErrInsufficientContribution is returned when the stable value of a
	// contribution is below the ledger minimum. The caller may resubmit more.
	ErrInsufficientContribution = errors.New("fundme: insufficient contribution")
	// ErrNotOwner is returned when a withdrawal is attempted by anyone but the owner.
	ErrNotOwner = errors.New("fundme: caller is not the owner")
	// ErrTransferFailed is returned when the pooled balance could not be paid out.
	ErrTransferFailed = errors.New("fundme: transfer failed")
	// ErrIndexOutOfRange is returned for funder list positions past the end.
	ErrIndexOutOfRange = errors.New("fundme: funder index out of range")
	// ErrZeroValue is returned when fund is called without attached value.
	ErrZeroValue = errors.New("fundme: attached value must be positive")
	// ErrJournal is returned when a call could not be persisted.
	ErrJournal = errors.New("fundme: journal write failed")

	ErrOracleUnavailable = oracle.ErrOracleUnavailable
	ErrInvalidRate       = oracle.ErrInvalidRate
)
