package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// RequireOwner returns ErrNotOwner unless caller is owner.
func RequireOwner(caller, owner common.Address) error {
	if caller != owner {
		return errors.Wrapf(ErrNotOwner, "caller %s", caller.Hex())
	}

	return nil
}
