package ports

import (
	"context"
	"errors"
)

// ErrTransferConflict is returned when a reference is reused for a transfer
// with a different recipient or amount.
var ErrTransferConflict = errors.New("transfer reference already used")

type Ledger interface {
	// Transfer moves amount to the given account. Transfers are idempotent
	// on ref: repeating one that already succeeded is a no-op, reusing the ref
	// for another payout fails with ErrTransferConflict.
	Transfer(ctx context.Context, ref, to string, amount uint64) error
	Balance(ctx context.Context, account string) (uint64, error)
	Close()
}
