package ledger_test

import (
	"context"
	"testing"

	"github.com/ark-network/raffle/internal/core/ports"
	badgerledger "github.com/ark-network/raffle/internal/infrastructure/ledger/badger"
	inmemoryledger "github.com/ark-network/raffle/internal/infrastructure/ledger/inmemory"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	bob   = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	carol = "0x90F79bf6EB2c4f870365E785982E1f101E93b906"
)

func TestLedgerImplementations(t *testing.T) {
	badgerLedger, err := badgerledger.NewLedger(t.TempDir(), nil, bob)
	require.NoError(t, err)
	inmemoryBadgerLedger, err := badgerledger.NewLedger("", nil, bob)
	require.NoError(t, err)

	ledgers := []struct {
		name   string
		ledger ports.Ledger
	}{
		{"inmemory", inmemoryledger.NewLedger(bob)},
		{"badger", badgerLedger},
		{"badger_inmemory", inmemoryBadgerLedger},
	}

	for _, tt := range ledgers {
		t.Run(tt.name, func(t *testing.T) {
			defer tt.ledger.Close()
			runLedgerTests(t, tt.ledger)
		})
	}
}

func TestBadgerLedgerReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ledger, err := badgerledger.NewLedger(dir, nil)
	require.NoError(t, err)
	require.NoError(t, ledger.Transfer(ctx, "1:1", alice, 300))
	ledger.Close()

	ledger, err = badgerledger.NewLedger(dir, nil)
	require.NoError(t, err)
	defer ledger.Close()

	balance, err := ledger.Balance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(300), balance)

	// Transfers of earlier runs are still known after a restart.
	require.NoError(t, ledger.Transfer(ctx, "1:1", alice, 300))
	err = ledger.Transfer(ctx, "1:1", carol, 100)
	require.ErrorIs(t, err, ports.ErrTransferConflict)

	require.NoError(t, ledger.Transfer(ctx, "2:1", carol, 100))

	balance, err = ledger.Balance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(300), balance)
	balance, err = ledger.Balance(ctx, carol)
	require.NoError(t, err)
	require.Equal(t, uint64(100), balance)
}

func runLedgerTests(t *testing.T, ledger ports.Ledger) {
	ctx := context.Background()

	balance, err := ledger.Balance(ctx, alice)
	require.NoError(t, err)
	require.Zero(t, balance)

	require.NoError(t, ledger.Transfer(ctx, "1", alice, 300))
	require.NoError(t, ledger.Transfer(ctx, "2", alice, 200))

	balance, err = ledger.Balance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(500), balance)

	// Repeating a transfer is a no-op.
	require.NoError(t, ledger.Transfer(ctx, "1", alice, 300))

	balance, err = ledger.Balance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(500), balance)

	err = ledger.Transfer(ctx, "1", alice, 700)
	require.ErrorIs(t, err, ports.ErrTransferConflict)
	err = ledger.Transfer(ctx, "2", carol, 200)
	require.ErrorIs(t, err, ports.ErrTransferConflict)

	balance, err = ledger.Balance(ctx, carol)
	require.NoError(t, err)
	require.Zero(t, balance)

	err = ledger.Transfer(ctx, "3", bob, 100)
	require.Error(t, err)

	balance, err = ledger.Balance(ctx, bob)
	require.NoError(t, err)
	require.Zero(t, balance)
}
