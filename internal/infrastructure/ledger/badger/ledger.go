package badgerledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ark-network/raffle/internal/core/ports"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/timshannon/badgerhold/v4"
)

const (
	ledgerStoreDir = "ledger"
	maxRetries     = 5
)

type balanceDTO struct {
	Account string
	Amount  uint64
}

type transferDTO struct {
	Ref       string
	To        string
	Amount    uint64
	Timestamp int64
}

type ledger struct {
	store     *badgerhold.Store
	rejecting map[string]struct{}
}

// NewLedger returns a ledger persisted in badger under baseDir, or in memory
// if baseDir is empty.
func NewLedger(
	baseDir string, logger badger.Logger, rejectingAccounts ...string,
) (ports.Ledger, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, ledgerStoreDir)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = logger
	if len(dir) <= 0 {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	store, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %s", err)
	}

	rejecting := make(map[string]struct{})
	for _, account := range rejectingAccounts {
		rejecting[account] = struct{}{}
	}
	return &ledger{store, rejecting}, nil
}

func (l *ledger) Transfer(_ context.Context, ref, to string, amount uint64) error {
	if _, ok := l.rejecting[to]; ok {
		return fmt.Errorf("account %s rejected transfer %s", to, ref)
	}

	err := l.transfer(ref, to, amount)
	attempts := 1
	for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
		time.Sleep(100 * time.Millisecond)
		err = l.transfer(ref, to, amount)
		attempts++
	}
	return err
}

func (l *ledger) Balance(_ context.Context, account string) (uint64, error) {
	balance := balanceDTO{}
	if err := l.store.Get(account, &balance); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance of %s: %s", account, err)
	}
	return balance.Amount, nil
}

func (l *ledger) Close() {
	//nolint:errcheck
	l.store.Close()
}

func (l *ledger) transfer(ref, to string, amount uint64) error {
	return l.store.Badger().Update(func(tx *badger.Txn) error {
		transfer := transferDTO{}
		err := l.store.TxGet(tx, ref, &transfer)
		if err == nil {
			if transfer.To != to || transfer.Amount != amount {
				return fmt.Errorf(
					"%w: %s paid %d to %s", ports.ErrTransferConflict, ref, transfer.Amount, transfer.To,
				)
			}
			return nil
		}
		if !errors.Is(err, badgerhold.ErrNotFound) {
			return err
		}

		balance := balanceDTO{Account: to}
		if err := l.store.TxGet(tx, to, &balance); err != nil &&
			!errors.Is(err, badgerhold.ErrNotFound) {
			return err
		}
		balance.Amount += amount

		if err := l.store.TxUpsert(tx, to, balance); err != nil {
			return err
		}
		return l.store.TxInsert(tx, ref, transferDTO{
			Ref:       ref,
			To:        to,
			Amount:    amount,
			Timestamp: time.Now().Unix(),
		})
	})
}
