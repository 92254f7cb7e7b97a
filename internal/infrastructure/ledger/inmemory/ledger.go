package inmemoryledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ark-network/raffle/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

type transfer struct {
	to     string
	amount uint64
}

type ledger struct {
	lock      *sync.RWMutex
	balances  map[string]uint64
	transfers map[string]transfer
	rejecting map[string]struct{}
}

// NewLedger returns a ledger that keeps balances in memory. Transfers to any
// of the rejecting accounts fail.
func NewLedger(rejectingAccounts ...string) ports.Ledger {
	rejecting := make(map[string]struct{})
	for _, account := range rejectingAccounts {
		rejecting[account] = struct{}{}
	}
	return &ledger{
		lock:      &sync.RWMutex{},
		balances:  make(map[string]uint64),
		transfers: make(map[string]transfer),
		rejecting: rejecting,
	}
}

func (l *ledger) Transfer(_ context.Context, ref, to string, amount uint64) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if t, ok := l.transfers[ref]; ok {
		if t.to != to || t.amount != amount {
			return fmt.Errorf(
				"%w: %s paid %d to %s", ports.ErrTransferConflict, ref, t.amount, t.to,
			)
		}
		log.Debugf("ledger: transfer %s already executed", ref)
		return nil
	}
	if _, ok := l.rejecting[to]; ok {
		return fmt.Errorf("account %s rejected transfer %s", to, ref)
	}

	l.balances[to] += amount
	l.transfers[ref] = transfer{to, amount}
	return nil
}

func (l *ledger) Balance(_ context.Context, account string) (uint64, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.balances[account], nil
}

func (l *ledger) Close() {}
