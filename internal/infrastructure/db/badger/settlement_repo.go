package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const settlementStoreDir = "settlements"

type settlementRepository struct {
	store *badgerhold.Store
}

func NewSettlementRepository(config ...interface{}) (domain.SettlementRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, settlementStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open settlement store: %s", err)
	}

	return &settlementRepository{store}, nil
}

func (r *settlementRepository) AddSettlement(
	ctx context.Context, settlement domain.Settlement,
) error {
	err := r.store.Upsert(settlement.Round, settlement)
	attempts := 1
	for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
		time.Sleep(100 * time.Millisecond)
		err = r.store.Upsert(settlement.Round, settlement)
		attempts++
	}
	if err != nil {
		return fmt.Errorf("failed to add settlement of round %d: %w", settlement.Round, err)
	}
	return nil
}

func (r *settlementRepository) GetSettlement(
	ctx context.Context, round uint64,
) (*domain.Settlement, error) {
	var settlement domain.Settlement
	err := r.store.Get(round, &settlement)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, domain.ErrSettlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement of round %d: %w", round, err)
	}
	return &settlement, nil
}

func (r *settlementRepository) ListSettlements(
	ctx context.Context, limit int,
) ([]domain.Settlement, error) {
	query := badgerhold.Where("Round").Gt(uint64(0)).SortBy("Round").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var settlements []domain.Settlement
	if err := r.store.Find(&settlements, query); err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return settlements, nil
}

func (r *settlementRepository) Close() {
	//nolint:errcheck
	r.store.Close()
}
