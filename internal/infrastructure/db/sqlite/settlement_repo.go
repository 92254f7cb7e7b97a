package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ark-network/raffle/internal/core/domain"
)

const (
	upsertSettlement = `
INSERT INTO settlement (
    round, request_id, winner, winner_index, prize, random_value,
    participants, started_at, settled_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(round) DO UPDATE SET
    request_id = EXCLUDED.request_id,
    winner = EXCLUDED.winner,
    winner_index = EXCLUDED.winner_index,
    prize = EXCLUDED.prize,
    random_value = EXCLUDED.random_value,
    participants = EXCLUDED.participants,
    started_at = EXCLUDED.started_at,
    settled_at = EXCLUDED.settled_at
`
	selectSettlement = `
SELECT round, request_id, winner, winner_index, prize, random_value,
    participants, started_at, settled_at
FROM settlement WHERE round = ?
`
	selectSettlements = `
SELECT round, request_id, winner, winner_index, prize, random_value,
    participants, started_at, settled_at
FROM settlement ORDER BY round DESC
`
	selectSettlementsWithLimit = selectSettlements + "LIMIT ?"
)

type settlementRepository struct {
	db *sql.DB
}

func NewSettlementRepository(config ...interface{}) (domain.SettlementRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open settlement repository: invalid config, expected db at 0")
	}

	return &settlementRepository{db}, nil
}

func (r *settlementRepository) AddSettlement(
	ctx context.Context, settlement domain.Settlement,
) error {
	txBody := func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx, upsertSettlement,
			int64(settlement.Round),
			settlement.RequestId,
			settlement.Winner,
			settlement.WinnerIndex,
			int64(settlement.Prize),
			settlement.RandomValue,
			settlement.Participants,
			settlement.StartedAt,
			settlement.SettledAt,
		)
		return err
	}

	if err := execTx(ctx, r.db, txBody); err != nil {
		return fmt.Errorf("failed to add settlement of round %d: %w", settlement.Round, err)
	}
	return nil
}

func (r *settlementRepository) GetSettlement(
	ctx context.Context, round uint64,
) (*domain.Settlement, error) {
	row := r.db.QueryRowContext(ctx, selectSettlement, int64(round))
	settlement, err := scanSettlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSettlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement of round %d: %w", round, err)
	}
	return settlement, nil
}

func (r *settlementRepository) ListSettlements(
	ctx context.Context, limit int,
) ([]domain.Settlement, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, selectSettlementsWithLimit, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, selectSettlements)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	settlements := make([]domain.Settlement, 0)
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list settlements: %w", err)
		}
		settlements = append(settlements, *settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return settlements, nil
}

func (r *settlementRepository) Close() {
	//nolint:errcheck
	r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row scanner) (*domain.Settlement, error) {
	var round, prize int64
	settlement := domain.Settlement{}
	if err := row.Scan(
		&round,
		&settlement.RequestId,
		&settlement.Winner,
		&settlement.WinnerIndex,
		&prize,
		&settlement.RandomValue,
		&settlement.Participants,
		&settlement.StartedAt,
		&settlement.SettledAt,
	); err != nil {
		return nil, err
	}
	settlement.Round = uint64(round)
	settlement.Prize = uint64(prize)
	return &settlement, nil
}
