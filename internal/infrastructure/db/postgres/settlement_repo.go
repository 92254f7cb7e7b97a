package pgdb

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
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (round) DO UPDATE SET
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
FROM settlement WHERE round = $1
`
	selectSettlements = `
SELECT round, request_id, winner, winner_index, prize, random_value,
    participants, started_at, settled_at
FROM settlement ORDER BY round DESC
`
	selectSettlementsWithLimit = selectSettlements + "LIMIT $1"
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
	var s dbSettlement
	err := r.db.QueryRowContext(ctx, selectSettlement, int64(round)).Scan(s.fields()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSettlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement of round %d: %w", round, err)
	}
	settlement := s.toDomain()
	return &settlement, nil
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
		var s dbSettlement
		if err := rows.Scan(s.fields()...); err != nil {
			return nil, fmt.Errorf("failed to list settlements: %w", err)
		}
		settlements = append(settlements, s.toDomain())
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

type dbSettlement struct {
	round        int64
	requestId    string
	winner       string
	winnerIndex  int
	prize        int64
	randomValue  string
	participants int
	startedAt    int64
	settledAt    int64
}

func (s *dbSettlement) fields() []any {
	return []any{
		&s.round, &s.requestId, &s.winner, &s.winnerIndex, &s.prize,
		&s.randomValue, &s.participants, &s.startedAt, &s.settledAt,
	}
}

func (s dbSettlement) toDomain() domain.Settlement {
	return domain.Settlement{
		Round:        uint64(s.round),
		RequestId:    s.requestId,
		Winner:       s.winner,
		WinnerIndex:  s.winnerIndex,
		Prize:        uint64(s.prize),
		RandomValue:  s.randomValue,
		Participants: s.participants,
		StartedAt:    s.startedAt,
		SettledAt:    s.settledAt,
	}
}
