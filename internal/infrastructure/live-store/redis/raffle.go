package redislivestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

const currentRaffleKey = "currentRaffleStore:raffle"

type currentRaffleStore struct {
	rdb          *redis.Client
	numOfRetries int
}

func NewCurrentRaffleStore(rdb *redis.Client, numOfRetries int) ports.CurrentRaffleStore {
	if numOfRetries <= 0 {
		numOfRetries = 1
	}
	return &currentRaffleStore{rdb: rdb, numOfRetries: numOfRetries}
}

func (s *currentRaffleStore) Get(ctx context.Context) (*domain.Raffle, error) {
	data, err := s.rdb.Get(ctx, currentRaffleKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current raffle: %w", err)
	}
	return decodeRaffle(data)
}

func (s *currentRaffleStore) Set(ctx context.Context, raffle *domain.Raffle) error {
	val, err := json.Marshal(raffle)
	if err != nil {
		return fmt.Errorf("failed to encode raffle: %w", err)
	}

	for attempt := 0; attempt < s.numOfRetries; attempt++ {
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, currentRaffleKey).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if err == nil {
				stored, err := decodeRaffle(data)
				if err != nil {
					return err
				}
				if stored.Version > raffle.Version {
					return ports.ErrStaleRaffle
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, currentRaffleKey, val, 0)
				return nil
			})
			return err
		}, currentRaffleKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}
	return err
}

func decodeRaffle(data []byte) (*domain.Raffle, error) {
	raffle := &domain.Raffle{}
	if err := json.Unmarshal(data, raffle); err != nil {
		return nil, fmt.Errorf("failed to decode raffle: %w", err)
	}
	return raffle, nil
}
