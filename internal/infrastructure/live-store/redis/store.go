package redislivestore

import (
	"github.com/redis/go-redis/v9"

	"github.com/ark-network/raffle/internal/core/ports"
)

func NewLiveStore(rdb *redis.Client, numOfRetries int) ports.LiveStore {
	return &redisLiveStore{
		rdb:                rdb,
		currentRaffleStore: NewCurrentRaffleStore(rdb, numOfRetries),
	}
}

func (s *redisLiveStore) CurrentRaffle() ports.CurrentRaffleStore {
	return s.currentRaffleStore
}

func (s *redisLiveStore) Close() {
	//nolint:errcheck
	s.rdb.Close()
}

type redisLiveStore struct {
	rdb                *redis.Client
	currentRaffleStore ports.CurrentRaffleStore
}
