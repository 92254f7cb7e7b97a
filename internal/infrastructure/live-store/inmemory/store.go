package inmemorylivestore

import (
	"github.com/ark-network/raffle/internal/core/ports"
)

func NewLiveStore() ports.LiveStore {
	return &inMemoryLiveStore{
		currentRaffleStore: NewCurrentRaffleStore(),
	}
}

func (s *inMemoryLiveStore) CurrentRaffle() ports.CurrentRaffleStore {
	return s.currentRaffleStore
}

func (s *inMemoryLiveStore) Close() {}

type inMemoryLiveStore struct {
	currentRaffleStore ports.CurrentRaffleStore
}
