package inmemorylivestore

import (
	"context"
	"sync"

	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
)

type currentRaffleStore struct {
	lock   sync.RWMutex
	raffle *domain.Raffle
}

func NewCurrentRaffleStore() ports.CurrentRaffleStore {
	return &currentRaffleStore{}
}

func (s *currentRaffleStore) Get(_ context.Context) (*domain.Raffle, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.raffle == nil {
		return nil, nil
	}
	return s.raffle.Clone(), nil
}

func (s *currentRaffleStore) Set(_ context.Context, raffle *domain.Raffle) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.raffle != nil && s.raffle.Version > raffle.Version {
		return ports.ErrStaleRaffle
	}
	s.raffle = raffle.Clone()
	return nil
}
