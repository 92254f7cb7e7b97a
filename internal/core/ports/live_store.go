package ports

import (
	"context"
	"errors"

	"github.com/ark-network/raffle/internal/core/domain"
)

var ErrStaleRaffle = errors.New("stored raffle is newer than the one being written")

type LiveStore interface {
	CurrentRaffle() CurrentRaffleStore
	Close()
}

type CurrentRaffleStore interface {
	// Get returns a copy of the current raffle, or nil if none was stored.
	Get(ctx context.Context) (*domain.Raffle, error)
	// Set replaces the current raffle. It fails with ErrStaleRaffle if the
	// stored one has a higher version.
	Set(ctx context.Context, raffle *domain.Raffle) error
}
