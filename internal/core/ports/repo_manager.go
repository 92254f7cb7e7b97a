package ports

import "github.com/ark-network/raffle/internal/core/domain"

type RepoManager interface {
	Events() domain.EventRepository
	Settlements() domain.SettlementRepository
	Close()
}
