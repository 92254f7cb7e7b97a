package domain

import "context"

type SettlementRepository interface {
	AddSettlement(ctx context.Context, settlement Settlement) error
	GetSettlement(ctx context.Context, round uint64) (*Settlement, error)
	// ListSettlements returns the most recent settlements first. A
	// non-positive limit returns all of them.
	ListSettlements(ctx context.Context, limit int) ([]Settlement, error)
	Close()
}
