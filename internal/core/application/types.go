package application

import (
	"context"
	"math/big"

	"github.com/ark-network/raffle/internal/core/domain"
)

type Service interface {
	Start() error
	Stop()

	Enter(ctx context.Context, participant string, amount uint64) (int, error)
	IsReadyToSettle(ctx context.Context, checkData []byte) (bool, []byte)
	InitiateSettlement(ctx context.Context, performData []byte) error
	FulfillSettlement(ctx context.Context, requestId string, randomValues []*big.Int) error
	ReopenStalledSettlement(ctx context.Context) error
	FulfillPendingRequest(ctx context.Context, requestId string) error

	GetState(ctx context.Context) (domain.RaffleState, error)
	GetParticipantCount(ctx context.Context) (int, error)
	GetParticipant(ctx context.Context, index int) (string, error)
	GetParticipants(ctx context.Context) ([]string, error)
	GetEntranceFee(ctx context.Context) uint64
	GetSettlementInterval(ctx context.Context) int64
	GetLastWinner(ctx context.Context) (string, error)
	GetPooledBalance(ctx context.Context) (uint64, error)
	GetRoundOpenedAt(ctx context.Context) (int64, error)
	GetInfo(ctx context.Context) (*RaffleInfo, error)

	GetSettlement(ctx context.Context, round uint64) (*domain.Settlement, error)
	ListSettlements(ctx context.Context, limit int) ([]domain.Settlement, error)
	GetBalance(ctx context.Context, account string) (uint64, error)
	SubscribeEvents(ctx context.Context) (<-chan domain.Event, error)
}

type RaffleInfo struct {
	Round               uint64
	State               domain.RaffleState
	EntranceFee         uint64
	SettlementInterval  int64
	OverpaymentPolicy   string
	Participants        int
	PooledBalance       uint64
	RoundOpenedAt       int64
	PendingRequestId    string
	SettlementStartedAt int64
	LastWinner          string
	LastSettledAt       int64
	ReadyToSettle       bool
}
