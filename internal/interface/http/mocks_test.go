package httpservice_test

import (
	"context"
	"math/big"

	"github.com/ark-network/raffle/internal/core/application"
	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

type mockedService struct {
	mock.Mock
}

func (m *mockedService) Start() error { return nil }
func (m *mockedService) Stop()        {}

func (m *mockedService) Enter(
	ctx context.Context, participant string, amount uint64,
) (int, error) {
	args := m.Called(ctx, participant, amount)
	return args.Int(0), args.Error(1)
}

func (m *mockedService) IsReadyToSettle(
	ctx context.Context, checkData []byte,
) (bool, []byte) {
	args := m.Called(ctx, checkData)

	var res []byte
	if a := args.Get(1); a != nil {
		res = a.([]byte)
	}
	return args.Bool(0), res
}

func (m *mockedService) InitiateSettlement(ctx context.Context, performData []byte) error {
	args := m.Called(ctx, performData)
	return args.Error(0)
}

func (m *mockedService) FulfillSettlement(
	ctx context.Context, requestId string, randomValues []*big.Int,
) error {
	args := m.Called(ctx, requestId, randomValues)
	return args.Error(0)
}

func (m *mockedService) ReopenStalledSettlement(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockedService) FulfillPendingRequest(ctx context.Context, requestId string) error {
	args := m.Called(ctx, requestId)
	return args.Error(0)
}

func (m *mockedService) GetState(ctx context.Context) (domain.RaffleState, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.RaffleState), args.Error(1)
}

func (m *mockedService) GetParticipantCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockedService) GetParticipant(ctx context.Context, index int) (string, error) {
	args := m.Called(ctx, index)
	return args.String(0), args.Error(1)
}

func (m *mockedService) GetParticipants(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)

	var res []string
	if a := args.Get(0); a != nil {
		res = a.([]string)
	}
	return res, args.Error(1)
}

func (m *mockedService) GetEntranceFee(ctx context.Context) uint64 {
	args := m.Called(ctx)
	return args.Get(0).(uint64)
}

func (m *mockedService) GetSettlementInterval(ctx context.Context) int64 {
	args := m.Called(ctx)
	return args.Get(0).(int64)
}

func (m *mockedService) GetLastWinner(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockedService) GetPooledBalance(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockedService) GetRoundOpenedAt(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockedService) GetInfo(ctx context.Context) (*application.RaffleInfo, error) {
	args := m.Called(ctx)

	var res *application.RaffleInfo
	if a := args.Get(0); a != nil {
		res = a.(*application.RaffleInfo)
	}
	return res, args.Error(1)
}

func (m *mockedService) GetSettlement(
	ctx context.Context, round uint64,
) (*domain.Settlement, error) {
	args := m.Called(ctx, round)

	var res *domain.Settlement
	if a := args.Get(0); a != nil {
		res = a.(*domain.Settlement)
	}
	return res, args.Error(1)
}

func (m *mockedService) ListSettlements(
	ctx context.Context, limit int,
) ([]domain.Settlement, error) {
	args := m.Called(ctx, limit)

	var res []domain.Settlement
	if a := args.Get(0); a != nil {
		res = a.([]domain.Settlement)
	}
	return res, args.Error(1)
}

func (m *mockedService) GetBalance(ctx context.Context, account string) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockedService) SubscribeEvents(ctx context.Context) (<-chan domain.Event, error) {
	args := m.Called(ctx)

	var res <-chan domain.Event
	if a := args.Get(0); a != nil {
		res = a.(<-chan domain.Event)
	}
	return res, args.Error(1)
}
