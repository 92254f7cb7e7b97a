package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

type mockedEntropy struct {
	mock.Mock
	handler ports.FulfillmentHandler
}

func (m *mockedEntropy) RequestRandomValues(
	ctx context.Context, params ports.RequestParams,
) (string, error) {
	args := m.Called(ctx, params)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

func (m *mockedEntropy) RegisterFulfillmentHandler(handler ports.FulfillmentHandler) {
	m.handler = handler
}

func (m *mockedEntropy) Close() {}

type mockedLedger struct {
	mock.Mock
}

func (m *mockedLedger) Transfer(ctx context.Context, ref, to string, amount uint64) error {
	args := m.Called(ctx, ref, to, amount)
	return args.Error(0)
}

func (m *mockedLedger) Balance(ctx context.Context, account string) (uint64, error) {
	args := m.Called(ctx, account)

	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}

func (m *mockedLedger) Close() {}

type mockedScheduler struct {
	mock.Mock
	task func()
}

func (m *mockedScheduler) Start() {}
func (m *mockedScheduler) Stop()  {}

func (m *mockedScheduler) ScheduleTask(interval int64, immediate bool, task func()) error {
	args := m.Called(interval, immediate)
	m.task = task
	return args.Error(0)
}

// fakeEventRepository keeps the log in memory and runs the handlers
// synchronously on save.
type fakeEventRepository struct {
	lock     sync.Mutex
	rounds   map[uint64][]domain.Event
	handlers map[string][]func([]domain.Event)
	failSave bool
}

func newFakeEventRepository() *fakeEventRepository {
	return &fakeEventRepository{
		rounds:   make(map[uint64][]domain.Event),
		handlers: make(map[string][]func([]domain.Event)),
	}
}

func (r *fakeEventRepository) Save(_ context.Context, events ...domain.Event) error {
	r.lock.Lock()
	if r.failSave {
		r.lock.Unlock()
		return fmt.Errorf("disk full")
	}
	for _, event := range events {
		r.rounds[event.GetRound()] = append(r.rounds[event.GetRound()], event)
	}
	handlers := r.handlers[domain.RaffleTopic]
	r.lock.Unlock()

	for _, handler := range handlers {
		handler(events)
	}
	return nil
}

func (r *fakeEventRepository) LoadCurrent(_ context.Context) ([]domain.Event, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	rounds := make([]uint64, 0, len(r.rounds))
	for round := range r.rounds {
		rounds = append(rounds, round)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i] < rounds[j] })

	events := make([]domain.Event, 0)
	for _, round := range rounds {
		events = append(events, r.rounds[round]...)
	}
	return events, nil
}

func (r *fakeEventRepository) LoadRound(_ context.Context, round uint64) ([]domain.Event, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]domain.Event{}, r.rounds[round]...), nil
}

func (r *fakeEventRepository) RegisterEventsHandler(topic string, handler func([]domain.Event)) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.handlers[topic] = append(r.handlers[topic], handler)
}

func (r *fakeEventRepository) ClearRegisteredHandlers(topics ...string) {}

func (r *fakeEventRepository) Close() {}

type fakeSettlementRepository struct {
	lock        sync.Mutex
	settlements map[uint64]domain.Settlement
}

func (r *fakeSettlementRepository) AddSettlement(_ context.Context, s domain.Settlement) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.settlements[s.Round] = s
	return nil
}

func (r *fakeSettlementRepository) GetSettlement(_ context.Context, round uint64) (*domain.Settlement, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	s, ok := r.settlements[round]
	if !ok {
		return nil, domain.ErrSettlementNotFound
	}
	return &s, nil
}

func (r *fakeSettlementRepository) ListSettlements(_ context.Context, _ int) ([]domain.Settlement, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	list := make([]domain.Settlement, 0, len(r.settlements))
	for _, s := range r.settlements {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Round > list[j].Round })
	return list, nil
}

func (r *fakeSettlementRepository) Close() {}

type fakeRepoManager struct {
	events      *fakeEventRepository
	settlements *fakeSettlementRepository
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		events: newFakeEventRepository(),
		settlements: &fakeSettlementRepository{
			settlements: make(map[uint64]domain.Settlement),
		},
	}
}

func (m *fakeRepoManager) Events() domain.EventRepository           { return m.events }
func (m *fakeRepoManager) Settlements() domain.SettlementRepository { return m.settlements }
func (m *fakeRepoManager) Close()                                   {}

type fakeLiveStore struct {
	lock   sync.Mutex
	raffle *domain.Raffle
}

func (s *fakeLiveStore) CurrentRaffle() ports.CurrentRaffleStore { return s }
func (s *fakeLiveStore) Close()                                  {}

func (s *fakeLiveStore) Get(_ context.Context) (*domain.Raffle, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.raffle == nil {
		return nil, nil
	}
	return s.raffle.Clone(), nil
}

func (s *fakeLiveStore) Set(_ context.Context, raffle *domain.Raffle) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.raffle = raffle.Clone()
	return nil
}

type fakeEventBus struct {
	lock   sync.Mutex
	events []domain.Event
}

func (b *fakeEventBus) Publish(_ context.Context, events []domain.Event) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.events = append(b.events, events...)
	return nil
}

func (b *fakeEventBus) Subscribe(_ context.Context) (<-chan domain.Event, error) {
	return make(chan domain.Event), nil
}

func (b *fakeEventBus) Close() error { return nil }

func (b *fakeEventBus) types() []domain.EventType {
	b.lock.Lock()
	defer b.lock.Unlock()

	types := make([]domain.EventType, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.GetType())
	}
	return types
}
