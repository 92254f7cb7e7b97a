package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const (
	eventStoreDir   = "raffle-events"
	currentRoundKey = "current"
)

type eventsDTO struct {
	Round  uint64
	Events [][]byte
}

type currentRoundDTO struct {
	Round uint64
}

type eventRepository struct {
	store     *badgerhold.Store
	lock      *sync.Mutex
	chUpdates chan []domain.Event
	handlers  map[string][]func(events []domain.Event)
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewEventRepository(config ...interface{}) (domain.EventRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}

	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, eventStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open raffle events store: %s", err)
	}
	repo := &eventRepository{
		store:     store,
		lock:      &sync.Mutex{},
		chUpdates: make(chan []domain.Event, 128),
		handlers:  make(map[string][]func(events []domain.Event)),
		done:      make(chan struct{}),
	}
	repo.wg.Add(1)
	go repo.listen()
	return repo, nil
}

func (r *eventRepository) Save(ctx context.Context, events ...domain.Event) error {
	if len(events) <= 0 {
		return nil
	}

	rounds := make([]uint64, 0)
	eventsByRound := make(map[uint64][]domain.Event)
	for _, event := range events {
		round := event.GetRound()
		if _, ok := eventsByRound[round]; !ok {
			rounds = append(rounds, round)
		}
		eventsByRound[round] = append(eventsByRound[round], event)
	}

	if err := r.store.Badger().Update(func(tx *badger.Txn) error {
		current, err := r.getCurrentRound(tx)
		if err != nil {
			return err
		}

		for _, round := range rounds {
			stored, err := r.get(tx, round)
			if err != nil {
				return err
			}
			rawEvents, err := serializeEvents(append(stored, eventsByRound[round]...))
			if err != nil {
				return err
			}
			if err := r.store.TxUpsert(tx, round, eventsDTO{round, rawEvents}); err != nil {
				return fmt.Errorf("failed to upsert events of round %d: %s", round, err)
			}
			if round > current {
				current = round
			}
		}

		return r.store.TxUpsert(tx, currentRoundKey, currentRoundDTO{current})
	}); err != nil {
		return err
	}

	r.publishEvents(events)
	return nil
}

func (r *eventRepository) LoadCurrent(ctx context.Context) ([]domain.Event, error) {
	var events []domain.Event
	err := r.store.Badger().View(func(tx *badger.Txn) error {
		current, err := r.getCurrentRound(tx)
		if err != nil {
			return err
		}
		if current == 0 {
			return nil
		}
		events, err = r.get(tx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) LoadRound(ctx context.Context, round uint64) ([]domain.Event, error) {
	var events []domain.Event
	err := r.store.Badger().View(func(tx *badger.Txn) (err error) {
		events, err = r.get(tx, round)
		return
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) RegisterEventsHandler(
	topic string, handler func(events []domain.Event),
) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.handlers[topic] = append(r.handlers[topic], handler)
}

func (r *eventRepository) ClearRegisteredHandlers(topics ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if len(topics) == 0 {
		r.handlers = make(map[string][]func(events []domain.Event))
		return
	}
	for _, topic := range topics {
		delete(r.handlers, topic)
	}
}

func (r *eventRepository) Close() {
	close(r.done)
	r.wg.Wait()
	//nolint:errcheck
	r.store.Close()
}

func (r *eventRepository) getCurrentRound(tx *badger.Txn) (uint64, error) {
	dto := currentRoundDTO{}
	if err := r.store.TxGet(tx, currentRoundKey, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current round: %s", err)
	}
	return dto.Round, nil
}

func (r *eventRepository) get(tx *badger.Txn, round uint64) ([]domain.Event, error) {
	dto := eventsDTO{}
	if err := r.store.TxGet(tx, round, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get events of round %d: %s", round, err)
	}

	return deserializeEvents(dto.Events)
}

func (r *eventRepository) listen() {
	defer r.wg.Done()

	for {
		select {
		case <-r.done:
			return
		case events := <-r.chUpdates:
			r.runHandlers(events)
		}
	}
}

// publishEvents queues the events for the handlers in the order they were
// saved.
func (r *eventRepository) publishEvents(events []domain.Event) {
	select {
	case <-r.done:
	case r.chUpdates <- events:
	}
}

func (r *eventRepository) runHandlers(events []domain.Event) {
	if len(events) <= 0 {
		return
	}

	r.lock.Lock()
	handlers := append(
		[]func(events []domain.Event){}, r.handlers[events[0].GetTopic()]...,
	)
	r.lock.Unlock()

	for _, handler := range handlers {
		handler(events)
	}
}
