package domain

import "context"

type EventRepository interface {
	// Save appends the events to the log of the round they belong to.
	Save(ctx context.Context, events ...Event) error
	// LoadCurrent returns the events to replay to rebuild the current raffle,
	// or none if nothing was ever saved.
	LoadCurrent(ctx context.Context) ([]Event, error)
	LoadRound(ctx context.Context, round uint64) ([]Event, error)
	RegisterEventsHandler(topic string, handler func(events []Event))
	ClearRegisteredHandlers(topic ...string)
	Close()
}
