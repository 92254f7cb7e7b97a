package ports

import (
	"context"

	"github.com/ark-network/raffle/internal/core/domain"
)

// Notifier forwards raffle events to other services.
type Notifier interface {
	Notify(ctx context.Context, events []domain.Event) error
	Close()
}

// EventBus fans raffle events out to in-process observers.
type EventBus interface {
	Publish(ctx context.Context, events []domain.Event) error
	Subscribe(ctx context.Context) (<-chan domain.Event, error)
	Close() error
}
