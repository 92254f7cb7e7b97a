package watermillbus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const subscriberBufferSize = 64

type eventBus struct {
	pubsub *gochannel.GoChannel
}

// NewEventBus returns an in-process bus. Subscribers only receive events
// published after they subscribed, and a subscriber that does not keep up
// misses events instead of slowing down publishers.
func NewEventBus() ports.EventBus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            subscriberBufferSize,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewStdLogger(false, false),
	)
	return &eventBus{pubsub}
}

func (b *eventBus) Publish(_ context.Context, events []domain.Event) error {
	messages := make([]*message.Message, 0, len(events))
	for _, event := range events {
		payload, err := domain.EncodeEvent(event)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %s", event.GetType(), err)
		}
		messages = append(messages, message.NewMessage(watermill.NewUUID(), payload))
	}
	return b.pubsub.Publish(domain.RaffleTopic, messages...)
}

func (b *eventBus) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	messages, err := b.pubsub.Subscribe(ctx, domain.RaffleTopic)
	if err != nil {
		return nil, err
	}

	chEvents := make(chan domain.Event, subscriberBufferSize)
	go func() {
		defer close(chEvents)

		for msg := range messages {
			event, err := domain.DecodeEvent(msg.Payload)
			msg.Ack()
			if err != nil {
				log.WithError(err).Warn("event bus: failed to decode event")
				continue
			}

			select {
			case chEvents <- event:
			default:
				log.Warnf("event bus: subscriber is lagging, dropped event %s", event.GetType())
			}
		}
	}()

	return chEvents, nil
}

func (b *eventBus) Close() error {
	return b.pubsub.Close()
}
