package natsnotifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ark-network/raffle/internal/core/domain"
	"github.com/ark-network/raffle/internal/core/ports"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type notifier struct {
	conn    *nats.Conn
	subject string
}

// NewNotifier publishes every raffle event to <subject>.<event type>, for
// example raffle.events.winner_picked.
func NewNotifier(url, subject string) (ports.Notifier, error) {
	if len(url) <= 0 {
		return nil, fmt.Errorf("missing nats url")
	}
	if len(subject) <= 0 {
		return nil, fmt.Errorf("missing nats subject")
	}

	conn, err := nats.Connect(
		url,
		nats.Name("raffled"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats notifier: disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("nats notifier: reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &notifier{conn, subject}, nil
}

func (n *notifier) Notify(_ context.Context, events []domain.Event) error {
	for _, event := range events {
		payload, err := domain.EncodeEvent(event)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %s", event.GetType(), err)
		}
		if err := n.conn.Publish(Subject(n.subject, event), payload); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.GetType(), err)
		}
	}
	return n.conn.Flush()
}

func (n *notifier) Close() {
	//nolint:errcheck
	n.conn.Drain()
}

func Subject(prefix string, event domain.Event) string {
	return fmt.Sprintf("%s.%s", prefix, strings.ToLower(string(event.GetType())))
}
