// Package natsbus publishes sync events on a NATS subject.
package natsbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/couchcryptid/quake-sync/internal/domain"
)

// Connect dials the server with reconnects enabled and connection state
// changes logged.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("quake-sync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}
	nc, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// Publisher implements pipeline.EventPublisher.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a publisher for subject.
func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	return &Publisher{nc: nc, subject: subject}
}

// PublishBatch publishes each event and flushes once, so the call returns
// only after the server has seen the whole batch.
func (p *Publisher) PublishBatch(ctx context.Context, events []domain.SyncEvent) error {
	if len(events) == 0 {
		return nil
	}
	for i := range events {
		msg, err := newMsg(p.subject, events[i])
		if err != nil {
			return err
		}
		if err := p.nc.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish %s: %w", events[i].Quake.ExternalID, err)
		}
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}

func newMsg(subject string, event domain.SyncEvent) (*nats.Msg, error) {
	data, err := event.Marshal()
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Usgs-Id", event.Quake.ExternalID)
	msg.Header.Set("Outcome", event.Outcome)
	msg.Header.Set("Synced-At", event.SyncedAt.Format(time.RFC3339))
	return msg, nil
}
