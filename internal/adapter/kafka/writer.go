package kafka

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quake-sync/internal/config"
	"github.com/couchcryptid/quake-sync/internal/domain"
)

// Writer produces sync events to a Kafka topic.
// It implements pipeline.EventPublisher.
type Writer struct {
	writer *kafkago.Writer
}

// NewWriter creates a Kafka producer for the configured events topic.
func NewWriter(cfg *config.Config) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w}
}

// PublishBatch serializes the events and writes them in a single
// WriteMessages call. Events for the same quake land on the same partition.
func (w *Writer) PublishBatch(ctx context.Context, events []domain.SyncEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a SyncEvent into a Kafka message.
func serializeToMessage(event domain.SyncEvent) (kafkago.Message, error) {
	data, err := event.Marshal()
	if err != nil {
		return kafkago.Message{}, err
	}
	return kafkago.Message{
		Key:   event.Key(),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(event.Outcome)},
			{Key: "synced_at", Value: []byte(event.SyncedAt.Format(time.RFC3339))},
		},
	}, nil
}
