// Package events publishes submission lifecycle events to the message bus.
// Publishing is fire-and-forget: delivery failures are logged, never
// surfaced to the operator.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"intake/internal/catalog"
)

// Event is one submission lifecycle record.
type Event struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	Timestamp       time.Time        `json:"timestamp"`
	OperatorID      string           `json:"operator_id,omitempty"`
	ProjectID       catalog.ItemID   `json:"project_id,omitempty"`
	ApartmentID     catalog.ItemID   `json:"apartment_id,omitempty"`
	CommunicationID catalog.ItemID   `json:"communication_id,omitempty"`
	BuyerIDs        []catalog.ItemID `json:"buyer_ids,omitempty"`
	Outcome         string           `json:"outcome"`
	Detail          string           `json:"detail,omitempty"`
}

// EventSubmissionRecorded is emitted once per submission attempt.
const EventSubmissionRecorded = "submission.recorded"

// Publisher emits events. A nil *Kafka publisher is a valid no-op.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// Kafka publishes events with franz-go.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka connects a producer to the given brokers.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

// Publish produces the event asynchronously. Errors are logged in the
// produce callback; the caller never blocks on the broker.
func (k *Kafka) Publish(ctx context.Context, event Event) {
	if k == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	value, err := json.Marshal(event)
	if err != nil {
		k.logger.ErrorContext(ctx, "marshal submission event", "error", err)
		return
	}
	record := &kgo.Record{Topic: k.topic, Key: []byte(event.ID), Value: value}
	k.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			k.logger.Error("publish submission event failed",
				"event_id", event.ID, "error", err)
		}
	})
}

// Close flushes and shuts down the producer.
func (k *Kafka) Close() {
	if k == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = k.client.Flush(ctx)
	k.client.Close()
}
