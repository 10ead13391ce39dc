// Package events emits booking lifecycle events to Kafka. Snapshot stores
// have no transactional outbox, so publishing is best-effort: a failed emit
// is logged and dropped, never blocking the confirmation itself.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/reservd/internal/model"
	"github.com/md-rashed-zaman/reservd/libs/kafkax"
)

const TopicSlotConfirmed = "booking.slot.confirmed.v1"

type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher returns nil when no brokers are configured; callers treat a
// nil publisher as disabled.
func NewPublisher(brokers string, logger *slog.Logger) *Publisher {
	list := kafkax.SplitBrokers(brokers)
	if len(list) == 0 {
		logger.Warn("event publishing disabled (no kafka brokers configured)")
		return nil
	}
	return &Publisher{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  list,
			Balancer: &kafka.Hash{},
		}),
		logger: logger,
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

// SlotConfirmed emits one event per first-time confirmation, keyed by the
// slot key so consumers see per-slot ordering.
func (p *Publisher) SlotConfirmed(ctx context.Context, slot model.Slot) {
	if p == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"event_id":   uuid.NewString(),
		"name":       slot.Name,
		"date":       slot.Date,
		"time":       slot.Time,
		"service":    slot.Service,
		"created_at": slot.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		p.logger.Error("failed to build event payload", "err", err)
		return
	}

	msg := kafka.Message{
		Topic: TopicSlotConfirmed,
		Key:   []byte(model.SlotKey(slot.Date, slot.Time)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TopicSlotConfirmed)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("event publish failed", "topic", TopicSlotConfirmed, "err", err)
	}
}
