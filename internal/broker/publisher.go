package appkafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sqlmerr/twotty/internal/models"
)

// Publisher emits activity records.
type Publisher interface {
	Publish(ctx context.Context, a models.Activity) error
}

// NopPublisher drops every record. It is used when the activity pipeline is
// disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.Activity) error { return nil }

// KafkaPublisher writes activity records as JSON messages keyed by user id.
type KafkaPublisher struct {
	writer KafkaWriter
	now    func() time.Time
}

func NewPublisher(w KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

// Publish fills in the id and timestamp when missing and writes the record.
func (p *KafkaPublisher) Publish(ctx context.Context, a models.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = p.now().UTC()
	}
	msg, err := EncodeActivity(a)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(msg)
}

// EncodeActivity builds the Kafka message for a.
func EncodeActivity(a models.Activity) (kafka.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode activity: %w", err)
	}
	return kafka.Message{
		Key:   []byte(a.UserID),
		Value: data,
		Time:  a.OccurredAt,
	}, nil
}

// DecodeActivity parses and validates a consumed message.
func DecodeActivity(msg kafka.Message) (models.Activity, error) {
	var a models.Activity
	if err := json.Unmarshal(msg.Value, &a); err != nil {
		return models.Activity{}, fmt.Errorf("decode activity: %w", err)
	}
	if a.ID == "" || a.UserID == "" || a.Kind == "" {
		return models.Activity{}, fmt.Errorf("decode activity: missing id, user_id or kind")
	}
	if a.OccurredAt.IsZero() {
		return models.Activity{}, fmt.Errorf("decode activity: missing occurred_at")
	}
	return a, nil
}
