package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"danus-dashboard/backend/internal/telemetry"
)

const writeTimeout = 5 * time.Second

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer returns a producer writing to topic, or nil when brokers or topic are unset.
// Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

// Emit writes the event as JSON keyed by user id so one user's events stay ordered within a partition.
func (p *KafkaProducer) Emit(ctx context.Context, event *telemetry.Event) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	msg, err := encodeMessage(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("kafka emit %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeMessage(event *telemetry.Event) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{
		Value:   payload,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(event.Type)}},
	}
	if event.UserID != "" {
		msg.Key = []byte(event.UserID)
	}
	return msg, nil
}

// DecodeMessage parses a message written by KafkaProducer.
func DecodeMessage(msg kafka.Message) (*telemetry.Event, error) {
	var event telemetry.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, err
	}
	if event.Type == "" {
		return nil, errors.New("event type is empty")
	}
	return &event, nil
}

// Consumer reads events from the topic under a consumer group.
type Consumer struct {
	reader *kafka.Reader
}

// NewKafkaConsumer returns a consumer-group reader for topic.
func NewKafkaConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})}
}

// Run reads messages until ctx is canceled and passes each decoded event to handle.
// Malformed messages are reported through onError and skipped.
func (c *Consumer) Run(ctx context.Context, handle func(context.Context, *telemetry.Event) error, onError func(error)) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		event, err := DecodeMessage(msg)
		if err != nil {
			onError(fmt.Errorf("decode offset %d: %w", msg.Offset, err))
			continue
		}
		if err := handle(ctx, event); err != nil {
			onError(fmt.Errorf("handle %s: %w", event.Type, err))
		}
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
