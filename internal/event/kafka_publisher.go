package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vmglabs/luncheon-roulette/internal/chat"
)

// KafkaPublisher writes trigger events to the bridge topic.
//
// Messages are keyed by channel and balanced by hash, so all triggers for
// one channel land in one partition and keep their relative order.
// RequireAll trades latency for not losing a trigger when a broker leader
// dies right after the ack.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a writer for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  5,
		Compression:  kafka.Snappy,
	}

	return &KafkaPublisher{writer: w}, nil
}

// Publish writes one trigger event, keyed by its channel.
func (kp *KafkaPublisher) Publish(ctx context.Context, ev chat.TriggerEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode trigger event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Channel),
		Value: b,
	}
	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write trigger event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (kp *KafkaPublisher) Close() error {
	if err := kp.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
