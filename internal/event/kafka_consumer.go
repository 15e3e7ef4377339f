package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/vmglabs/luncheon-roulette/internal/chat"
)

// KafkaConsumer reads bridged trigger events within a consumer group.
// Group rebalances and restarts can redeliver messages; downstream dedup
// handles that.
type KafkaConsumer struct {
	reader *kafka.Reader
	log    zerolog.Logger
}

// NewKafkaConsumer builds a group reader for the given brokers and topic.
func NewKafkaConsumer(brokers []string, topic, groupID string, log zerolog.Logger) (*KafkaConsumer, error) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    10e3, // 10kb
		MaxBytes:    10e6, // 10mb
		MaxWait:     1 * time.Second,
		StartOffset: kafka.FirstOffset,
	})

	return &KafkaConsumer{reader: r, log: log}, nil
}

// ReadEvent blocks until the next trigger event arrives or the context is
// canceled.
func (kc *KafkaConsumer) ReadEvent(ctx context.Context) (chat.TriggerEvent, error) {
	msg, err := kc.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return chat.TriggerEvent{}, err
		}
		kc.log.Error().Err(err).Msg("read trigger event")
		return chat.TriggerEvent{}, err
	}

	var ev chat.TriggerEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		kc.log.Error().Err(err).Msg("decode trigger event")
		return chat.TriggerEvent{}, err
	}

	return ev, nil
}

// Close closes the underlying reader.
func (kc *KafkaConsumer) Close() error {
	if err := kc.reader.Close(); err != nil {
		return fmt.Errorf("close kafka reader: %w", err)
	}
	return nil
}
