package event

import (
	"context"

	"github.com/vmglabs/luncheon-roulette/internal/chat"
)

// TriggerConsumer reads bridged trigger events. Delivery is at-least-once;
// the engine's in-flight set absorbs near-duplicate redeliveries.
type TriggerConsumer interface {
	ReadEvent(ctx context.Context) (chat.TriggerEvent, error)
	Close() error
}
