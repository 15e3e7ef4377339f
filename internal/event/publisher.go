package event

import (
	"context"

	"github.com/vmglabs/luncheon-roulette/internal/chat"
)

// TriggerPublisher hands inbound trigger events to the bridge for worker
// processes to pick up.
type TriggerPublisher interface {
	Publish(ctx context.Context, ev chat.TriggerEvent) error
	Close() error
}
