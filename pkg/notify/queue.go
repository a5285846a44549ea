package notify

import (
	"context"
	"fmt"

	"bloodlink/pkg/domain"
)

type eventPublisher interface {
	Publish(ctx context.Context, event domain.DonorStatusEvent) (string, error)
}

// QueueNotifier hands events to the Redis stream consumed by the notifier service.
type QueueNotifier struct {
	queue eventPublisher
}

// NewQueueNotifier wraps a stream publisher such as *queue.RedisEventQueue.
func NewQueueNotifier(q eventPublisher) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

func (n *QueueNotifier) DonorStatusChanged(ctx context.Context, event domain.DonorStatusEvent) error {
	if _, err := n.queue.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish donor status event: %w", err)
	}
	return nil
}
