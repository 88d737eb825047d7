package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// EventPublisher implements ports.EventSink by publishing JSON events.
type EventPublisher struct {
	rdb     publisher
	channel string
}

// Record publishes event on the event channel.
func (p *EventPublisher) Record(ctx context.Context, event domain.LifecycleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode event: %w", ports.ErrInvalidRequest, err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %w", ports.ErrConnectionFailed, p.channel, err)
	}
	return nil
}
