package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"offerdesk/offer-service/internal/offer"
)

// RedisPublisher publishes offer events on a Redis channel named after the
// event type, for dashboards to pick up. It implements offer.EventPublisher.
type RedisPublisher struct {
	rdb redis.Cmdable
}

func NewRedisPublisher(rdb redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev offer.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.rdb.Publish(ctx, ev.Type, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
