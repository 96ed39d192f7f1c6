package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/learner-progression/internal/domain/shared"
)

// Envelope is the wire form of an event on Redis channels.
type Envelope struct {
	ID         string                 `json:"id"`
	Type       shared.EventType       `json:"type"`
	LearnerID  string                 `json:"learner_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// NewEnvelope wraps ev for publication.
func NewEnvelope(ev shared.Event) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       ev.EventType(),
		LearnerID:  ev.AggregateID(),
		OccurredAt: ev.OccurredAt(),
		Payload:    ev.Payload(),
	}
}

// RedisPublisher forwards events to Redis pub/sub, one channel per event
// type. Subscribe its Handle method to the EventBus to fan events out to
// other processes.
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisPublisher publishes on channels named prefix + event type, e.g.
// "progression:events:progress.level_up".
func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel of an event type.
func (p *RedisPublisher) Channel(t shared.EventType) string {
	return p.prefix + string(t)
}

// Handle publishes one event.
func (p *RedisPublisher) Handle(ctx context.Context, ev shared.Event) error {
	data, err := json.Marshal(NewEnvelope(ev))
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	if err := p.client.Publish(ctx, p.Channel(ev.EventType()), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.EventType(), err)
	}
	return nil
}
