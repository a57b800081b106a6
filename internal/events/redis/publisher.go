package redis

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
)

// DefaultChannel is the pub/sub channel transaction events go to
const DefaultChannel = "transaction_events"

// Publisher publishes events as JSON on a Redis pub/sub channel. The topic of
// a Publish call is the channel name.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) Publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}
	if err := p.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return errors.Wrapf(err, "failed to publish event to %s", topic)
	}
	return nil
}

// Close releases the underlying client
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
