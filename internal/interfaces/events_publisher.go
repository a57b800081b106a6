package interfaces

import "context"

// EventPublisher delivers a committed-operation event to a sink
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}
