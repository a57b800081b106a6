// Package events holds the publishers committed operations are announced
// through. Sink-specific publishers live in the kafka and redis subpackages.
package events

import (
	"context"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
)

// Noop drops every event. It is used when no sink is configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (Noop) Close() error {
	return nil
}

var _ interfaces.EventPublisher = Noop{}
