// Package eventlog publishes committed domain events to the structured log.
package eventlog

import (
	"context"

	"go.uber.org/zap"

	"github.com/icredito/credito/pkg/domain"
)

// Publisher logs every event it receives. Services hand events over only
// after the owning transaction committed, so each log line corresponds to
// durable state.
type Publisher struct {
	logger *zap.Logger
}

// New returns a Publisher writing to logger. A nil logger disables output.
func New(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{logger: logger}
}

var _ domain.Publisher = (*Publisher)(nil)

// Publish logs the events in order.
func (publisher *Publisher) Publish(ctx context.Context, events ...domain.Event) {
	for _, event := range events {
		publisher.logger.Info("domain event",
			zap.String("event", event.EventName()),
			zap.Any("payload", event),
		)
	}
}
