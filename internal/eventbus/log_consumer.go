package eventbus

import (
	"context"
	"log"

	"github.com/matthewbaird/taskviews/internal/event"
)

// LogConsumer logs all lifecycle events for observability.
type LogConsumer struct{}

func NewLogConsumer() *LogConsumer { return &LogConsumer{} }

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	scope := evt.Scope
	if scope == "" {
		scope = "all"
	}
	log.Printf("event: %s [scope=%s actor=%s] %s views=%v",
		evt.EventType, scope, evt.Actor, evt.Summary, evt.Views)
	return nil
}
