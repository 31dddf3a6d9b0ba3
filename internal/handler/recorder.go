package handler

import (
	"context"
	"log"

	"github.com/matthewbaird/taskviews/internal/event"
)

// recordEvent records a lifecycle event if a recorder is configured.
// Errors are logged but do not fail the request; the view write has
// already happened.
func recordEvent(ctx context.Context, rec event.Recorder, evt event.DomainEvent) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, evt); err != nil {
		log.Printf("handler: event recording failed for %s: %v", evt.EventType, err)
	}
}
