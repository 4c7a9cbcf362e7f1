// Package events adapts the workflow engine's event bus (internal/events)
// to structured logging: every published event becomes one log entry,
// carrying the same correlation id the rest of the engine's logging uses.
package events

import (
	"context"

	"github.com/alexisbeaulieu97/streamy/internal/events"
	"github.com/alexisbeaulieu97/streamy/internal/ports"
)

// LoggingSubscriber writes every event it observes as a structured log
// entry via the supplied logger.
type LoggingSubscriber struct {
	logger ports.Logger
}

// NewLoggingSubscriber constructs a LoggingSubscriber bound to logger.
func NewLoggingSubscriber(logger ports.Logger) *LoggingSubscriber {
	return &LoggingSubscriber{logger: logger}
}

// Attach subscribes the LoggingSubscriber to every kind bus ever publishes,
// returning the Subscription so the caller can detach it later.
func (s *LoggingSubscriber) Attach(bus *events.Bus) events.Subscription {
	return bus.SubscribeAll(s.handle)
}

func (s *LoggingSubscriber) handle(ctx context.Context, evt events.Event) {
	if s == nil || s.logger == nil {
		return
	}

	fields := []interface{}{"event_kind", string(evt.Kind), "instance_id", evt.InstanceID}
	if evt.StepID != "" {
		fields = append(fields, "step_id", evt.StepID)
	}
	if m, ok := evt.Data.AsMap(); ok {
		for k, v := range m {
			fields = append(fields, k, v.ToAny())
		}
	}

	s.logger.Info(ctx, "workflow event", fields...)
}
