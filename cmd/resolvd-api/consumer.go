package main

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/resolvd/resolvd/pkg/eventbus"
	"github.com/resolvd/resolvd/pkg/events"
	"github.com/resolvd/resolvd/pkg/otelhelper"
)

var auditEventTypes = []events.EventType{
	events.FlowCreatedEvent,
	events.FlowUpdatedEvent,
	events.FlowArchivedEvent,
	events.FlowRestoredEvent,
	events.FlowPurgedEvent,
	events.FlowDuplicatedEvent,
	events.VersionCreatedEvent,
	events.VersionPublishedEvent,
	events.VersionImportedEvent,
}

// startAuditConsumer subscribes to the audit topic and writes every
// lifecycle event to the structured log. It is the in-process default
// consumer; external consumers attach to the same topic in kafka mode.
func startAuditConsumer(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger, tracer trace.Tracer) error {
	handler := func(ctx context.Context, event interface{}) error {
		auditEvent, ok := event.(*events.AuditEvent)
		if !ok {
			return nil
		}

		ctx, span := otelhelper.StartSpan(ctx, tracer, "audit.consume",
			attribute.String(otelhelper.ActionKey, auditEvent.Action),
			attribute.String(otelhelper.ResourceTypeKey, auditEvent.ResourceType),
			attribute.String(otelhelper.ResourceIDKey, auditEvent.ResourceID),
		)
		defer span.End()

		logger.InfoContext(ctx, "audit event",
			"action", auditEvent.Action,
			"resource_type", auditEvent.ResourceType,
			"resource_id", auditEvent.ResourceID,
			"actor_id", auditEvent.ActorID,
		)

		return nil
	}

	for _, eventType := range auditEventTypes {
		if err := bus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
