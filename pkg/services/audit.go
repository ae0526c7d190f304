package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/resolvd/resolvd/pkg/eventbus"
	"github.com/resolvd/resolvd/pkg/events"
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/otelhelper"
)

// Audit builds audit log entries and mirrors them onto the event bus.
// The entry itself is committed by the repository inside the transaction of
// the action it records; the bus publication happens after commit and is
// fire-and-forget.
type Audit struct {
	eventBus eventbus.EventPublisher
	logger   *slog.Logger
}

// NewAudit creates a new audit recorder. The event bus may be nil, in which
// case entries are only persisted.
func NewAudit(eventBus eventbus.EventPublisher, logger *slog.Logger) *Audit {
	return &Audit{
		eventBus: eventBus,
		logger:   logger,
	}
}

// Entry builds an audit log row ready to be committed alongside the action.
func (a *Audit) Entry(action events.EventType, resourceType, resourceID, actorID string, payload map[string]any) *models.AuditLog {
	return &models.AuditLog{
		ID:           uuid.New().String(),
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ActorID:      actorID,
		Payload:      payload,
		CreatedAt:    time.Now().UTC(),
	}
}

// Publish mirrors a committed audit entry onto the event bus. Failures are
// logged and swallowed: audit delivery must never fail the operation that
// already committed.
func (a *Audit) Publish(ctx context.Context, entry *models.AuditLog) {
	if a.eventBus == nil || entry == nil {
		return
	}

	tracer := otel.Tracer("resolvd/audit")

	ctx, span := otelhelper.StartSpan(ctx, tracer, "audit.publish",
		attribute.String(otelhelper.ActionKey, entry.Action),
		attribute.String(otelhelper.ResourceTypeKey, entry.ResourceType),
		attribute.String(otelhelper.ResourceIDKey, entry.ResourceID),
		attribute.String(otelhelper.ActorIDKey, entry.ActorID),
	)
	defer span.End()

	event := events.NewAuditEvent(
		events.EventType(entry.Action),
		entry.ResourceType,
		entry.ResourceID,
		entry.ActorID,
		entry.Payload,
	)

	if err := a.eventBus.Publish(ctx, entry.ResourceID, event); err != nil {
		otelhelper.SetError(span, err)
		a.logger.ErrorContext(ctx, "failed to publish audit event",
			"action", entry.Action, "resource_id", entry.ResourceID, "error", err)
	}
}
