// Package events defines the audit event types emitted on flow and version
// lifecycle transitions. Consumers subscribe through the event bus; the core
// only publishes and never reads these back.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topic for audit events.
const Topic = "resolvd.audit"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Flow lifecycle events.
	FlowCreatedEvent    EventType = "flow.created"
	FlowUpdatedEvent    EventType = "flow.updated"
	FlowArchivedEvent   EventType = "flow.archived"
	FlowRestoredEvent   EventType = "flow.restored"
	FlowPurgedEvent     EventType = "flow.purged"
	FlowDuplicatedEvent EventType = "flow.duplicated"

	// Version lifecycle events.
	VersionCreatedEvent   EventType = "version.created"
	VersionPublishedEvent EventType = "version.published"
	VersionImportedEvent  EventType = "version.imported"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// AuditEvent mirrors one audit log entry onto the event bus.
type AuditEvent struct {
	BaseEvent

	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	ActorID      string         `json:"actor_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

func (e AuditEvent) GetType() EventType {
	return e.Type
}

// NewAuditEvent creates an audit event for the given action. The action
// string doubles as the event type.
func NewAuditEvent(action EventType, resourceType, resourceID, actorID string, payload map[string]any) AuditEvent {
	return AuditEvent{
		BaseEvent:    NewBaseEvent(action),
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ActorID:      actorID,
		Payload:      payload,
	}
}
