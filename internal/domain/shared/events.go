// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. They feed the notify/audit side channel only;
// state is never rebuilt from them.
const (
	// Student events
	EventStudentSaved     EventType = "student.saved"
	EventStudentActivated EventType = "student.activated"
	EventStageChanged     EventType = "student.stage_changed"
	EventStatusChanged    EventType = "student.status_changed"

	// Enrollment events
	EventSubjectAdded   EventType = "enrollment.subject_added"
	EventSubjectRemoved EventType = "enrollment.subject_removed"
	EventGroupAssigned  EventType = "enrollment.group_assigned"

	// Finance events
	EventFeesRecalculated EventType = "finance.fees_recalculated"

	// Undo events
	EventUndoApplied EventType = "undo.applied"

	// Side channel
	EventNotification EventType = "system.notification"
	EventActionLogged EventType = "system.action_logged"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Side Channel Events
// ═══════════════════════════════════════════════════════════════════════════

// NotificationEvent carries operator-facing feedback.
type NotificationEvent struct {
	BaseEvent
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Payload implements Event interface.
func (e NotificationEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"message":  e.Message,
		"severity": string(e.Severity),
	}
}

// NewNotificationEvent creates a new NotificationEvent.
func NewNotificationEvent(message string, severity Severity) NotificationEvent {
	return NotificationEvent{
		BaseEvent: NewBaseEvent(EventNotification, ""),
		Message:   message,
		Severity:  severity,
	}
}

// ActionLoggedEvent is one audit trail record.
type ActionLoggedEvent struct {
	BaseEvent
	Action  string `json:"action"`
	Details string `json:"details"`
}

// Payload implements Event interface.
func (e ActionLoggedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"action":    e.Action,
		"details":   e.Details,
		"entity_id": e.AggregateId,
	}
}

// NewActionLoggedEvent creates a new ActionLoggedEvent.
func NewActionLoggedEvent(action, details, entityID string) ActionLoggedEvent {
	return ActionLoggedEvent{
		BaseEvent: NewBaseEvent(EventActionLogged, entityID),
		Action:    action,
		Details:   details,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Student Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentActivatedEvent is emitted when a lead becomes an active student.
type StudentActivatedEvent struct {
	BaseEvent
	StartDate Date     `json:"start_date"`
	Subjects  []string `json:"subjects"`
}

// Payload implements Event interface.
func (e StudentActivatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"start_date": string(e.StartDate),
		"subjects":   e.Subjects,
	}
}

// NewStudentActivatedEvent creates a new StudentActivatedEvent.
func NewStudentActivatedEvent(studentID string, startDate Date, subjects []string) StudentActivatedEvent {
	return StudentActivatedEvent{
		BaseEvent: NewBaseEvent(EventStudentActivated, studentID),
		StartDate: startDate,
		Subjects:  subjects,
	}
}

// SubjectRemovedEvent is emitted after a confirmed subject removal.
type SubjectRemovedEvent struct {
	BaseEvent
	Subject         string   `json:"subject"`
	UnassignedGroup []string `json:"unassigned_groups"`
	EndDate         Date     `json:"end_date"`
}

// Payload implements Event interface.
func (e SubjectRemovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"subject":           e.Subject,
		"unassigned_groups": e.UnassignedGroup,
		"end_date":          string(e.EndDate),
	}
}

// NewSubjectRemovedEvent creates a new SubjectRemovedEvent.
func NewSubjectRemovedEvent(studentID, subject string, groups []string, endDate Date) SubjectRemovedEvent {
	return SubjectRemovedEvent{
		BaseEvent:       NewBaseEvent(EventSubjectRemoved, studentID),
		Subject:         subject,
		UnassignedGroup: groups,
		EndDate:         endDate,
	}
}

// StudentChangedEvent covers saves, stage and status moves, added subjects
// and group assignments. Changes holds only the fields that moved.
type StudentChangedEvent struct {
	BaseEvent
	Changes map[string]interface{} `json:"changes"`
}

// Payload implements Event interface.
func (e StudentChangedEvent) Payload() map[string]interface{} {
	return e.Changes
}

// NewStudentChangedEvent creates a new StudentChangedEvent of the given type.
func NewStudentChangedEvent(eventType EventType, studentID string, changes map[string]interface{}) StudentChangedEvent {
	if changes == nil {
		changes = map[string]interface{}{}
	}
	return StudentChangedEvent{
		BaseEvent: NewBaseEvent(eventType, studentID),
		Changes:   changes,
	}
}

// FeesRecalculatedEvent is emitted by the batch fee resync.
type FeesRecalculatedEvent struct {
	BaseEvent
	Checked int `json:"checked"`
	Changed int `json:"changed"`
}

// Payload implements Event interface.
func (e FeesRecalculatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"checked": e.Checked,
		"changed": e.Changed,
	}
}

// NewFeesRecalculatedEvent creates a new FeesRecalculatedEvent.
func NewFeesRecalculatedEvent(checked, changed int) FeesRecalculatedEvent {
	return FeesRecalculatedEvent{
		BaseEvent: NewBaseEvent(EventFeesRecalculated, ""),
		Checked:   checked,
		Changed:   changed,
	}
}

// UndoAppliedEvent is emitted when a pending undo entry is applied.
type UndoAppliedEvent struct {
	BaseEvent
	Feature string `json:"feature"`
	Label   string `json:"label"`
}

// Payload implements Event interface.
func (e UndoAppliedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"feature": e.Feature,
		"label":   e.Label,
	}
}

// NewUndoAppliedEvent creates a new UndoAppliedEvent.
func NewUndoAppliedEvent(studentID, feature, label string) UndoAppliedEvent {
	return UndoAppliedEvent{
		BaseEvent: NewBaseEvent(EventUndoApplied, studentID),
		Feature:   feature,
		Label:     label,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
