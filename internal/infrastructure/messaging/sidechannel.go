package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

// SideChannel publishes operator notifications and audit actions as events.
// Both calls are fire-and-forget: a publish failure is logged, never returned.
type SideChannel struct {
	bus    shared.EventPublisher
	logger *slog.Logger
}

// NewSideChannel creates a SideChannel over bus.
func NewSideChannel(bus shared.EventPublisher, logger *slog.Logger) *SideChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &SideChannel{bus: bus, logger: logger.With("component", "side_channel")}
}

// Notify publishes an operator notification.
func (s *SideChannel) Notify(ctx context.Context, message string, severity shared.Severity) {
	event := shared.NewNotificationEvent(message, severity)
	event.BaseEvent = event.WithCorrelationID(correlationID(ctx))
	if err := s.bus.Publish(event); err != nil {
		s.logger.Warn("notification dropped", "message", message, "error", err)
	}
}

// LogAction publishes an audit action.
func (s *SideChannel) LogAction(ctx context.Context, action, details, entityID string) {
	event := shared.NewActionLoggedEvent(action, details, entityID)
	event.BaseEvent = event.WithCorrelationID(correlationID(ctx))
	if err := s.bus.Publish(event); err != nil {
		s.logger.Warn("audit action dropped", "action", action, "entity_id", entityID, "error", err)
	}
}

// Publish forwards a domain event.
func (s *SideChannel) Publish(event shared.Event) {
	if err := s.bus.Publish(event); err != nil {
		s.logger.Warn("event dropped", "event_type", event.EventType(), "error", err)
	}
}

type correlationKey struct{}

// WithCorrelationID stores a request correlation ID for events published under ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBSCRIBERS
// ══════════════════════════════════════════════════════════════════════════════

// RegisterNotificationLog writes every notification to the log.
func RegisterNotificationLog(bus shared.EventSubscriber, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	return bus.Subscribe(shared.EventNotification, func(event shared.Event) error {
		n, ok := event.(shared.NotificationEvent)
		if !ok {
			return nil
		}
		level := slog.LevelInfo
		switch n.Severity {
		case shared.SeverityWarning:
			level = slog.LevelWarn
		case shared.SeverityError:
			level = slog.LevelError
		}
		logger.Log(context.Background(), level, n.Message,
			"severity", n.Severity,
			"correlation_id", n.CorrelationID,
		)
		return nil
	})
}

// RegisterAuditTrail persists every audit action through repo.
func RegisterAuditTrail(bus shared.EventSubscriber, repo shared.ActionLogRepository, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return bus.Subscribe(shared.EventActionLogged, func(event shared.Event) error {
		a, ok := event.(shared.ActionLoggedEvent)
		if !ok {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return repo.Append(ctx, shared.ActionRecord{
			Action:    a.Action,
			Details:   a.Details,
			EntityID:  a.AggregateID(),
			CreatedAt: a.OccurredAt(),
		})
	})
}
