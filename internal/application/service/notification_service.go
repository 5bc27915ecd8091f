package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/incident-intake/internal/application/dispatcher"
	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/domain/entity"
	"github.com/garyjia/incident-intake/internal/domain/event"
)

// NotificationService turns committed incident events into outbox rows and
// delivers pending rows through the configured notifier.
type NotificationService interface {
	// Register subscribes the service's handlers on d
	Register(d dispatcher.Dispatcher)

	HandleStatusChanged(ctx context.Context, evt *event.Event) error
	HandleAssigned(ctx context.Context, evt *event.Event) error

	// DeliverPending sends up to batch pending notifications
	DeliverPending(ctx context.Context, batch int) (DeliveryStats, error)

	// Inbox lists the user's notifications newest first
	Inbox(ctx context.Context, userID string, q InboxQuery) (*InboxPage, error)
	Stats(ctx context.Context, userID string) (*entity.NotificationStats, error)
	// MarkRead and Delete return a not_found error for rows the user does not own
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}

// DeliveryStats summarises one delivery pass
type DeliveryStats struct {
	Sent   int
	Failed int
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	userRepo         port.UserRepository
	notifier         port.Notifier
	logger           Logger
	maxAttempts      int
	now              func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	userRepo port.UserRepository,
	notifier port.Notifier,
	maxAttempts int,
	logger Logger,
) NotificationService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		notifier:         notifier,
		logger:           logger,
		maxAttempts:      maxAttempts,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeStatusChanged, "notify-creator", s.HandleStatusChanged)
	d.SubscribeNamed(event.TypeIncidentAssigned, "notify-assignee", s.HandleAssigned)
}

// HandleStatusChanged tells the creator their incident moved, unless they moved it
func (s *notificationServiceImpl) HandleStatusChanged(ctx context.Context, evt *event.Event) error {
	creator := evt.GetPayloadString(event.KeyCreator)
	if creator == "" || creator == evt.ActorUserID {
		return nil
	}

	message := fmt.Sprintf("Incident %q moved from %s to %s.",
		evt.GetPayloadString(event.KeyTitle),
		evt.GetPayloadString(event.KeyFromStatus),
		evt.GetPayloadString(event.KeyToStatus),
	)
	if comment := evt.GetPayloadString(event.KeyComment); comment != "" {
		message += " Comment: " + comment
	}

	return s.enqueue(ctx, evt, creator, entity.NotificationTypeIncidentStatusChanged, "Incident status changed", message)
}

// HandleAssigned tells the new assignee an incident awaits their review
func (s *notificationServiceImpl) HandleAssigned(ctx context.Context, evt *event.Event) error {
	assignee := evt.GetPayloadString(event.KeyAssignee)
	if assignee == "" || assignee == evt.ActorUserID {
		return nil
	}

	message := fmt.Sprintf("Incident %q was assigned to you and is now %s.",
		evt.GetPayloadString(event.KeyTitle),
		evt.GetPayloadString(event.KeyToStatus),
	)

	return s.enqueue(ctx, evt, assignee, entity.NotificationTypeIncidentAssigned, "Incident assigned", message)
}

func (s *notificationServiceImpl) enqueue(ctx context.Context, evt *event.Event, userID, typeCode, title, message string) error {
	n := &entity.Notification{
		ID:         uuid.NewString(),
		UserID:     userID,
		IncidentID: evt.IncidentID,
		TypeCode:   typeCode,
		Title:      title,
		Message:    message,
		Status:     entity.NotificationStatusPending,
		CreatedAt:  s.now(),
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		s.logger.Error("Failed to enqueue notification",
			"error", err,
			"incident_id", evt.IncidentID,
			"user_id", userID,
			"type", typeCode,
		)
		return fmt.Errorf("create notification: %w", err)
	}

	s.logger.Info("Notification enqueued",
		"notification_id", n.ID,
		"incident_id", evt.IncidentID,
		"user_id", userID,
		"type", typeCode,
		"correlation_id", evt.CorrelationID,
	)
	return nil
}

func (s *notificationServiceImpl) DeliverPending(ctx context.Context, batch int) (DeliveryStats, error) {
	var stats DeliveryStats

	pending, err := s.notificationRepo.GetPending(ctx, s.maxAttempts, batch)
	if err != nil {
		return stats, fmt.Errorf("get pending notifications: %w", err)
	}

	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := s.deliver(ctx, n); err != nil {
			stats.Failed++
			final := n.Attempts+1 >= s.maxAttempts
			s.logger.Error("Notification delivery failed",
				"error", err,
				"notification_id", n.ID,
				"attempt", n.Attempts+1,
				"final", final,
			)
			if markErr := s.notificationRepo.MarkFailed(ctx, n.ID, err.Error(), final); markErr != nil {
				return stats, fmt.Errorf("mark notification failed: %w", markErr)
			}
			continue
		}

		if err := s.notificationRepo.MarkSent(ctx, n.ID, s.now()); err != nil {
			return stats, fmt.Errorf("mark notification sent: %w", err)
		}
		stats.Sent++
	}

	return stats, nil
}

func (s *notificationServiceImpl) deliver(ctx context.Context, n *entity.Notification) error {
	recipient, err := s.userRepo.GetByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}
	if recipient == nil {
		return fmt.Errorf("recipient %s not found", n.UserID)
	}
	return s.notifier.Notify(ctx, recipient, n)
}
