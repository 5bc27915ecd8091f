package service

import (
	"context"
	"fmt"

	"github.com/garyjia/incident-intake/internal/domain/entity"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
)

const (
	defaultInboxLimit = 20
	maxInboxLimit     = 100
)

// InboxQuery selects a page of a user's notifications
type InboxQuery struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// InboxPage is one page of notifications. Total counts every row matching
// the query, not just this page.
type InboxPage struct {
	Items  []*entity.Notification
	Total  int
	Unread int
	Limit  int
	Offset int
}

func (s *notificationServiceImpl) Inbox(ctx context.Context, userID string, q InboxQuery) (*InboxPage, error) {
	if q.Limit <= 0 {
		q.Limit = defaultInboxLimit
	}
	if q.Limit > maxInboxLimit {
		q.Limit = maxInboxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	items, err := s.notificationRepo.ListByUser(ctx, userID, q.UnreadOnly, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	stats, err := s.notificationRepo.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	total := stats.Total
	if q.UnreadOnly {
		total = stats.Unread
	}
	return &InboxPage{
		Items:  items,
		Total:  total,
		Unread: stats.Unread,
		Limit:  q.Limit,
		Offset: q.Offset,
	}, nil
}

func (s *notificationServiceImpl) Stats(ctx context.Context, userID string) (*entity.NotificationStats, error) {
	stats, err := s.notificationRepo.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	return stats, nil
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.notificationRepo.MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !ok {
		return domainwf.NotFound("notification %s not found", id)
	}
	return nil
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.notificationRepo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	if n > 0 {
		s.logger.Info("Notifications marked read", "user_id", userID, "count", n)
	}
	return n, nil
}

func (s *notificationServiceImpl) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.notificationRepo.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if !ok {
		return domainwf.NotFound("notification %s not found", id)
	}
	s.logger.Info("Notification deleted", "notification_id", id, "user_id", userID)
	return nil
}
