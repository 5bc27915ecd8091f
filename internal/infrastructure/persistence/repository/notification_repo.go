package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/domain/entity"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

const selectNotification = `
	SELECT id, user_id, incident_id, type_code, title, message,
		status, attempts, last_error, created_at, sent_at, read_at
	FROM notifications
`

// Create enqueues a notification
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, incident_id, type_code, title, message,
			status, attempts, last_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		n.ID, n.UserID, n.IncidentID, n.TypeCode, n.Title, n.Message,
		n.Status, n.Attempts, n.LastError, n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("incident_id", n.IncidentID),
			zap.String("user_id", n.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetPending returns the oldest pending notifications under the attempt limit
func (r *NotificationRepository) GetPending(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error) {
	query := selectNotification + `
		WHERE status = ? AND attempts < ?
		ORDER BY created_at, id
		LIMIT ?
	`
	return r.query(ctx, query, entity.NotificationStatusPending, maxAttempts, limit)
}

// ListByUser returns a page of a user's inbox, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, error) {
	query := selectNotification + " WHERE user_id = ?"
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"

	out, err := r.query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*entity.Notification{}
	}
	return out, nil
}

// Stats counts a user's notifications
func (r *NotificationRepository) Stats(ctx context.Context, userID string) (*entity.NotificationStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN read_at IS NULL THEN 1 ELSE 0 END), 0)
		FROM notifications
		WHERE user_id = ?
	`

	var stats entity.NotificationStats
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(&stats.Total, &stats.Unread); err != nil {
		r.logger.Error("Failed to count notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	return &stats, nil
}

// MarkRead sets read_at on one of the user's notifications
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, readAt time.Time) (bool, error) {
	query := `
		UPDATE notifications
		SET read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, readAt, id, userID)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return affectedOne(result)
}

// MarkAllRead marks every unread notification of the user and returns how many changed
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int64, error) {
	query := `
		UPDATE notifications
		SET read_at = ?
		WHERE user_id = ? AND read_at IS NULL
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, readAt, userID)
	if err != nil {
		r.logger.Error("Failed to mark notifications read", zap.String("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes one of the user's notifications
func (r *NotificationRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		r.logger.Error("Failed to delete notification", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete notification: %w", err)
	}
	return affectedOne(result)
}

// MarkSent marks a notification delivered
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = ?, attempts = attempts + 1, last_error = '', sent_at = ?
		WHERE id = ?
	`

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, entity.NotificationStatusSent, sentAt, id); err != nil {
		r.logger.Error("Failed to mark notification sent", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt. final moves the row out of the pending queue.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, errMsg string, final bool) error {
	status := entity.NotificationStatusPending
	if final {
		status = entity.NotificationStatusFailed
	}

	query := `
		UPDATE notifications
		SET status = ?, attempts = attempts + 1, last_error = ?
		WHERE id = ?
	`

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, status, errMsg, id); err != nil {
		r.logger.Error("Failed to mark notification failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

func (r *NotificationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Notification, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []*entity.Notification
	for rows.Next() {
		var (
			n      entity.Notification
			sentAt sql.NullTime
			readAt sql.NullTime
		)
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.IncidentID, &n.TypeCode, &n.Title, &n.Message,
			&n.Status, &n.Attempts, &n.LastError, &n.CreatedAt, &sentAt, &readAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.SentAt = timePtr(sentAt)
		n.ReadAt = timePtr(readAt)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
