package port

import (
	"context"
	"time"

	"github.com/garyjia/incident-intake/internal/domain/entity"
)

// Repositories return (nil, nil) when a row does not exist.

// IncidentRepository defines persistence operations for Incident
type IncidentRepository interface {
	Create(ctx context.Context, incident *entity.Incident) error
	GetByID(ctx context.Context, id string) (*entity.Incident, error)
	List(ctx context.Context, filter IncidentFilter) ([]*entity.Incident, error)

	// UpdateDetails rewrites title and description while the incident is
	// still in expectedStatusID. It reports whether a row changed.
	UpdateDetails(ctx context.Context, id, expectedStatusID, title, description string, updatedAt time.Time) (bool, error)

	// CompareAndUpdateStatus writes the new status (and the assignee when
	// Reassign is set) only if the stored status and version still equal the
	// expected ones, bumping the version. It reports whether a row changed.
	CompareAndUpdateStatus(ctx context.Context, update entity.StatusUpdate) (bool, error)
}

// IncidentFilter narrows List. Zero values mean "any".
type IncidentFilter struct {
	StatusCode     string
	CreatorUserID  string
	AssigneeUserID string
	Limit          int
	Offset         int
}

// HistoryRepository is the append-only status ledger
type HistoryRepository interface {
	// Append must run inside the transaction that changed the status
	Append(ctx context.Context, entry *entity.StatusHistory) error

	// ListByIncident returns entries newest first
	ListByIncident(ctx context.Context, incidentID string) ([]*entity.StatusHistory, error)
}

// CatalogRepository reads the status reference tables
type CatalogRepository interface {
	ListStatuses(ctx context.Context) ([]*entity.Status, error)
	ListActiveTransitions(ctx context.Context) ([]*entity.StatusTransition, error)
}

// UserRepository is the user-lookup collaborator
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
}

// NotificationRepository defines persistence operations for the notification
// outbox and the per-user inbox read from it
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetPending(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string, final bool) error

	// ListByUser returns a user's notifications newest first
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, error)
	Stats(ctx context.Context, userID string) (*entity.NotificationStats, error)
	// MarkRead, MarkAllRead and Delete only touch rows owned by userID.
	// MarkRead keeps the first read time and reports whether the row exists.
	MarkRead(ctx context.Context, id, userID string, readAt time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int64, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
