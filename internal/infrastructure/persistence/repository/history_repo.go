package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/domain/entity"
)

// HistoryRepository implements port.HistoryRepository. There are no update
// or delete methods, and triggers reject them at the database level.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one ledger entry
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.StatusHistory) error {
	query := `
		INSERT INTO incident_status_history (
			id, incident_id, from_status_id, to_status_id,
			action_code, actor_user_id, comment, changed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.IncidentID,
		entry.FromStatusID,
		entry.ToStatusID,
		entry.ActionCode,
		entry.ActorUserID,
		nullString(entry.Comment),
		entry.ChangedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append history",
			zap.String("incident_id", entry.IncidentID),
			zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ListByIncident returns entries newest first by write sequence. The clock
// is not trusted for ordering since it can tie or step backwards.
func (r *HistoryRepository) ListByIncident(ctx context.Context, incidentID string) ([]*entity.StatusHistory, error) {
	query := `
		SELECT h.id, h.incident_id, h.from_status_id, h.to_status_id,
			fs.code, ts.code, h.action_code, h.actor_user_id, h.comment, h.changed_at
		FROM incident_status_history h
		JOIN statuses fs ON fs.id = h.from_status_id
		JOIN statuses ts ON ts.id = h.to_status_id
		WHERE h.incident_id = ?
		ORDER BY h.seq DESC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, incidentID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("incident_id", incidentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []*entity.StatusHistory{}
	for rows.Next() {
		var (
			entry   entity.StatusHistory
			comment sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.IncidentID,
			&entry.FromStatusID,
			&entry.ToStatusID,
			&entry.FromStatusCode,
			&entry.ToStatusCode,
			&entry.ActionCode,
			&entry.ActorUserID,
			&comment,
			&entry.ChangedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entry.Comment = stringPtr(comment)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
