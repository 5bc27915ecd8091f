package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/domain/entity"
)

// IncidentRepository implements port.IncidentRepository
type IncidentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIncidentRepository creates a new incident repository
func NewIncidentRepository(db *sql.DB, logger *zap.Logger) port.IncidentRepository {
	return &IncidentRepository{
		db:     db,
		logger: logger,
	}
}

const selectIncident = `
	SELECT i.id, i.title, i.description, i.priority, i.suggested_actions,
		i.creator_user_id, i.assignee_user_id, i.status_id, s.code,
		i.version, i.created_at, i.updated_at
	FROM incidents i
	JOIN statuses s ON s.id = i.status_id
`

// Create inserts a new incident
func (r *IncidentRepository) Create(ctx context.Context, incident *entity.Incident) error {
	query := `
		INSERT INTO incidents (
			id, title, description, priority, suggested_actions,
			creator_user_id, assignee_user_id, status_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		incident.ID,
		incident.Title,
		incident.Description,
		incident.Priority,
		incident.SuggestedActions,
		incident.CreatorUserID,
		nullString(incident.AssigneeUserID),
		incident.StatusID,
		incident.CreatedAt,
		incident.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create incident", zap.String("id", incident.ID), zap.Error(err))
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID retrieves an incident with its status code
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*entity.Incident, error) {
	row := getExecutor(ctx, r.db).QueryRowContext(ctx, selectIncident+" WHERE i.id = ?", id)

	incident, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get incident by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

// List returns incidents matching filter, most recently updated first
func (r *IncidentRepository) List(ctx context.Context, filter port.IncidentFilter) ([]*entity.Incident, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.StatusCode != "" {
		where = append(where, "s.code = ?")
		args = append(args, filter.StatusCode)
	}
	if filter.CreatorUserID != "" {
		where = append(where, "i.creator_user_id = ?")
		args = append(args, filter.CreatorUserID)
	}
	if filter.AssigneeUserID != "" {
		where = append(where, "i.assignee_user_id = ?")
		args = append(args, filter.AssigneeUserID)
	}

	query := selectIncident
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY i.updated_at DESC, i.id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list incidents", zap.Error(err))
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*entity.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, incident)
	}
	return incidents, rows.Err()
}

// UpdateDetails rewrites title and description guarded by the status
func (r *IncidentRepository) UpdateDetails(ctx context.Context, id, expectedStatusID, title, description string, updatedAt time.Time) (bool, error) {
	query := `
		UPDATE incidents
		SET title = ?, description = ?, updated_at = ?
		WHERE id = ? AND status_id = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, title, description, updatedAt, id, expectedStatusID)
	if err != nil {
		r.logger.Error("Failed to update incident details", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to update incident: %w", err)
	}
	return affectedOne(result)
}

// CompareAndUpdateStatus is a single conditional UPDATE; the status and
// version predicates and the write cannot be separated by another writer.
// The assignee column is only touched by reassigning transitions.
func (r *IncidentRepository) CompareAndUpdateStatus(ctx context.Context, u entity.StatusUpdate) (bool, error) {
	set := "status_id = ?, version = version + 1, updated_at = ?"
	args := []interface{}{u.NewStatusID, u.UpdatedAt}
	if u.Reassign {
		set = "status_id = ?, assignee_user_id = ?, version = version + 1, updated_at = ?"
		args = []interface{}{u.NewStatusID, nullString(u.AssigneeUserID), u.UpdatedAt}
	}
	query := `
		UPDATE incidents
		SET ` + set + `
		WHERE id = ? AND status_id = ? AND version = ?
	`
	args = append(args, u.IncidentID, u.ExpectedStatusID, u.ExpectedVersion)

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update incident status",
			zap.String("id", u.IncidentID),
			zap.String("expected_status_id", u.ExpectedStatusID),
			zap.Int64("expected_version", u.ExpectedVersion),
			zap.Error(err))
		return false, fmt.Errorf("failed to update incident status: %w", err)
	}
	return affectedOne(result)
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIncident(row rowScanner) (*entity.Incident, error) {
	var (
		incident entity.Incident
		assignee sql.NullString
	)
	err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Priority,
		&incident.SuggestedActions,
		&incident.CreatorUserID,
		&assignee,
		&incident.StatusID,
		&incident.StatusCode,
		&incident.Version,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	incident.AssigneeUserID = stringPtr(assignee)
	return &incident, nil
}

// Verify interface compliance
var _ port.IncidentRepository = (*IncidentRepository)(nil)
