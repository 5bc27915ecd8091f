package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/domain/entity"
)

// CatalogRepository reads the status reference tables
type CatalogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sql.DB, logger *zap.Logger) port.CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

// ListStatuses returns all statuses in display order
func (r *CatalogRepository) ListStatuses(ctx context.Context) ([]*entity.Status, error) {
	query := `
		SELECT id, code, name, name_ar, is_initial, is_terminal, is_editable
		FROM statuses
		ORDER BY sort_order, code
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list statuses", zap.Error(err))
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*entity.Status
	for rows.Next() {
		var s entity.Status
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.NameAr, &s.IsInitial, &s.IsTerminal, &s.IsEditable); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		statuses = append(statuses, &s)
	}
	return statuses, rows.Err()
}

// ListActiveTransitions returns transitions with is_active set
func (r *CatalogRepository) ListActiveTransitions(ctx context.Context) ([]*entity.StatusTransition, error) {
	query := `
		SELECT id, from_status_id, to_status_id, action_code, initiator, reassigns_assignee, is_active
		FROM status_transitions
		WHERE is_active = 1
		ORDER BY from_status_id, action_code
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list transitions", zap.Error(err))
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*entity.StatusTransition
	for rows.Next() {
		var t entity.StatusTransition
		if err := rows.Scan(&t.ID, &t.FromStatusID, &t.ToStatusID, &t.ActionCode, &t.Initiator, &t.ReassignsAssignee, &t.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, &t)
	}
	return transitions, rows.Err()
}

// Verify interface compliance
var _ port.CatalogRepository = (*CatalogRepository)(nil)
