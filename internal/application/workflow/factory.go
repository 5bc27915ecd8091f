package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/incident-intake/internal/application/port"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
)

// LoadCatalog reads the status reference tables and builds the catalog.
// Transition rows that reference unknown status ids fail the build.
func LoadCatalog(ctx context.Context, repo port.CatalogRepository, assigneeRole string) (*domainwf.Catalog, error) {
	statuses, err := repo.ListStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	transitions, err := repo.ListActiveTransitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}

	builder := domainwf.NewBuilder(assigneeRole)
	codes := make(map[string]domainwf.Status, len(statuses))
	for _, s := range statuses {
		code := domainwf.Status(s.Code)
		codes[s.ID] = code
		builder.AddStatus(domainwf.StatusInfo{
			ID:       s.ID,
			Code:     code,
			Name:     s.Name,
			NameAr:   s.NameAr,
			Initial:  s.IsInitial,
			Terminal: s.IsTerminal,
			Editable: s.IsEditable,
		})
	}

	for _, t := range transitions {
		if !t.IsActive {
			continue
		}
		from, ok := codes[t.FromStatusID]
		if !ok {
			return nil, fmt.Errorf("%w: transition %s references unknown status id %s", domainwf.ErrInvalidCatalog, t.ID, t.FromStatusID)
		}
		to, ok := codes[t.ToStatusID]
		if !ok {
			return nil, fmt.Errorf("%w: transition %s references unknown status id %s", domainwf.ErrInvalidCatalog, t.ID, t.ToStatusID)
		}
		initiator, err := domainwf.ParseInitiator(t.Initiator)
		if err != nil {
			return nil, fmt.Errorf("transition %s: %w", t.ID, err)
		}

		opts := []domainwf.PermitOption{domainwf.WithTransitionID(t.ID)}
		if t.ReassignsAssignee {
			opts = append(opts, domainwf.Reassigning())
		}
		builder.Configure(from).Permit(domainwf.Action(t.ActionCode), to, initiator, opts...)
	}

	return builder.Build()
}
