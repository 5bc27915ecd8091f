package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/incident-intake/internal/application/dispatcher"
	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/domain/entity"
	"github.com/garyjia/incident-intake/internal/domain/event"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	catalog      *domainwf.Catalog
	incidentRepo port.IncidentRepository
	historyRepo  port.HistoryRepository
	userRepo     port.UserRepository
	txManager    port.TransactionManager

	dispatcher dispatcher.Dispatcher
	recorder   OutcomeRecorder
	logger     Logger
	now        func() time.Time
	newID      func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithRecorder sets the outcome recorder (metrics)
func WithRecorder(r OutcomeRecorder) EngineOption {
	return func(e *engineImpl) {
		e.recorder = r
	}
}

// WithLogger sets a logger for the engine
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	catalog *domainwf.Catalog,
	incidentRepo port.IncidentRepository,
	historyRepo port.HistoryRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		catalog:      catalog,
		incidentRepo: incidentRepo,
		historyRepo:  historyRepo,
		userRepo:     userRepo,
		txManager:    txManager,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Catalog() *domainwf.Catalog {
	return e.catalog
}

func (e *engineImpl) Attempt(ctx context.Context, req AttemptRequest) (res *Result, err error) {
	start := time.Now()
	defer func() {
		e.observe(req, err, time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	incident, err := e.incidentRepo.GetByID(ctx, req.IncidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load incident: %w", err)
	}
	if incident == nil {
		return nil, domainwf.NotFound("incident %s not found", req.IncidentID)
	}
	from := domainwf.Status(incident.StatusCode)

	user, err := e.userRepo.GetByID(ctx, req.ActorUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}
	if user == nil {
		return nil, domainwf.Forbidden(from, req.Action, "actor %s is not a known user", req.ActorUserID)
	}
	actor := user.AsActor()

	tr, ok := e.catalog.Lookup(from, req.Action)
	if !ok {
		return nil, domainwf.InvalidAction(from, req.Action)
	}

	if err := e.catalog.Authorize(tr, incident, actor); err != nil {
		return nil, err
	}

	assignee := incident.AssigneeUserID
	if tr.Reassigns {
		assignee, err = e.resolveAssignee(ctx, incident, req.ReassignToUserID)
		if err != nil {
			return nil, err
		}
	}

	target, ok := e.catalog.Status(tr.To)
	if !ok {
		return nil, fmt.Errorf("catalog has no status %s", tr.To)
	}

	now := e.now()
	entry := &entity.StatusHistory{
		ID:             e.newID(),
		IncidentID:     incident.ID,
		FromStatusID:   incident.StatusID,
		ToStatusID:     target.ID,
		FromStatusCode: string(from),
		ToStatusCode:   string(tr.To),
		ActionCode:     string(tr.Action),
		ActorUserID:    actor.ID,
		Comment:        normalizeComment(req.Comment),
		ChangedAt:      now,
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		changed, err := e.incidentRepo.CompareAndUpdateStatus(txCtx, entity.StatusUpdate{
			IncidentID:       incident.ID,
			ExpectedStatusID: incident.StatusID,
			ExpectedVersion:  incident.Version,
			NewStatusID:      target.ID,
			Reassign:         tr.Reassigns,
			AssigneeUserID:   assignee,
			UpdatedAt:        now,
		})
		if err != nil {
			return fmt.Errorf("failed to update incident status: %w", err)
		}
		if !changed {
			return domainwf.Conflict(from, req.Action)
		}

		if err := e.historyRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated := *incident
	updated.StatusID = target.ID
	updated.StatusCode = string(tr.To)
	updated.AssigneeUserID = assignee
	updated.Version = incident.Version + 1
	updated.UpdatedAt = now

	if e.logger != nil {
		e.logger.Info("Incident status changed",
			"incident_id", updated.ID,
			"action", tr.Action,
			"from", from,
			"to", tr.To,
			"actor", actor.ID,
		)
	}

	e.publish(ctx, &updated, tr, entry)

	return &Result{
		Incident: &updated,
		Flags:    e.catalog.ComputeFlags(&updated, actor),
		Entry:    entry,
	}, nil
}

// resolveAssignee picks the explicit target or keeps the current assignee.
// An explicit target must exist and hold the assignee role.
func (e *engineImpl) resolveAssignee(ctx context.Context, incident *entity.Incident, requested *string) (*string, error) {
	if requested == nil || strings.TrimSpace(*requested) == "" {
		if incident.AssigneeUserID == nil {
			return nil, domainwf.InvalidRequest("assignee required")
		}
		return incident.AssigneeUserID, nil
	}

	candidateID := strings.TrimSpace(*requested)
	candidate, err := e.userRepo.GetByID(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignee: %w", err)
	}
	if candidate == nil {
		return nil, domainwf.InvalidRequest("assignee %s not found", candidateID)
	}
	if candidate.RoleCode != e.catalog.AssigneeRole() {
		return nil, domainwf.InvalidRequest("assignee must hold the required role '%s'", e.catalog.AssigneeRole())
	}
	return &candidateID, nil
}

func (e *engineImpl) Flags(ctx context.Context, incidentID, actorUserID string) (domainwf.ActionFlags, error) {
	incident, err := e.incidentRepo.GetByID(ctx, incidentID)
	if err != nil {
		return domainwf.ActionFlags{}, fmt.Errorf("failed to load incident: %w", err)
	}
	user, err := e.userRepo.GetByID(ctx, actorUserID)
	if err != nil {
		return domainwf.ActionFlags{}, fmt.Errorf("failed to load actor: %w", err)
	}
	return e.catalog.ComputeFlags(incident, user.AsActor()), nil
}

func (e *engineImpl) History(ctx context.Context, incidentID string) ([]*entity.StatusHistory, error) {
	incident, err := e.incidentRepo.GetByID(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load incident: %w", err)
	}
	if incident == nil {
		return nil, domainwf.NotFound("incident %s not found", incidentID)
	}

	entries, err := e.historyRepo.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	if entries == nil {
		entries = []*entity.StatusHistory{}
	}
	return entries, nil
}

// publish emits post-commit events. Delivery is asynchronous and can never
// undo the transition.
func (e *engineImpl) publish(ctx context.Context, incident *entity.Incident, tr domainwf.Transition, entry *entity.StatusHistory) {
	if e.dispatcher == nil {
		return
	}

	changed := event.NewEvent(event.TypeStatusChanged, incident.ID, entry.ActorUserID, map[string]any{
		event.KeyFromStatus: entry.FromStatusCode,
		event.KeyToStatus:   entry.ToStatusCode,
		event.KeyAction:     entry.ActionCode,
		event.KeyCreator:    incident.CreatorUserID,
		event.KeyAssignee:   incident.Assignee(),
		event.KeyTitle:      incident.Title,
		event.KeyComment:    entry.Comment,
	})
	e.dispatcher.DispatchAsync(ctx, changed)

	if tr.Reassigns && incident.AssigneeUserID != nil {
		e.dispatcher.DispatchAsync(ctx, changed.Correlated(event.TypeIncidentAssigned, map[string]any{
			event.KeyAssignee: incident.Assignee(),
			event.KeyTitle:    incident.Title,
			event.KeyToStatus: entry.ToStatusCode,
		}))
	}
}

func (e *engineImpl) observe(req AttemptRequest, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = string(domainwf.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}

	if e.recorder != nil {
		e.recorder.ObserveTransition(string(req.Action), outcome, elapsed)
	}
	if err != nil && outcome == "error" && e.logger != nil {
		e.logger.Error("Transition failed",
			"incident_id", req.IncidentID,
			"action", req.Action,
			"actor", req.ActorUserID,
			"error", err,
		)
	}
}

func normalizeComment(c *string) *string {
	if c == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*c)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
