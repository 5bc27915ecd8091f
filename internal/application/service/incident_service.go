package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/garyjia/incident-intake/internal/application/dispatcher"
	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/application/workflow"
	"github.com/garyjia/incident-intake/internal/domain/entity"
	"github.com/garyjia/incident-intake/internal/domain/event"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const (
	maxTitleLength = 200
	defaultLimit   = 50
	maxLimit       = 200
)

// IncidentView is an incident plus what the requesting actor may do with it
type IncidentView struct {
	Incident *entity.Incident
	Flags    domainwf.ActionFlags
}

// CreateIncidentInput carries the fields a reporter supplies
type CreateIncidentInput struct {
	Title       string
	Description string
	// AssigneeUserID optionally pre-selects the reviewing officer
	AssigneeUserID *string
}

// UpdateIncidentInput carries editable fields. Nil means unchanged.
type UpdateIncidentInput struct {
	Title       *string
	Description *string
}

// IncidentService is the use-case layer in front of the workflow engine
type IncidentService interface {
	Create(ctx context.Context, actorUserID string, in CreateIncidentInput) (*IncidentView, error)
	Get(ctx context.Context, id, actorUserID string) (*IncidentView, error)
	List(ctx context.Context, filter port.IncidentFilter) ([]*entity.Incident, error)
	Update(ctx context.Context, id, actorUserID string, in UpdateIncidentInput) (*IncidentView, error)
	Transition(ctx context.Context, req workflow.AttemptRequest) (*IncidentView, error)
	History(ctx context.Context, id string) ([]*entity.StatusHistory, error)
	ExportHistory(ctx context.Context, id string) ([]byte, string, error)
	Statuses() []domainwf.StatusInfo
	Catalog() *domainwf.Catalog
}

type incidentServiceImpl struct {
	engine       workflow.Engine
	incidentRepo port.IncidentRepository
	userRepo     port.UserRepository
	logger       Logger

	analyzer        port.IncidentAnalyzer
	analyzerTimeout time.Duration
	exporter        port.HistoryExporter
	dispatcher      dispatcher.Dispatcher
	now             func() time.Time
}

// IncidentOption configures the incident service
type IncidentOption func(*incidentServiceImpl)

// WithAnalyzer enables triage on creation. Analyzer failures never block creation.
func WithAnalyzer(a port.IncidentAnalyzer, timeout time.Duration) IncidentOption {
	return func(s *incidentServiceImpl) {
		s.analyzer = a
		s.analyzerTimeout = timeout
	}
}

// WithExporter enables history export
func WithExporter(e port.HistoryExporter) IncidentOption {
	return func(s *incidentServiceImpl) {
		s.exporter = e
	}
}

// WithEvents publishes incident lifecycle events
func WithEvents(d dispatcher.Dispatcher) IncidentOption {
	return func(s *incidentServiceImpl) {
		s.dispatcher = d
	}
}

// NewIncidentService creates a new IncidentService
func NewIncidentService(
	engine workflow.Engine,
	incidentRepo port.IncidentRepository,
	userRepo port.UserRepository,
	logger Logger,
	opts ...IncidentOption,
) IncidentService {
	s := &incidentServiceImpl{
		engine:       engine,
		incidentRepo: incidentRepo,
		userRepo:     userRepo,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *incidentServiceImpl) Catalog() *domainwf.Catalog {
	return s.engine.Catalog()
}

func (s *incidentServiceImpl) Statuses() []domainwf.StatusInfo {
	return s.engine.Catalog().Statuses()
}

// Create files a new incident in the catalog's initial status. No history
// entry is written; the ledger only records transitions.
func (s *incidentServiceImpl) Create(ctx context.Context, actorUserID string, in CreateIncidentInput) (*IncidentView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domainwf.InvalidRequest("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, domainwf.InvalidRequest("title must be at most %d characters", maxTitleLength)
	}

	creator, err := s.userRepo.GetByID(ctx, actorUserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if creator == nil {
		return nil, domainwf.Forbidden("", "", "actor %s is not a known user", actorUserID)
	}

	assignee, err := s.resolveAssignee(ctx, in.AssigneeUserID)
	if err != nil {
		return nil, err
	}

	initial := s.engine.Catalog().Initial()
	now := s.now()
	incident := &entity.Incident{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		CreatorUserID:  creator.ID,
		AssigneeUserID: assignee,
		StatusID:       initial.ID,
		StatusCode:     string(initial.Code),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.triage(ctx, incident)

	if err := s.incidentRepo.Create(ctx, incident); err != nil {
		s.logger.Error("Failed to create incident", "error", err, "creator", creator.ID)
		return nil, fmt.Errorf("create incident: %w", err)
	}

	s.logger.Info("Incident created",
		"incident_id", incident.ID,
		"creator", creator.ID,
		"priority", incident.Priority,
	)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeIncidentCreated, incident.ID, creator.ID, map[string]any{
			event.KeyTitle:    incident.Title,
			event.KeyCreator:  incident.CreatorUserID,
			event.KeyToStatus: incident.StatusCode,
		}))
	}

	return &IncidentView{
		Incident: incident,
		Flags:    s.engine.Catalog().ComputeFlags(incident, creator.AsActor()),
	}, nil
}

func (s *incidentServiceImpl) resolveAssignee(ctx context.Context, requested *string) (*string, error) {
	if requested == nil || strings.TrimSpace(*requested) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*requested)
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, domainwf.InvalidRequest("assignee %s not found", id)
	}
	if role := s.engine.Catalog().AssigneeRole(); user.RoleCode != role {
		return nil, domainwf.InvalidRequest("assignee must hold the required role '%s'", role)
	}
	return &id, nil
}

// triage fills priority and suggested actions when an analyzer is configured
func (s *incidentServiceImpl) triage(ctx context.Context, incident *entity.Incident) {
	if s.analyzer == nil {
		return
	}

	actx := ctx
	if s.analyzerTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.analyzerTimeout)
		defer cancel()
	}

	result, err := s.analyzer.Analyze(actx, incident.Title, incident.Description)
	if err != nil {
		s.logger.Error("Incident triage failed, continuing without it", "error", err, "incident_id", incident.ID)
		return
	}
	if result == nil {
		return
	}
	incident.Priority = result.Priority
	incident.SuggestedActions = result.SuggestedActions
}

func (s *incidentServiceImpl) Get(ctx context.Context, id, actorUserID string) (*IncidentView, error) {
	incident, err := s.incidentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	if incident == nil {
		return nil, domainwf.NotFound("incident %s not found", id)
	}

	actor, err := s.userRepo.GetByID(ctx, actorUserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &IncidentView{
		Incident: incident,
		Flags:    s.engine.Catalog().ComputeFlags(incident, actor.AsActor()),
	}, nil
}

func (s *incidentServiceImpl) List(ctx context.Context, filter port.IncidentFilter) ([]*entity.Incident, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.StatusCode != "" {
		if _, ok := s.engine.Catalog().Status(domainwf.Status(filter.StatusCode)); !ok {
			return nil, domainwf.InvalidRequest("unknown status '%s'", filter.StatusCode)
		}
	}

	incidents, err := s.incidentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	if incidents == nil {
		incidents = []*entity.Incident{}
	}
	return incidents, nil
}

// Update edits title and description. Only the creator may edit, and only
// while the incident sits in an editable status.
func (s *incidentServiceImpl) Update(ctx context.Context, id, actorUserID string, in UpdateIncidentInput) (*IncidentView, error) {
	incident, err := s.incidentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	if incident == nil {
		return nil, domainwf.NotFound("incident %s not found", id)
	}

	actorUser, err := s.userRepo.GetByID(ctx, actorUserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	actor := actorUser.AsActor()
	catalog := s.engine.Catalog()
	status := domainwf.Status(incident.StatusCode)

	if !catalog.ComputeFlags(incident, actor).CanEdit {
		if actor.ID != incident.CreatorUserID {
			return nil, domainwf.Forbidden(status, "", "only creator may edit")
		}
		return nil, domainwf.Forbidden(status, "", "incident cannot be edited in status '%s'", status)
	}

	title := incident.Title
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, domainwf.InvalidRequest("title is required")
		}
		if utf8.RuneCountInString(title) > maxTitleLength {
			return nil, domainwf.InvalidRequest("title must be at most %d characters", maxTitleLength)
		}
	}
	description := incident.Description
	if in.Description != nil {
		description = strings.TrimSpace(*in.Description)
	}

	now := s.now()
	changed, err := s.incidentRepo.UpdateDetails(ctx, incident.ID, incident.StatusID, title, description, now)
	if err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}
	if !changed {
		return nil, domainwf.Conflict(status, "edit")
	}

	incident.Title = title
	incident.Description = description
	incident.UpdatedAt = now

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeIncidentUpdated, incident.ID, actor.ID, map[string]any{
			event.KeyTitle: incident.Title,
		}))
	}

	return &IncidentView{Incident: incident, Flags: catalog.ComputeFlags(incident, actor)}, nil
}

func (s *incidentServiceImpl) Transition(ctx context.Context, req workflow.AttemptRequest) (*IncidentView, error) {
	res, err := s.engine.Attempt(ctx, req)
	if err != nil {
		return nil, err
	}
	return &IncidentView{Incident: res.Incident, Flags: res.Flags}, nil
}

func (s *incidentServiceImpl) History(ctx context.Context, id string) ([]*entity.StatusHistory, error) {
	return s.engine.History(ctx, id)
}

// ExportHistory renders the ledger with the configured exporter and
// returns the document with its content type.
func (s *incidentServiceImpl) ExportHistory(ctx context.Context, id string) ([]byte, string, error) {
	if s.exporter == nil {
		return nil, "", fmt.Errorf("history export is not configured")
	}

	incident, err := s.incidentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get incident: %w", err)
	}
	if incident == nil {
		return nil, "", domainwf.NotFound("incident %s not found", id)
	}

	entries, err := s.engine.History(ctx, id)
	if err != nil {
		return nil, "", err
	}

	data, err := s.exporter.Export(incident, entries)
	if err != nil {
		s.logger.Error("Failed to export history", "error", err, "incident_id", id)
		return nil, "", fmt.Errorf("export history: %w", err)
	}
	return data, s.exporter.ContentType(), nil
}
