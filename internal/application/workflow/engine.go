package workflow

import (
	"context"
	"time"

	"github.com/garyjia/incident-intake/internal/domain/entity"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
)

// Engine executes status transitions against the catalog
type Engine interface {
	// Attempt validates and applies one action. Rejections are *domainwf.Error.
	Attempt(ctx context.Context, req AttemptRequest) (*Result, error)

	// Flags computes what actorUserID may do with the incident. Missing
	// incident or actor yields empty flags, not an error.
	Flags(ctx context.Context, incidentID, actorUserID string) (domainwf.ActionFlags, error)

	// History returns the incident's ledger, newest first
	History(ctx context.Context, incidentID string) ([]*entity.StatusHistory, error)

	// Catalog returns the loaded transition catalog
	Catalog() *domainwf.Catalog
}

// AttemptRequest is one transition request
type AttemptRequest struct {
	IncidentID       string
	ActorUserID      string
	Action           domainwf.Action
	Comment          *string
	ReassignToUserID *string
}

// Result is the updated incident plus freshly computed flags
type Result struct {
	Incident *entity.Incident
	Flags    domainwf.ActionFlags
	Entry    *entity.StatusHistory
}

// OutcomeRecorder observes transition attempts
type OutcomeRecorder interface {
	ObserveTransition(action, outcome string, elapsed time.Duration)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
