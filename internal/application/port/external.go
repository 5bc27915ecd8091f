package port

import (
	"context"

	"github.com/garyjia/incident-intake/internal/domain/entity"
)

// Notifier delivers one notification to a user over an external channel
type Notifier interface {
	Notify(ctx context.Context, recipient *entity.User, n *entity.Notification) error
}

// TriageResult is the analyzer's suggestion for a newly filed incident
type TriageResult struct {
	Priority         string
	SuggestedActions string
	Reasoning        string
}

// IncidentAnalyzer suggests a priority and first actions for an incident
type IncidentAnalyzer interface {
	Analyze(ctx context.Context, title, description string) (*TriageResult, error)
}

// HistoryExporter renders an incident's history as a downloadable document
type HistoryExporter interface {
	ContentType() string
	Export(incident *entity.Incident, entries []*entity.StatusHistory) ([]byte, error)
}
