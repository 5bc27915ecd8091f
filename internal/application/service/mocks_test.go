package service

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/application/workflow"
	"github.com/garyjia/incident-intake/internal/domain/entity"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockIncidentRepo struct {
	createFunc        func(ctx context.Context, incident *entity.Incident) error
	getByIDFunc       func(ctx context.Context, id string) (*entity.Incident, error)
	listFunc          func(ctx context.Context, filter port.IncidentFilter) ([]*entity.Incident, error)
	updateDetailsFunc func(ctx context.Context, id, expectedStatusID, title, description string, updatedAt time.Time) (bool, error)
}

func (m *mockIncidentRepo) Create(ctx context.Context, incident *entity.Incident) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, incident)
	}
	return nil
}

func (m *mockIncidentRepo) GetByID(ctx context.Context, id string) (*entity.Incident, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockIncidentRepo) List(ctx context.Context, filter port.IncidentFilter) ([]*entity.Incident, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockIncidentRepo) UpdateDetails(ctx context.Context, id, expectedStatusID, title, description string, updatedAt time.Time) (bool, error) {
	if m.updateDetailsFunc != nil {
		return m.updateDetailsFunc(ctx, id, expectedStatusID, title, description, updatedAt)
	}
	return true, nil
}

func (m *mockIncidentRepo) CompareAndUpdateStatus(ctx context.Context, update entity.StatusUpdate) (bool, error) {
	return false, nil
}

type mockUserRepo struct {
	users map[string]*entity.User
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return nil, nil
}

type mockEngine struct {
	catalog     *domainwf.Catalog
	attemptFunc func(ctx context.Context, req workflow.AttemptRequest) (*workflow.Result, error)
	historyFunc func(ctx context.Context, incidentID string) ([]*entity.StatusHistory, error)
}

func (m *mockEngine) Attempt(ctx context.Context, req workflow.AttemptRequest) (*workflow.Result, error) {
	return m.attemptFunc(ctx, req)
}

func (m *mockEngine) Flags(ctx context.Context, incidentID, actorUserID string) (domainwf.ActionFlags, error) {
	return domainwf.ActionFlags{}, nil
}

func (m *mockEngine) History(ctx context.Context, incidentID string) ([]*entity.StatusHistory, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, incidentID)
	}
	return []*entity.StatusHistory{}, nil
}

func (m *mockEngine) Catalog() *domainwf.Catalog {
	return m.catalog
}

type mockAnalyzer struct {
	result *port.TriageResult
	err    error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, title, description string) (*port.TriageResult, error) {
	return m.result, m.err
}

type mockExporter struct {
	entries []*entity.StatusHistory
}

func (m *mockExporter) ContentType() string { return "text/csv" }

func (m *mockExporter) Export(incident *entity.Incident, entries []*entity.StatusHistory) ([]byte, error) {
	m.entries = entries
	return []byte("ok"), nil
}

type mockNotificationRepo struct {
	mu       sync.Mutex
	created  []*entity.Notification
	pending  []*entity.Notification
	sent     []string
	failed   map[string]bool
	getErr   error
	statsErr error

	lastLimit, lastOffset int
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) GetPending(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error) {
	return m.pending, m.getErr
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockNotificationRepo) MarkFailed(ctx context.Context, id string, errMsg string, final bool) error {
	if m.failed == nil {
		m.failed = map[string]bool{}
	}
	m.failed[id] = final
	return nil
}

// the inbox methods operate on created
func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit, m.lastOffset = limit, offset
	out := []*entity.Notification{}
	for _, n := range m.created {
		if n.UserID == userID && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) Stats(ctx context.Context, userID string) (*entity.NotificationStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	var stats entity.NotificationStats
	for _, n := range m.created {
		if n.UserID != userID {
			continue
		}
		stats.Total++
		if n.ReadAt == nil {
			stats.Unread++
		}
	}
	return &stats, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string, readAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.created {
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				n.ReadAt = &readAt
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for _, n := range m.created {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &readAt
			changed++
		}
	}
	return changed, nil
}

func (m *mockNotificationRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.created {
		if n.ID == id && n.UserID == userID {
			m.created = append(m.created[:i], m.created[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type mockNotifier struct {
	notifyFunc func(ctx context.Context, recipient *entity.User, n *entity.Notification) error
}

func (m *mockNotifier) Notify(ctx context.Context, recipient *entity.User, n *entity.Notification) error {
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, recipient, n)
	}
	return nil
}
