package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/application/workflow"
	"github.com/garyjia/incident-intake/internal/domain/entity"
	domainwf "github.com/garyjia/incident-intake/internal/domain/workflow"
	"github.com/garyjia/incident-intake/internal/infrastructure/persistence/repository"
	"github.com/garyjia/incident-intake/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/incident-intake/internal/infrastructure/persistence/sqlite/sqlitetest"
)

const (
	creatorID = "u-creator"
	officerID = "u-officer"
	otherID   = "u-officer-2"
	citizenID = "u-citizen"
)

type harness struct {
	engine     workflow.Engine
	incidents  port.IncidentRepository
	catalog    *domainwf.Catalog
	// engineWith builds an engine over a different incident repository
	engineWith func(port.IncidentRepository) workflow.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db := sqlitetest.Open(t)
	logger := zap.NewNop()

	users := repository.NewUserRepository(db.DB, logger)
	for _, u := range []*entity.User{
		{ID: creatorID, Username: "creator", RoleCode: "citizen"},
		{ID: officerID, Username: "officer", RoleCode: domainwf.DefaultRole},
		{ID: otherID, Username: "officer2", RoleCode: domainwf.DefaultRole},
		{ID: citizenID, Username: "bystander", RoleCode: "citizen"},
	} {
		u.CreatedAt = time.Now().UTC()
		require.NoError(t, users.Create(ctx, u))
	}

	catalog, err := workflow.LoadCatalog(ctx, repository.NewCatalogRepository(db.DB, logger), domainwf.DefaultRole)
	require.NoError(t, err)

	incidents := repository.NewIncidentRepository(db.DB, logger)
	history := repository.NewHistoryRepository(db.DB, logger)
	tx := sqlite.NewDB(db.DB, logger)
	engineWith := func(repo port.IncidentRepository) workflow.Engine {
		return workflow.NewEngine(catalog, repo, history, users, tx)
	}
	return &harness{engine: engineWith(incidents), incidents: incidents, catalog: catalog, engineWith: engineWith}
}

// frozenReads serves a fixed incident snapshot while writes go to the database
type frozenReads struct {
	port.IncidentRepository
	snapshot *entity.Incident
}

func (f *frozenReads) GetByID(ctx context.Context, id string) (*entity.Incident, error) {
	cp := *f.snapshot
	return &cp, nil
}

func (h *harness) draft(t *testing.T, id string) {
	t.Helper()
	initial := h.catalog.Initial()
	now := time.Now().UTC()
	require.NoError(t, h.incidents.Create(context.Background(), &entity.Incident{
		ID:            id,
		Title:         "Broken streetlight",
		Description:   "Dark corner near the school",
		CreatorUserID: creatorID,
		StatusID:      initial.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
}

func (h *harness) attempt(id, actor string, action domainwf.Action, assignee string) (*workflow.Result, error) {
	req := workflow.AttemptRequest{IncidentID: id, ActorUserID: actor, Action: action}
	if assignee != "" {
		req.ReassignToUserID = &assignee
	}
	return h.engine.Attempt(context.Background(), req)
}

func (h *harness) status(t *testing.T, id string) string {
	t.Helper()
	inc, err := h.incidents.GetByID(context.Background(), id)
	require.NoError(t, err)
	return inc.StatusCode
}

func TestSQLite_HappyPathAndResubmit(t *testing.T) {
	h := newHarness(t)
	h.draft(t, "inc-1")

	res, err := h.attempt("inc-1", creatorID, domainwf.ActionSendToReview, officerID)
	require.NoError(t, err)
	assert.Equal(t, "in_review", res.Incident.StatusCode)
	assert.Equal(t, officerID, res.Incident.Assignee())

	flags, err := h.engine.Flags(context.Background(), "inc-1", officerID)
	require.NoError(t, err)
	assert.True(t, flags.CanAccept)
	assert.True(t, flags.CanReject)

	_, err = h.attempt("inc-1", officerID, domainwf.ActionReject, "")
	require.NoError(t, err)
	assert.Equal(t, "rejected", h.status(t, "inc-1"))

	// resubmission to a different officer
	res, err = h.attempt("inc-1", creatorID, domainwf.ActionSendToReview, otherID)
	require.NoError(t, err)
	assert.Equal(t, otherID, res.Incident.Assignee())

	_, err = h.attempt("inc-1", officerID, domainwf.ActionAccept, "")
	assert.ErrorIs(t, err, domainwf.ErrForbidden, "previous assignee lost the right to decide")

	_, err = h.attempt("inc-1", otherID, domainwf.ActionAccept, "")
	require.NoError(t, err)
	assert.Equal(t, "accepted", h.status(t, "inc-1"))

	flags, err = h.engine.Flags(context.Background(), "inc-1", otherID)
	require.NoError(t, err)
	assert.Empty(t, flags.NextActions)
}

func TestSQLite_Rejections(t *testing.T) {
	h := newHarness(t)
	h.draft(t, "inc-1")

	_, err := h.attempt("inc-1", citizenID, domainwf.ActionSendToReview, officerID)
	assert.ErrorIs(t, err, domainwf.ErrForbidden)

	_, err = h.attempt("inc-1", creatorID, domainwf.ActionAccept, "")
	assert.ErrorIs(t, err, domainwf.ErrInvalidAction)

	_, err = h.attempt("inc-1", creatorID, domainwf.ActionSendToReview, citizenID)
	assert.ErrorIs(t, err, domainwf.ErrInvalidRequest)

	_, err = h.attempt("missing", creatorID, domainwf.ActionSendToReview, officerID)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	assert.Equal(t, "draft", h.status(t, "inc-1"))
	entries, err := h.engine.History(context.Background(), "inc-1")
	require.NoError(t, err)
	assert.Empty(t, entries, "failed attempts leave no trace")
}

func TestSQLite_ConcurrentDecisionsSerialize(t *testing.T) {
	h := newHarness(t)

	for round := 0; round < 5; round++ {
		id := "race-" + string(rune('a'+round))
		h.draft(t, id)
		_, err := h.attempt(id, creatorID, domainwf.ActionSendToReview, officerID)
		require.NoError(t, err)

		var (
			wg     sync.WaitGroup
			start  = make(chan struct{})
			errs   = make([]error, 2)
			action = []domainwf.Action{domainwf.ActionAccept, domainwf.ActionReject}
		)
		for i := range action {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = h.attempt(id, officerID, action[i], "")
			}(i)
		}
		close(start)
		wg.Wait()

		var ok, lost int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case domainwf.KindOf(err) == domainwf.KindConflict, domainwf.KindOf(err) == domainwf.KindInvalidAction:
				// the loser either failed the guarded update or read the new status
				lost++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, lost)

		entries, err := h.engine.History(context.Background(), id)
		require.NoError(t, err)
		require.Len(t, entries, 2, "send_to_review plus exactly one decision")
		assert.Equal(t, h.status(t, id), entries[0].ToStatusCode)
	}
}

func TestSQLite_HistoryMatchesTransitions(t *testing.T) {
	h := newHarness(t)
	h.draft(t, "inc-1")

	steps := []struct {
		actor    string
		action   domainwf.Action
		assignee string
	}{
		{creatorID, domainwf.ActionSendToReview, officerID},
		{officerID, domainwf.ActionReject, ""},
		{creatorID, domainwf.ActionSendToReview, ""},
		{officerID, domainwf.ActionReject, ""},
		{creatorID, domainwf.ActionSendToReview, otherID},
		{otherID, domainwf.ActionAccept, ""},
	}
	for _, s := range steps {
		_, err := h.attempt("inc-1", s.actor, s.action, s.assignee)
		require.NoError(t, err, "%s by %s", s.action, s.actor)
	}

	entries, err := h.engine.History(context.Background(), "inc-1")
	require.NoError(t, err)
	require.Len(t, entries, len(steps))

	// newest first; walk it oldest first
	prev := "draft"
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		step := steps[len(entries)-1-i]
		assert.Equal(t, prev, e.FromStatusCode)
		assert.Equal(t, string(step.action), e.ActionCode)
		assert.Equal(t, step.actor, e.ActorUserID)
		prev = e.ToStatusCode
	}
	assert.Equal(t, "accepted", prev)
	assert.Equal(t, prev, h.status(t, "inc-1"))
}

func TestSQLite_StaleSnapshotAfterStatusRoundTripConflicts(t *testing.T) {
	h := newHarness(t)
	h.draft(t, "inc-1")
	ctx := context.Background()

	_, err := h.attempt("inc-1", creatorID, domainwf.ActionSendToReview, officerID)
	require.NoError(t, err)
	stale, err := h.incidents.GetByID(ctx, "inc-1")
	require.NoError(t, err)

	// in_review -> rejected -> in_review, reassigned to another officer
	_, err = h.attempt("inc-1", officerID, domainwf.ActionReject, "")
	require.NoError(t, err)
	_, err = h.attempt("inc-1", creatorID, domainwf.ActionSendToReview, otherID)
	require.NoError(t, err)

	// the former assignee decides from the read taken before the round trip
	staleEngine := h.engineWith(&frozenReads{IncidentRepository: h.incidents, snapshot: stale})
	_, err = staleEngine.Attempt(ctx, workflow.AttemptRequest{
		IncidentID: "inc-1", ActorUserID: officerID, Action: domainwf.ActionAccept,
	})
	assert.ErrorIs(t, err, domainwf.ErrConflict)

	current, err := h.incidents.GetByID(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, "in_review", current.StatusCode)
	assert.Equal(t, otherID, current.Assignee())
	assert.Equal(t, int64(3), current.Version)

	entries, err := h.engine.History(ctx, "inc-1")
	require.NoError(t, err)
	assert.Len(t, entries, 3, "the stale decision left no history")
}
