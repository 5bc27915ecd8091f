package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/incident-intake/internal/application/port"
	"github.com/garyjia/incident-intake/internal/domain/entity"
	"github.com/garyjia/incident-intake/internal/infrastructure/persistence/repository"
	"github.com/garyjia/incident-intake/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/incident-intake/internal/infrastructure/persistence/sqlite/sqlitetest"
)

type repos struct {
	tx            *sqlite.DB
	catalog       port.CatalogRepository
	users         port.UserRepository
	incidents     port.IncidentRepository
	history       port.HistoryRepository
	notifications port.NotificationRepository
	statusIDs     map[string]string
}

func setup(t *testing.T) *repos {
	t.Helper()
	db := sqlitetest.Open(t)
	logger := zap.NewNop()

	r := &repos{
		tx:            sqlite.NewDB(db.DB, logger),
		catalog:       repository.NewCatalogRepository(db.DB, logger),
		users:         repository.NewUserRepository(db.DB, logger),
		incidents:     repository.NewIncidentRepository(db.DB, logger),
		history:       repository.NewHistoryRepository(db.DB, logger),
		notifications: repository.NewNotificationRepository(db.DB, logger),
		statusIDs:     map[string]string{},
	}

	statuses, err := r.catalog.ListStatuses(context.Background())
	require.NoError(t, err)
	for _, s := range statuses {
		r.statusIDs[s.Code] = s.ID
	}

	now := time.Now().UTC()
	for _, u := range []*entity.User{
		{ID: "u-creator", Username: "reporter", RoleCode: "citizen", CreatedAt: now},
		{ID: "u-officer", Username: "officer", RoleCode: "officer", LarkOpenID: "ou_123", CreatedAt: now},
	} {
		require.NoError(t, r.users.Create(context.Background(), u))
	}
	return r
}

func (r *repos) newIncident(t *testing.T, id string) *entity.Incident {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	inc := &entity.Incident{
		ID:            id,
		Title:         "Water leak on 5th street",
		Description:   "Pipe burst",
		CreatorUserID: "u-creator",
		StatusID:      r.statusIDs["draft"],
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, r.incidents.Create(context.Background(), inc))
	return inc
}

func TestCatalogRepository_Seed(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	statuses, err := r.catalog.ListStatuses(ctx)
	require.NoError(t, err)
	codes := make([]string, 0, len(statuses))
	for _, s := range statuses {
		codes = append(codes, s.Code)
		assert.Len(t, s.ID, 32, "ids are generated hex")
	}
	assert.Equal(t, []string{"draft", "in_review", "accepted", "rejected"}, codes)
	assert.True(t, statuses[0].IsInitial)
	assert.True(t, statuses[2].IsTerminal)

	transitions, err := r.catalog.ListActiveTransitions(ctx)
	require.NoError(t, err)
	assert.Len(t, transitions, 4)
}

func TestCatalogRepository_UniqueActiveAction(t *testing.T) {
	r := setup(t)

	_, err := r.tx.ExecContext(context.Background(), `
		INSERT INTO status_transitions (id, from_status_id, to_status_id, action_code, initiator, is_active)
		VALUES ('dup', ?, ?, 'accept', 'assignee', 1)`, r.statusIDs["in_review"], r.statusIDs["rejected"])
	assert.Error(t, err)

	_, err = r.tx.ExecContext(context.Background(), `
		INSERT INTO status_transitions (id, from_status_id, to_status_id, action_code, initiator, is_active)
		VALUES ('old', ?, ?, 'accept', 'assignee', 0)`, r.statusIDs["in_review"], r.statusIDs["rejected"])
	assert.NoError(t, err, "inactive duplicates are allowed")
}

func TestUserRepository(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	u, err := r.users.GetByID(ctx, "u-officer")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "officer", u.RoleCode)
	assert.Equal(t, "ou_123", u.LarkOpenID)

	u, err = r.users.GetByUsername(ctx, "reporter")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u-creator", u.ID)

	u, err = r.users.GetByID(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)

	err = r.users.Create(ctx, &entity.User{ID: "u-dup", Username: "reporter", RoleCode: "citizen"})
	assert.Error(t, err)
}

func TestIncidentRepository_CreateAndGet(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	created := r.newIncident(t, "inc-1")

	got, err := r.incidents.GetByID(ctx, "inc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, "draft", got.StatusCode)
	assert.Nil(t, got.AssigneeUserID)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	missing, err := r.incidents.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIncidentRepository_CompareAndUpdateStatus(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	r.newIncident(t, "inc-1")
	officer := "u-officer"

	ok, err := r.incidents.CompareAndUpdateStatus(ctx, entity.StatusUpdate{
		IncidentID:       "inc-1",
		ExpectedStatusID: r.statusIDs["draft"],
		NewStatusID:      r.statusIDs["in_review"],
		Reassign:         true,
		AssigneeUserID:   &officer,
		UpdatedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// stale expectation
	ok, err = r.incidents.CompareAndUpdateStatus(ctx, entity.StatusUpdate{
		IncidentID:       "inc-1",
		ExpectedStatusID: r.statusIDs["draft"],
		NewStatusID:      r.statusIDs["rejected"],
		UpdatedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := r.incidents.GetByID(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, "in_review", got.StatusCode)
	assert.Equal(t, officer, got.Assignee())
	assert.Equal(t, int64(1), got.Version)
}

func TestIncidentRepository_CompareAndUpdateStatus_StatusRoundTrip(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	r.newIncident(t, "inc-1")
	officer, creator := "u-officer", "u-creator"

	apply := func(from, to string, version int64, reassign bool, assignee *string) bool {
		ok, err := r.incidents.CompareAndUpdateStatus(ctx, entity.StatusUpdate{
			IncidentID:       "inc-1",
			ExpectedStatusID: r.statusIDs[from],
			ExpectedVersion:  version,
			NewStatusID:      r.statusIDs[to],
			Reassign:         reassign,
			AssigneeUserID:   assignee,
			UpdatedAt:        time.Now().UTC(),
		})
		require.NoError(t, err)
		return ok
	}

	require.True(t, apply("draft", "in_review", 0, true, &officer))
	// in_review -> rejected -> in_review again, now assigned to the creator
	require.True(t, apply("in_review", "rejected", 1, false, &creator))
	require.True(t, apply("rejected", "in_review", 2, true, &creator))

	// a writer still holding the first in_review read must not land
	assert.False(t, apply("in_review", "accepted", 1, false, &officer))

	got, err := r.incidents.GetByID(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, "in_review", got.StatusCode)
	assert.Equal(t, creator, got.Assignee(), "non-reassigning writes never touch the assignee")
	assert.Equal(t, int64(3), got.Version)
}

func TestIncidentRepository_UpdateDetailsAndList(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	r.newIncident(t, "inc-1")
	r.newIncident(t, "inc-2")

	ok, err := r.incidents.UpdateDetails(ctx, "inc-1", r.statusIDs["draft"], "New title", "New body", time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.incidents.UpdateDetails(ctx, "inc-2", r.statusIDs["in_review"], "x", "y", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := r.incidents.List(ctx, port.IncidentFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "inc-1", all[0].ID, "most recently updated first")
	assert.Equal(t, "New title", all[0].Title)

	drafts, err := r.incidents.List(ctx, port.IncidentFilter{StatusCode: "draft", CreatorUserID: "u-creator", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	none, err := r.incidents.List(ctx, port.IncidentFilter{AssigneeUserID: "u-officer", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistoryRepository_AppendOnlyNewestFirst(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	r.newIncident(t, "inc-1")

	at := time.Now().UTC()
	comment := "looks fine"
	// h3 carries an earlier clock reading than h2; write order still wins
	entries := []*entity.StatusHistory{
		{ID: "h1", FromStatusID: r.statusIDs["draft"], ToStatusID: r.statusIDs["in_review"], ActionCode: "send_to_review", ActorUserID: "u-creator", ChangedAt: at},
		{ID: "h2", FromStatusID: r.statusIDs["in_review"], ToStatusID: r.statusIDs["rejected"], ActionCode: "reject", ActorUserID: "u-officer", Comment: &comment, ChangedAt: at.Add(time.Second)},
		{ID: "h3", FromStatusID: r.statusIDs["rejected"], ToStatusID: r.statusIDs["in_review"], ActionCode: "send_to_review", ActorUserID: "u-creator", ChangedAt: at.Add(-time.Second)},
	}
	for _, e := range entries {
		e.IncidentID = "inc-1"
		require.NoError(t, r.history.Append(ctx, e))
	}

	got, err := r.history.ListByIncident(ctx, "inc-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"h3", "h2", "h1"}, []string{got[0].ID, got[1].ID, got[2].ID}, "ordered by write sequence, not by clock")
	assert.Equal(t, "rejected", got[1].ToStatusCode)
	require.NotNil(t, got[1].Comment)
	assert.Equal(t, comment, *got[1].Comment)
	assert.Nil(t, got[0].Comment)

	_, err = r.tx.ExecContext(ctx, "UPDATE incident_status_history SET comment = 'x'")
	assert.ErrorContains(t, err, "append-only")
	_, err = r.tx.ExecContext(ctx, "DELETE FROM incident_status_history")
	assert.ErrorContains(t, err, "append-only")

	empty, err := r.history.ListByIncident(ctx, "other")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTransaction_RollbackDiscardsBothWrites(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	r.newIncident(t, "inc-1")

	err := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := r.incidents.CompareAndUpdateStatus(txCtx, entity.StatusUpdate{
			IncidentID:       "inc-1",
			ExpectedStatusID: r.statusIDs["draft"],
			NewStatusID:      r.statusIDs["in_review"],
			UpdatedAt:        time.Now().UTC(),
		})
		require.NoError(t, err)
		require.True(t, ok)

		// unknown actor violates the foreign key
		return r.history.Append(txCtx, &entity.StatusHistory{
			ID: "h1", IncidentID: "inc-1",
			FromStatusID: r.statusIDs["draft"], ToStatusID: r.statusIDs["in_review"],
			ActionCode: "send_to_review", ActorUserID: "ghost", ChangedAt: time.Now().UTC(),
		})
	})
	require.Error(t, err)

	got, err := r.incidents.GetByID(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, "draft", got.StatusCode)

	entries, err := r.history.ListByIncident(ctx, "inc-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNotificationRepository_Lifecycle(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	r.newIncident(t, "inc-1")

	base := time.Now().UTC()
	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, r.notifications.Create(ctx, &entity.Notification{
			ID: id, UserID: "u-officer", IncidentID: "inc-1",
			TypeCode: entity.NotificationTypeIncidentAssigned, Title: "Incident assigned", Message: "m",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	pending, err := r.notifications.GetPending(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "n1", pending[0].ID)
	assert.Equal(t, entity.NotificationStatusPending, pending[0].Status)

	require.NoError(t, r.notifications.MarkSent(ctx, "n1", time.Now().UTC()))
	require.NoError(t, r.notifications.MarkFailed(ctx, "n2", "timeout", false))
	require.NoError(t, r.notifications.MarkFailed(ctx, "n3", "no open id", true))

	pending, err = r.notifications.GetPending(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "n2", pending[0].ID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "timeout", pending[0].LastError)

	pending, err = r.notifications.GetPending(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "attempt limit excludes retried rows")

	all, err := r.notifications.ListByUser(ctx, "u-officer", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"n3", "n2", "n1"}, []string{all[0].ID, all[1].ID, all[2].ID}, "newest first")
	assert.Equal(t, entity.NotificationStatusSent, all[2].Status)
	assert.NotNil(t, all[2].SentAt)
	assert.Equal(t, entity.NotificationStatusFailed, all[0].Status)
}

func TestNotificationRepository_Inbox(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	r.newIncident(t, "inc-1")

	base := time.Now().UTC()
	for i, n := range []struct{ id, user string }{
		{"n1", "u-officer"}, {"n2", "u-officer"}, {"n3", "u-officer"}, {"c1", "u-creator"},
	} {
		require.NoError(t, r.notifications.Create(ctx, &entity.Notification{
			ID: n.id, UserID: n.user, IncidentID: "inc-1",
			TypeCode: entity.NotificationTypeIncidentAssigned, Title: "t", Message: "m",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	stats, err := r.notifications.Stats(ctx, "u-officer")
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationStats{Total: 3, Unread: 3}, *stats)

	page, err := r.notifications.ListByUser(ctx, "u-officer", false, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"n2", "n1"}, []string{page[0].ID, page[1].ID})

	firstRead := base.Add(time.Minute)
	ok, err := r.notifications.MarkRead(ctx, "n1", "u-officer", firstRead)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.notifications.MarkRead(ctx, "n1", "u-officer", firstRead.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok, "marking twice is not an error")

	ok, err = r.notifications.MarkRead(ctx, "c1", "u-officer", firstRead)
	require.NoError(t, err)
	assert.False(t, ok, "someone else's notification")

	unread, err := r.notifications.ListByUser(ctx, "u-officer", true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	all, err := r.notifications.ListByUser(ctx, "u-officer", false, 10, 0)
	require.NoError(t, err)
	require.NotNil(t, all[2].ReadAt)
	assert.True(t, firstRead.Equal(*all[2].ReadAt), "first read time is kept")
	assert.False(t, all[0].IsRead())

	changed, err := r.notifications.MarkAllRead(ctx, "u-officer", base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	stats, err = r.notifications.Stats(ctx, "u-officer")
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationStats{Total: 3, Unread: 0}, *stats)

	ok, err = r.notifications.Delete(ctx, "c1", "u-officer")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.notifications.Delete(ctx, "n2", "u-officer")
	require.NoError(t, err)
	assert.True(t, ok)

	stats, err = r.notifications.Stats(ctx, "u-officer")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	stats, err = r.notifications.Stats(ctx, "u-creator")
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationStats{Total: 1, Unread: 1}, *stats)

	empty, err := r.notifications.ListByUser(ctx, "nobody", false, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
