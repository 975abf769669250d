package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventease/data"
	"eventease/lifecycle"
	"eventease/models"
)

var (
	testNow    = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	testWindow = 168 * time.Hour
)

func setupStore(t *testing.T) (*Store, *lifecycle.Machine) {
	t.Helper()
	s := NewStore()
	s.Now = func() time.Time { return testNow }

	e := models.NewDraftEvent("ev1", "org1", testNow.Add(-24*time.Hour))
	e.Title = "Launch Night"
	e.Capacity = 2
	e.StartsAt = testNow.Add(30 * 24 * time.Hour)
	e.RegistrationStart = testNow.Add(-24 * time.Hour)
	e.RegistrationEnd = testNow.Add(14 * 24 * time.Hour)
	require.NoError(t, s.CreateEvent(context.Background(), e))

	return s, lifecycle.NewMachine(testWindow)
}

func mustApply(t *testing.T, s *Store, action lifecycle.Action, prior lifecycle.Facts, cmds []lifecycle.Command) {
	t.Helper()
	require.NoError(t, s.Apply(context.Background(), action, prior, cmds))
}

func join(t *testing.T, s *Store, m *lifecycle.Machine, eventID, uid string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	f, err := s.Facts(ctx, eventID, uid)
	require.NoError(t, err)
	_, cmds, err := m.Join(f, at)
	require.NoError(t, err)
	mustApply(t, s, lifecycle.ActionJoin, f, cmds)
}

func invite(t *testing.T, s *Store, m *lifecycle.Machine, eventID, uid, invID string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	f, err := s.Facts(ctx, eventID, uid)
	require.NoError(t, err)
	_, cmds, err := m.Invite(f, invID, at)
	require.NoError(t, err)
	mustApply(t, s, lifecycle.ActionInvite, f, cmds)
}

func TestStore_JoinRecordsWaitlistEntry(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	join(t, s, m, "ev1", "u1", testNow)

	joined, err := s.IsJoined(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.True(t, joined)

	n, err := s.Count(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, err := s.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, e.Waitlist)
}

func TestStore_EntriesOrderedByJoinTime(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	join(t, s, m, "ev1", "u2", testNow)
	join(t, s, m, "ev1", "u1", testNow.Add(time.Minute))

	entries, err := s.Entries(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "u2", entries[0].UID)
	assert.Equal(t, "u1", entries[1].UID)
}

func TestStore_ApplyConflictOnStaleFacts(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	stale, err := s.Facts(ctx, "ev1", "u1")
	require.NoError(t, err)
	_, cmds, err := m.Join(stale, testNow)
	require.NoError(t, err)

	// A racing writer lands first.
	join(t, s, m, "ev1", "u1", testNow)

	err = s.Apply(ctx, lifecycle.ActionJoin, stale, cmds)
	require.Error(t, err)
	var conflict *data.ConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Equal(t, "u1", conflict.UID)

	// The earlier write is intact and not duplicated.
	n, err := s.Count(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_InviteAcceptFlow(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	join(t, s, m, "ev1", "u1", testNow)
	invite(t, s, m, "ev1", "u1", "inv1", testNow)

	f, err := s.Facts(ctx, "ev1", "u1")
	require.NoError(t, err)
	require.NotNil(t, f.Invitation)
	assert.Equal(t, lifecycle.StateInvited, f.State(testNow))

	acceptAt := testNow.Add(time.Hour)
	_, cmds, err := m.Accept(f, "inv1", acceptAt)
	require.NoError(t, err)
	mustApply(t, s, lifecycle.ActionAccept, f, cmds)

	f, err = s.Facts(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateAdmitted, f.State(acceptAt))

	entry, err := s.GetAdmitted(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.True(t, entry.AdmittedAt.Equal(acceptAt))
	require.NotNil(t, entry.AcceptedAt)
	assert.True(t, entry.AcceptedAt.Equal(acceptAt))

	e, err := s.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Empty(t, e.Waitlist)
	assert.Equal(t, []string{"u1"}, e.Admitted)
}

func TestStore_ListActiveExcludesExpired(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	join(t, s, m, "ev1", "u1", testNow)
	invite(t, s, m, "ev1", "u1", "inv1", testNow)

	active, err := s.ListActive(ctx, "u1", testNow)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "inv1", active[0].ID)

	after := testNow.Add(testWindow + time.Second)
	active, err = s.ListActive(ctx, "u1", after)
	require.NoError(t, err)
	assert.Empty(t, active)

	expired, err := s.ListPendingExpired(ctx, after)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "inv1", expired[0].ID)
}

func TestStore_ListenActiveDeliversSnapshotImmediately(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	join(t, s, m, "ev1", "u1", testNow)
	invite(t, s, m, "ev1", "u1", "inv1", testNow)

	var got [][]*models.Invitation
	sub, err := s.ListenActive(ctx, "u1", func(active []*models.Invitation) {
		got = append(got, active)
	})
	require.NoError(t, err)
	defer sub.Remove()

	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	assert.Equal(t, "inv1", got[0][0].ID)
}

func TestStore_ListenActiveNotifiesOnChange(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	join(t, s, m, "ev1", "u1", testNow)

	var got [][]*models.Invitation
	sub, err := s.ListenActive(ctx, "u1", func(active []*models.Invitation) {
		got = append(got, active)
	})
	require.NoError(t, err)
	defer sub.Remove()

	require.Len(t, got, 1)
	assert.Empty(t, got[0])

	invite(t, s, m, "ev1", "u1", "inv1", testNow)

	require.Len(t, got, 2)
	require.Len(t, got[1], 1)
	assert.Equal(t, "inv1", got[1][0].ID)
}

func TestStore_SubscriptionRemoveIsIdempotent(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	calls := 0
	sub, err := s.ListenActive(ctx, "u1", func([]*models.Invitation) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	sub.Remove()
	sub.Remove()

	join(t, s, m, "ev1", "u1", testNow)
	invite(t, s, m, "ev1", "u1", "inv1", testNow)
	assert.Equal(t, 1, calls)
}

func TestStore_DeleteEventCascades(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	join(t, s, m, "ev1", "u1", testNow)
	invite(t, s, m, "ev1", "u1", "inv1", testNow)

	require.NoError(t, s.DeleteEvent(ctx, "ev1"))

	_, err := s.GetEvent(ctx, "ev1")
	assert.ErrorIs(t, err, data.ErrNotFound)

	joined, err := s.IsJoined(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.False(t, joined)

	_, err = s.GetInvitation(ctx, "inv1")
	assert.ErrorIs(t, err, data.ErrNotFound)

	f, err := s.Facts(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateNone, f.State(testNow))
}

func TestStore_DeleteProfileCascades(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProfile(ctx, &models.Profile{UID: "u1", DisplayName: "Maia"}))
	join(t, s, m, "ev1", "u1", testNow)
	join(t, s, m, "ev1", "u2", testNow)
	invite(t, s, m, "ev1", "u1", "inv1", testNow)

	require.NoError(t, s.DeleteProfile(ctx, "u1"))

	_, err := s.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, data.ErrNotFound)

	joined, err := s.IsJoined(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.False(t, joined)

	_, err = s.GetInvitation(ctx, "inv1")
	assert.ErrorIs(t, err, data.ErrNotFound)

	// Other registrants are untouched.
	e, err := s.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, e.Waitlist)
}

func TestStore_UpcomingAndPreviousEvents(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	past := models.NewDraftEvent("ev-past", "org1", testNow.Add(-60*24*time.Hour))
	past.Title = "Winter Meetup"
	past.Capacity = 10
	past.StartsAt = testNow.Add(-7 * 24 * time.Hour)
	require.NoError(t, s.CreateEvent(ctx, past))

	for _, eventID := range []string{"ev1", "ev-past"} {
		f, err := s.Facts(ctx, eventID, "u1")
		require.NoError(t, err)
		_, cmds, err := m.Admit(f, testNow)
		require.NoError(t, err)
		mustApply(t, s, lifecycle.ActionAdmit, f, cmds)
	}

	upcoming, err := s.UpcomingEvents(ctx, "u1", testNow)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "ev1", upcoming[0].ID)

	previous, err := s.PreviousEvents(ctx, "u1", testNow)
	require.NoError(t, err)
	require.Len(t, previous, 1)
	assert.Equal(t, "ev-past", previous[0].ID)
}

func TestStore_OpenEventsFiltersByWindow(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	closed := models.NewDraftEvent("ev-closed", "org1", testNow.Add(-48*time.Hour))
	closed.Title = "Sold Out Show"
	closed.Capacity = 5
	closed.StartsAt = testNow.Add(10 * 24 * time.Hour)
	closed.RegistrationStart = testNow.Add(-48 * time.Hour)
	closed.RegistrationEnd = testNow.Add(-time.Hour)
	require.NoError(t, s.CreateEvent(ctx, closed))

	open, err := s.OpenEvents(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "ev1", open[0].ID)
}

func TestStore_NotificationsNewestFirst(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	for i, kind := range []string{"invited", "accepted", "admitted"} {
		require.NoError(t, s.AppendNotification(ctx, models.NotificationLogEntry{
			ID:      kind,
			UID:     "u1",
			EventID: "ev1",
			Kind:    kind,
			SentAt:  testNow.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := s.ListNotifications(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "admitted", got[0].Kind)
	assert.Equal(t, "accepted", got[1].Kind)
}

func TestStore_RejoinAfterDecline(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	join(t, s, m, "ev1", "u1", testNow)
	invite(t, s, m, "ev1", "u1", "inv1", testNow)

	f, err := s.Facts(ctx, "ev1", "u1")
	require.NoError(t, err)
	_, cmds, err := m.Decline(f, "inv1", testNow.Add(time.Hour))
	require.NoError(t, err)
	mustApply(t, s, lifecycle.ActionDecline, f, cmds)

	// Rejoining detaches the declined invitation and starts a fresh cycle.
	join(t, s, m, "ev1", "u1", testNow.Add(2*time.Hour))

	f, err = s.Facts(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.True(t, f.Waitlisted)
	assert.Nil(t, f.Invitation)
	assert.Equal(t, lifecycle.StateWaitlisted, f.State(testNow.Add(2*time.Hour)))

	// The declined invitation record itself stays on file.
	inv, err := s.GetInvitation(ctx, "inv1")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationDeclined, inv.Status)
}

func TestStore_ExpirySweepDropsPendingListing(t *testing.T) {
	s, m := setupStore(t)
	ctx := context.Background()

	join(t, s, m, "ev1", "u1", testNow)
	invite(t, s, m, "ev1", "u1", "inv1", testNow)

	later := testNow.Add(testWindow + time.Hour)
	pending, err := s.ListPendingExpired(ctx, later)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	f, err := s.Facts(ctx, "ev1", "u1")
	require.NoError(t, err)
	_, cmds, err := m.Expire(f, later)
	require.NoError(t, err)
	mustApply(t, s, lifecycle.ActionExpire, f, cmds)

	pending, err = s.ListPendingExpired(ctx, later)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Only the sweep listing drops the invitation; the pair still reads
	// as holding an expired one.
	f, err = s.Facts(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateExpiredInvitation, f.State(later))
}
