package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventease/data"
	"eventease/data/memory"
	"eventease/lifecycle"
	"eventease/models"
)

var (
	testNow    = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	testWindow = 168 * time.Hour
)

type fixture struct {
	store   *memory.Store
	service *RegistrationService
	sweeper *ExpirySweeper
	clock   *time.Time
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	clock := testNow
	now := func() time.Time { return clock }

	store := memory.NewStore()
	store.Now = now

	machine := lifecycle.NewMachine(testWindow)
	service := NewRegistrationService(store, machine, NewNotifier(nil), nil)
	service.Now = now

	sweeper := &ExpirySweeper{
		Store:    store,
		Machine:  machine,
		Notifier: NewNotifier(nil),
		Now:      now,
		Every:    time.Minute,
		stopChan: make(chan struct{}),
		noticed:  make(map[string]bool),
	}

	e := models.NewDraftEvent("ev1", "org1", testNow.Add(-24*time.Hour))
	e.Title = "Launch Night"
	e.Capacity = 2
	e.StartsAt = testNow.Add(30 * 24 * time.Hour)
	e.RegistrationStart = testNow.Add(-24 * time.Hour)
	e.RegistrationEnd = testNow.Add(14 * 24 * time.Hour)
	require.NoError(t, store.CreateEvent(context.Background(), e))

	return &fixture{store: store, service: service, sweeper: sweeper, clock: &clock}
}

func TestRegistrationService_JoinAndStatus(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))

	state, err := fx.service.Status(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateWaitlisted, state)

	active, err := fx.service.IsActive(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.True(t, active)

	n, err := fx.service.WaitlistCount(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistrationService_JoinIsIdempotent(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))
	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))

	n, err := fx.service.WaitlistCount(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistrationService_JoinRejectsClosedRegistration(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	*fx.clock = testNow.Add(15 * 24 * time.Hour)

	err := fx.service.Join(ctx, "ev1", "u1")
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestRegistrationService_JoinUnknownEvent(t *testing.T) {
	fx := setupFixture(t)

	err := fx.service.Join(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestRegistrationService_InviteAcceptFlow(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))

	inv, err := fx.service.Invite(ctx, "ev1", "u1")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.True(t, inv.ExpiresAt.Equal(testNow.Add(testWindow)))

	state, err := fx.service.Status(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateInvited, state)

	require.NoError(t, fx.service.Accept(ctx, "ev1", "u1", inv.ID))

	state, err = fx.service.Status(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateAdmitted, state)

	// Admission is recorded with the acceptance timestamp.
	entry, err := fx.store.GetAdmitted(ctx, "ev1", "u1")
	require.NoError(t, err)
	require.NotNil(t, entry.AcceptedAt)

	// Both the invite and the admission were logged.
	log, err := fx.service.Notifications(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "admitted", log[0].Kind)
	assert.Equal(t, "invited", log[1].Kind)
}

func TestRegistrationService_DeclineReleasesSpot(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))
	inv, err := fx.service.Invite(ctx, "ev1", "u1")
	require.NoError(t, err)

	require.NoError(t, fx.service.Decline(ctx, "ev1", "u1", inv.ID))

	state, err := fx.service.Status(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateDeclined, state)

	admitted, err := fx.store.IsAdmitted(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.False(t, admitted)

	n, err := fx.service.WaitlistCount(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRegistrationService_RejoinAfterDecline(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))
	inv, err := fx.service.Invite(ctx, "ev1", "u1")
	require.NoError(t, err)
	require.NoError(t, fx.service.Decline(ctx, "ev1", "u1", inv.ID))

	// Declining is final for that invitation, not for the event: the user
	// can rejoin the waitlist and start over, at any later time.
	*fx.clock = testNow.Add(48 * time.Hour)
	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))

	state, err := fx.service.Status(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateWaitlisted, state)

	// The fresh cycle runs like the first one.
	inv2, err := fx.service.Invite(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.NotEqual(t, inv.ID, inv2.ID)
	require.NoError(t, fx.service.Accept(ctx, "ev1", "u1", inv2.ID))

	state, err = fx.service.Status(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateAdmitted, state)
}

func TestRegistrationService_AcceptAfterWindowFails(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))
	inv, err := fx.service.Invite(ctx, "ev1", "u1")
	require.NoError(t, err)

	*fx.clock = testNow.Add(testWindow + time.Hour)

	err = fx.service.Accept(ctx, "ev1", "u1", inv.ID)
	require.Error(t, err)
	var precondition *lifecycle.PreconditionError
	require.True(t, errors.As(err, &precondition))
	assert.Equal(t, lifecycle.StateExpiredInvitation, precondition.From)
}

func TestRegistrationService_ReinviteAfterExpiry(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))
	first, err := fx.service.Invite(ctx, "ev1", "u1")
	require.NoError(t, err)

	*fx.clock = testNow.Add(testWindow + time.Hour)

	second, err := fx.service.Invite(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	state, err := fx.service.Status(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateInvited, state)
}

func TestRegistrationService_AdmitDirectly(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Admit(ctx, "ev1", "u1"))

	state, err := fx.service.Status(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateAdmitted, state)

	// Direct admission has no acceptance timestamp.
	entry, err := fx.store.GetAdmitted(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Nil(t, entry.AcceptedAt)
}

func TestRegistrationService_CapacityReached(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Admit(ctx, "ev1", "u1"))
	require.NoError(t, fx.service.Admit(ctx, "ev1", "u2"))

	err := fx.service.Admit(ctx, "ev1", "u3")
	assert.ErrorIs(t, err, ErrCapacityReached)

	require.NoError(t, fx.service.Join(ctx, "ev1", "u3"))
	_, err = fx.service.Invite(ctx, "ev1", "u3")
	assert.ErrorIs(t, err, ErrCapacityReached)
}

func TestRegistrationService_ListActiveInvitations(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))
	inv, err := fx.service.Invite(ctx, "ev1", "u1")
	require.NoError(t, err)

	active, err := fx.service.ListActiveInvitations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, inv.ID, active[0].ID)

	*fx.clock = testNow.Add(testWindow + time.Hour)

	active, err = fx.service.ListActiveInvitations(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestExpirySweeper_NotifiesOnce(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))
	_, err := fx.service.Invite(ctx, "ev1", "u1")
	require.NoError(t, err)

	*fx.clock = testNow.Add(testWindow + time.Hour)

	fx.sweeper.SweepOnce(ctx)
	fx.sweeper.SweepOnce(ctx)

	log, err := fx.service.Notifications(ctx, "u1", 0)
	require.NoError(t, err)

	expiredCount := 0
	for _, entry := range log {
		if entry.Kind == "expired" {
			expiredCount++
		}
	}
	assert.Equal(t, 1, expiredCount)

	// The user stays waitlisted and re-invitable after expiry.
	state, err := fx.service.Status(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateExpiredInvitation, state)

	// A swept invitation leaves the pending listing, so the sweeper holds
	// no per-invitation bookkeeping for it.
	assert.Empty(t, fx.sweeper.noticed)
}

func TestRegistrationService_LeaveAfterExpiry(t *testing.T) {
	fx := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Join(ctx, "ev1", "u1"))
	_, err := fx.service.Invite(ctx, "ev1", "u1")
	require.NoError(t, err)

	*fx.clock = testNow.Add(testWindow + time.Hour)

	require.NoError(t, fx.service.Leave(ctx, "ev1", "u1"))

	active, err := fx.service.IsActive(ctx, "ev1", "u1")
	require.NoError(t, err)
	assert.False(t, active)
}
