package lifecycle

import (
	"time"

	"eventease/models"
)

// Machine decides lifecycle transitions. Window is the invitation validity
// window (expiresAt = issuedAt + Window).
type Machine struct {
	Window time.Duration
}

func NewMachine(window time.Duration) *Machine {
	return &Machine{Window: window}
}

// Join puts the user on the waitlist. Joining while already waitlisted is a
// no-op success; retried taps must not duplicate entries or fail. A user who
// declined an earlier invitation may rejoin: the resolved invitation is
// detached from the pair and a fresh cycle starts.
func (m *Machine) Join(f Facts, now time.Time) (Facts, []Command, error) {
	switch st := f.State(now); st {
	case StateWaitlisted:
		return f, nil, nil
	case StateNone, StateDeclined:
		var cmds []Command
		if f.Invitation != nil {
			cmds = append(cmds, Command{Op: OpClearCurrentInvitation, EventID: f.EventID, UID: f.UID})
		}
		entry := &models.WaitlistEntry{EventID: f.EventID, UID: f.UID, JoinedAt: now}
		cmds = append(cmds,
			Command{Op: OpCreateWaitlistEntry, EventID: f.EventID, UID: f.UID, Waitlist: entry},
			Command{Op: OpAppendEventWaitlist, EventID: f.EventID, UID: f.UID},
		)
		f.Invitation = nil
		f.Waitlisted = true
		return f, cmds, nil
	default:
		return f, nil, preconditionErr(ActionJoin, f, st)
	}
}

// Leave removes a waiting user. A user holding an expired invitation is
// still on the waitlist and may leave the same way.
func (m *Machine) Leave(f Facts, now time.Time) (Facts, []Command, error) {
	st := f.State(now)
	if st != StateWaitlisted && st != StateExpiredInvitation {
		return f, nil, preconditionErr(ActionLeave, f, st)
	}
	cmds := []Command{
		{Op: OpRemoveWaitlistEntry, EventID: f.EventID, UID: f.UID},
		{Op: OpRemoveEventWaitlist, EventID: f.EventID, UID: f.UID},
	}
	f.Waitlisted = false
	return f, cmds, nil
}

// Invite issues a pending invitation to a waitlisted user. A user whose
// previous invitation expired is re-invitable.
func (m *Machine) Invite(f Facts, invitationID string, now time.Time) (Facts, []Command, error) {
	st := f.State(now)
	if st != StateWaitlisted && st != StateExpiredInvitation {
		return f, nil, preconditionErr(ActionInvite, f, st)
	}
	inv := &models.Invitation{
		ID:        invitationID,
		EventID:   f.EventID,
		UID:       f.UID,
		Status:    models.InvitationPending,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.Window),
	}
	cmds := []Command{
		{Op: OpCreateInvitation, EventID: f.EventID, UID: f.UID, Invitation: inv},
	}
	f.Invitation = inv
	return f, cmds, nil
}

// Accept resolves a live invitation into admission. The invitation must be
// the pair's current one and must not have expired.
func (m *Machine) Accept(f Facts, invitationID string, now time.Time) (Facts, []Command, error) {
	st := f.State(now)
	if st != StateInvited || f.Invitation == nil || f.Invitation.ID != invitationID {
		return f, nil, preconditionErr(ActionAccept, f, st)
	}
	acceptedAt := now
	entry := &models.AdmittedEntry{
		EventID:    f.EventID,
		UID:        f.UID,
		AdmittedAt: now,
		AcceptedAt: &acceptedAt,
	}
	cmds := []Command{
		{Op: OpSetInvitationStatus, EventID: f.EventID, UID: f.UID, InvitationID: invitationID, Status: models.InvitationAccepted},
		{Op: OpCreateAdmittedEntry, EventID: f.EventID, UID: f.UID, Admitted: entry},
		{Op: OpRemoveWaitlistEntry, EventID: f.EventID, UID: f.UID},
		{Op: OpRemoveEventWaitlist, EventID: f.EventID, UID: f.UID},
		{Op: OpAppendEventAdmitted, EventID: f.EventID, UID: f.UID},
	}
	next := f
	inv := *f.Invitation
	inv.Status = models.InvitationAccepted
	next.Invitation = &inv
	next.Waitlisted = false
	next.Admitted = true
	return next, cmds, nil
}

// Decline resolves a live invitation into a terminal decline and drops the
// user from the waitlist.
func (m *Machine) Decline(f Facts, invitationID string, now time.Time) (Facts, []Command, error) {
	st := f.State(now)
	if st != StateInvited || f.Invitation == nil || f.Invitation.ID != invitationID {
		return f, nil, preconditionErr(ActionDecline, f, st)
	}
	cmds := []Command{
		{Op: OpSetInvitationStatus, EventID: f.EventID, UID: f.UID, InvitationID: invitationID, Status: models.InvitationDeclined},
		{Op: OpRemoveWaitlistEntry, EventID: f.EventID, UID: f.UID},
		{Op: OpRemoveEventWaitlist, EventID: f.EventID, UID: f.UID},
	}
	next := f
	inv := *f.Invitation
	inv.Status = models.InvitationDeclined
	next.Invitation = &inv
	next.Waitlisted = false
	return next, cmds, nil
}

// Admit is the direct organizer/admin admission, bypassing the invitation
// round-trip. AcceptedAt stays unset until the entrant confirms.
func (m *Machine) Admit(f Facts, now time.Time) (Facts, []Command, error) {
	st := f.State(now)
	if st != StateWaitlisted && st != StateNone && st != StateExpiredInvitation {
		return f, nil, preconditionErr(ActionAdmit, f, st)
	}
	entry := &models.AdmittedEntry{EventID: f.EventID, UID: f.UID, AdmittedAt: now}
	cmds := []Command{
		{Op: OpCreateAdmittedEntry, EventID: f.EventID, UID: f.UID, Admitted: entry},
		{Op: OpAppendEventAdmitted, EventID: f.EventID, UID: f.UID},
	}
	if f.Waitlisted {
		cmds = append(cmds,
			Command{Op: OpRemoveWaitlistEntry, EventID: f.EventID, UID: f.UID},
			Command{Op: OpRemoveEventWaitlist, EventID: f.EventID, UID: f.UID},
		)
	}
	f.Waitlisted = false
	f.Admitted = true
	return f, cmds, nil
}

// Expire observes that a pending invitation passed its expiry instant. No
// store mutation is required: a pending invitation past expiresAt already
// reads as inactive everywhere. The sweep exists so the transition is
// noticed and notified exactly once.
func (m *Machine) Expire(f Facts, now time.Time) (Facts, []Command, error) {
	st := f.State(now)
	if st != StateExpiredInvitation {
		return f, nil, preconditionErr(ActionExpire, f, st)
	}
	return f, nil, nil
}
