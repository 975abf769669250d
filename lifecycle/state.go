// Package lifecycle implements the entrant lifecycle for an event-user
// pair as pure decision logic. It computes next states and the effect
// commands a store must apply; it never touches persistence itself.
package lifecycle

import (
	"time"

	"eventease/models"
)

type State int

const (
	StateNone State = iota
	StateWaitlisted
	StateInvited
	StateExpiredInvitation
	StateAdmitted
	StateDeclined
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateWaitlisted:
		return "waitlisted"
	case StateInvited:
		return "invited"
	case StateExpiredInvitation:
		return "expired_invitation"
	case StateAdmitted:
		return "admitted"
	case StateDeclined:
		return "declined"
	default:
		return "unknown"
	}
}

type Action string

const (
	ActionJoin    Action = "join"
	ActionLeave   Action = "leave"
	ActionInvite  Action = "invite"
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
	ActionAdmit   Action = "admit"
	ActionExpire  Action = "expire"
)

// Facts is the recorded membership snapshot for one event-user pair.
// Invitation is the most recent invitation for the pair, nil if none
// was ever issued.
type Facts struct {
	EventID    string
	UID        string
	Waitlisted bool
	Invitation *models.Invitation
	Admitted   bool
}

// State derives the single lifecycle state from the snapshot. The ordering
// below is the one authoritative definition; every consumer goes through it.
//
// An expired pending invitation only reads as EXPIRED_INVITATION while the
// user is still on the waitlist; once they leave, the stale invitation no
// longer binds the pair and the state falls back to NONE. A declined
// invitation reads as DECLINED until a rejoin detaches it and starts a
// fresh cycle.
func (f Facts) State(now time.Time) State {
	if f.Admitted {
		return StateAdmitted
	}
	if inv := f.Invitation; inv != nil {
		switch {
		case inv.Status == models.InvitationDeclined:
			return StateDeclined
		case inv.Active(now):
			return StateInvited
		case inv.Expired(now) && f.Waitlisted:
			return StateExpiredInvitation
		}
	}
	if f.Waitlisted {
		return StateWaitlisted
	}
	return StateNone
}

// IsActive reports whether the pair still holds a live claim on the event:
// waiting, invited, or admitted.
func (f Facts) IsActive(now time.Time) bool {
	switch f.State(now) {
	case StateWaitlisted, StateInvited, StateAdmitted:
		return true
	default:
		return false
	}
}
