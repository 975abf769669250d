package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

type WaitlistEntry struct {
	EventID  string    `json:"event_id"`
	UID      string    `json:"uid"`
	JoinedAt time.Time `json:"joined_at"`
}

type Invitation struct {
	ID        string           `json:"id"`
	EventID   string           `json:"event_id"`
	UID       string           `json:"uid"`
	Status    InvitationStatus `json:"status"`
	IssuedAt  time.Time        `json:"issued_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Active is the single definition of a live invitation: still pending and
// not past its expiry instant. Every consumer goes through this.
func (i *Invitation) Active(now time.Time) bool {
	return i.Status == InvitationPending && !now.After(i.ExpiresAt)
}

// Expired reports a pending invitation whose window has passed. Terminal
// statuses are not "expired"; they already resolved.
func (i *Invitation) Expired(now time.Time) bool {
	return i.Status == InvitationPending && now.After(i.ExpiresAt)
}

type AdmittedEntry struct {
	EventID    string     `json:"event_id"`
	UID        string     `json:"uid"`
	AdmittedAt time.Time  `json:"admitted_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

type NotificationLogEntry struct {
	ID      string    `json:"id"`
	UID     string    `json:"uid"`
	EventID string    `json:"event_id"`
	Kind    string    `json:"kind"` // invited, accepted, declined, admitted, expired
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}
