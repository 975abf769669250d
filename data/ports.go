// Package data defines the repository ports the registration service
// depends on. Production backs them with Redis (data/redisstore); tests
// back them with the in-memory reference store (data/memory).
package data

import (
	"context"
	"time"

	"eventease/lifecycle"
	"eventease/models"
)

// TransitionStore reads the recorded facts for an event-user pair and
// applies a decided transition as one conditional write. Apply must reject
// with ConflictError when the recorded state no longer matches prior; it
// must never apply a transition's effects partially.
type TransitionStore interface {
	Facts(ctx context.Context, eventID, uid string) (lifecycle.Facts, error)
	Apply(ctx context.Context, action lifecycle.Action, prior lifecycle.Facts, cmds []lifecycle.Command) error
}

// Subscription is a handle on a live listener. Remove is idempotent and
// safe to call from any goroutine.
type Subscription interface {
	Remove()
}

// InvitationListener receives the full active-invitation snapshot on every
// change, newest state last, never an older state after a newer one.
type InvitationListener func(active []*models.Invitation)

type WaitlistRepository interface {
	IsJoined(ctx context.Context, eventID, uid string) (bool, error)
	Count(ctx context.Context, eventID string) (int, error)
	Entries(ctx context.Context, eventID string) ([]models.WaitlistEntry, error)
}

type InvitationRepository interface {
	GetInvitation(ctx context.Context, invitationID string) (*models.Invitation, error)
	// ListActive returns the uid's live invitations ordered by issuedAt
	// ascending.
	ListActive(ctx context.Context, uid string, now time.Time) ([]*models.Invitation, error)
	// ListPendingExpired returns pending invitations whose window has
	// passed, for the expiry sweep.
	ListPendingExpired(ctx context.Context, now time.Time) ([]*models.Invitation, error)
	ListenActive(ctx context.Context, uid string, l InvitationListener) (Subscription, error)
}

type AdmittedRepository interface {
	IsAdmitted(ctx context.Context, eventID, uid string) (bool, error)
	GetAdmitted(ctx context.Context, eventID, uid string) (*models.AdmittedEntry, error)
	UpcomingEvents(ctx context.Context, uid string, now time.Time) ([]*models.Event, error)
	PreviousEvents(ctx context.Context, uid string, now time.Time) ([]*models.Event, error)
}

type EventRepository interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	// OpenEvents returns events whose registration window contains asOf.
	OpenEvents(ctx context.Context, asOf time.Time) ([]*models.Event, error)
	// DeleteEvent removes the event and cascades removal of its waitlist,
	// invitation, and admitted records.
	DeleteEvent(ctx context.Context, eventID string) error
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, uid string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error
	// DeleteProfile removes the profile and cascades removal of the uid's
	// waitlist entries, invitations, and admissions.
	DeleteProfile(ctx context.Context, uid string) error
}

type NotificationLog interface {
	AppendNotification(ctx context.Context, entry models.NotificationLogEntry) error
	// ListNotifications returns the uid's log entries, most recent first.
	ListNotifications(ctx context.Context, uid string, limit int) ([]models.NotificationLogEntry, error)
}

// Store is the full registration store surface.
type Store interface {
	TransitionStore
	WaitlistRepository
	InvitationRepository
	AdmittedRepository
	EventRepository
	ProfileRepository
	NotificationLog
}
