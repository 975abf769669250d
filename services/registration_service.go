package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"eventease/data"
	"eventease/lifecycle"
	"eventease/models"
	"eventease/monitoring"
	"eventease/utils"
)

var (
	ErrRegistrationClosed = errors.New("registration window is closed")
	ErrCapacityReached    = errors.New("event capacity reached")
)

// RegistrationService drives the entrant lifecycle: it reads the recorded
// facts, asks the state machine for a decision, and applies the decided
// transition as one conditional write. A ConflictError from the store means
// a racing writer won; callers retry by re-reading.
type RegistrationService struct {
	Store    data.Store
	Machine  *lifecycle.Machine
	Notifier *Notifier
	Monitor  *monitoring.Monitor
	Now      func() time.Time
}

func NewRegistrationService(store data.Store, machine *lifecycle.Machine, notifier *Notifier, monitor *monitoring.Monitor) *RegistrationService {
	return &RegistrationService{
		Store:    store,
		Machine:  machine,
		Notifier: notifier,
		Monitor:  monitor,
		Now:      time.Now,
	}
}

func (s *RegistrationService) track(action, eventID string, err error) {
	if s.Monitor == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case data.IsConflict(err):
		status = "conflict"
	case data.IsTransport(err):
		status = "error"
	default:
		status = "rejected"
	}
	s.Monitor.TrackTransition(action, eventID, status)
}

func (s *RegistrationService) logNotification(ctx context.Context, uid, eventID, kind, message string) {
	id, err := utils.GenerateCode(8)
	if err != nil {
		log.Printf("Error generating notification id: %v", err)
		return
	}
	entry := models.NotificationLogEntry{
		ID:      id,
		UID:     uid,
		EventID: eventID,
		Kind:    kind,
		Message: message,
		SentAt:  s.Now(),
	}
	if err := s.Store.AppendNotification(ctx, entry); err != nil {
		log.Printf("Error appending notification for user %s: %v", uid, err)
	}
	if s.Monitor != nil {
		s.Monitor.TrackNotification(kind)
	}
}

// Join puts the user on the event's waitlist. Joining while already
// waitlisted succeeds without writing anything.
func (s *RegistrationService) Join(ctx context.Context, eventID, uid string) (err error) {
	defer func() { s.track(string(lifecycle.ActionJoin), eventID, err) }()

	now := s.Now()
	e, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if !e.RegistrationOpen(now) {
		return ErrRegistrationClosed
	}

	f, err := s.Store.Facts(ctx, eventID, uid)
	if err != nil {
		return err
	}
	_, cmds, err := s.Machine.Join(f, now)
	if err != nil {
		return err
	}
	return s.Store.Apply(ctx, lifecycle.ActionJoin, f, cmds)
}

// Leave removes the user from the waitlist.
func (s *RegistrationService) Leave(ctx context.Context, eventID, uid string) (err error) {
	defer func() { s.track(string(lifecycle.ActionLeave), eventID, err) }()

	f, err := s.Store.Facts(ctx, eventID, uid)
	if err != nil {
		return err
	}
	_, cmds, err := s.Machine.Leave(f, s.Now())
	if err != nil {
		return err
	}
	return s.Store.Apply(ctx, lifecycle.ActionLeave, f, cmds)
}

// Invite issues a fresh invitation to a waitlisted user. A user whose
// previous invitation expired can be invited again.
func (s *RegistrationService) Invite(ctx context.Context, eventID, uid string) (inv *models.Invitation, err error) {
	defer func() { s.track(string(lifecycle.ActionInvite), eventID, err) }()

	now := s.Now()
	e, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(e.Admitted) >= e.Capacity {
		return nil, ErrCapacityReached
	}

	f, err := s.Store.Facts(ctx, eventID, uid)
	if err != nil {
		return nil, err
	}
	invitationID, err := utils.GenerateCode(8)
	if err != nil {
		return nil, err
	}
	next, cmds, err := s.Machine.Invite(f, invitationID, now)
	if err != nil {
		return nil, err
	}
	if err = s.Store.Apply(ctx, lifecycle.ActionInvite, f, cmds); err != nil {
		return nil, err
	}

	inv = next.Invitation
	s.logNotification(ctx, uid, eventID, "invited", fmt.Sprintf("You have been invited to %s", e.Title))
	s.Notifier.NotifyInvited(inv, e.Title)
	return inv, nil
}

// Accept converts a live invitation into admission.
func (s *RegistrationService) Accept(ctx context.Context, eventID, uid, invitationID string) (err error) {
	defer func() { s.track(string(lifecycle.ActionAccept), eventID, err) }()

	f, err := s.Store.Facts(ctx, eventID, uid)
	if err != nil {
		return err
	}
	_, cmds, err := s.Machine.Accept(f, invitationID, s.Now())
	if err != nil {
		return err
	}
	if err = s.Store.Apply(ctx, lifecycle.ActionAccept, f, cmds); err != nil {
		return err
	}

	title := eventID
	if e, gerr := s.Store.GetEvent(ctx, eventID); gerr == nil {
		title = e.Title
	}
	s.logNotification(ctx, uid, eventID, "admitted", fmt.Sprintf("You're in! See you at %s", title))
	s.Notifier.NotifyAdmitted(eventID, uid, title)
	return nil
}

// Decline resolves a live invitation without admission and releases the
// user's spot.
func (s *RegistrationService) Decline(ctx context.Context, eventID, uid, invitationID string) (err error) {
	defer func() { s.track(string(lifecycle.ActionDecline), eventID, err) }()

	f, err := s.Store.Facts(ctx, eventID, uid)
	if err != nil {
		return err
	}
	_, cmds, err := s.Machine.Decline(f, invitationID, s.Now())
	if err != nil {
		return err
	}
	if err = s.Store.Apply(ctx, lifecycle.ActionDecline, f, cmds); err != nil {
		return err
	}

	s.logNotification(ctx, uid, eventID, "declined", "Your spot has been released.")
	s.Notifier.NotifyDeclined(eventID, uid)
	return nil
}

// Admit records a direct admission by the organizer, skipping the
// invitation round-trip.
func (s *RegistrationService) Admit(ctx context.Context, eventID, uid string) (err error) {
	defer func() { s.track(string(lifecycle.ActionAdmit), eventID, err) }()

	now := s.Now()
	e, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if len(e.Admitted) >= e.Capacity {
		return ErrCapacityReached
	}

	f, err := s.Store.Facts(ctx, eventID, uid)
	if err != nil {
		return err
	}
	_, cmds, err := s.Machine.Admit(f, now)
	if err != nil {
		return err
	}
	if err = s.Store.Apply(ctx, lifecycle.ActionAdmit, f, cmds); err != nil {
		return err
	}

	s.logNotification(ctx, uid, eventID, "admitted", fmt.Sprintf("You're in! See you at %s", e.Title))
	s.Notifier.NotifyAdmitted(eventID, uid, e.Title)
	return nil
}

// Status derives the user's lifecycle state for the event.
func (s *RegistrationService) Status(ctx context.Context, eventID, uid string) (lifecycle.State, error) {
	f, err := s.Store.Facts(ctx, eventID, uid)
	if err != nil {
		return lifecycle.StateNone, err
	}
	return f.State(s.Now()), nil
}

// IsActive reports whether the user currently holds a live registration
// for the event: waitlisted, invited, or admitted.
func (s *RegistrationService) IsActive(ctx context.Context, eventID, uid string) (bool, error) {
	f, err := s.Store.Facts(ctx, eventID, uid)
	if err != nil {
		return false, err
	}
	return f.IsActive(s.Now()), nil
}

func (s *RegistrationService) WaitlistCount(ctx context.Context, eventID string) (int, error) {
	return s.Store.Count(ctx, eventID)
}

func (s *RegistrationService) WaitlistEntries(ctx context.Context, eventID string) ([]models.WaitlistEntry, error) {
	return s.Store.Entries(ctx, eventID)
}

func (s *RegistrationService) ListActiveInvitations(ctx context.Context, uid string) ([]*models.Invitation, error) {
	return s.Store.ListActive(ctx, uid, s.Now())
}

// ListenInvitations subscribes to the user's active-invitation snapshot.
func (s *RegistrationService) ListenInvitations(ctx context.Context, uid string, l data.InvitationListener) (data.Subscription, error) {
	return s.Store.ListenActive(ctx, uid, l)
}

func (s *RegistrationService) Notifications(ctx context.Context, uid string, limit int) ([]models.NotificationLogEntry, error) {
	return s.Store.ListNotifications(ctx, uid, limit)
}

func (s *RegistrationService) UpcomingEvents(ctx context.Context, uid string) ([]*models.Event, error) {
	return s.Store.UpcomingEvents(ctx, uid, s.Now())
}

func (s *RegistrationService) PreviousEvents(ctx context.Context, uid string) ([]*models.Event, error) {
	return s.Store.PreviousEvents(ctx, uid, s.Now())
}
