// Package memory is the in-memory reference implementation of the data
// ports. It backs the test suite and documents the intended store
// semantics: every transition is applied under one lock, conditional on
// the recorded facts still matching what the caller read.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"eventease/data"
	"eventease/lifecycle"
	"eventease/models"
)

type pairKey struct {
	eventID string
	uid     string
}

type Store struct {
	// Now is the store's clock; tests override it.
	Now func() time.Time

	mu            sync.Mutex
	events        map[string]*models.Event
	waitlist      map[pairKey]*models.WaitlistEntry
	invitations   map[string]*models.Invitation
	currentInvite map[pairKey]string
	swept         map[string]bool
	admitted      map[pairKey]*models.AdmittedEntry
	notifications map[string][]models.NotificationLogEntry
	profiles      map[string]*models.Profile
	listeners     map[string][]*subscription
}

var _ data.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		Now:           time.Now,
		events:        make(map[string]*models.Event),
		waitlist:      make(map[pairKey]*models.WaitlistEntry),
		invitations:   make(map[string]*models.Invitation),
		currentInvite: make(map[pairKey]string),
		swept:         make(map[string]bool),
		admitted:      make(map[pairKey]*models.AdmittedEntry),
		notifications: make(map[string][]models.NotificationLogEntry),
		profiles:      make(map[string]*models.Profile),
		listeners:     make(map[string][]*subscription),
	}
}

type subscription struct {
	store   *Store
	uid     string
	fn      data.InvitationListener
	removed bool
}

// Remove unsubscribes the listener. Calling it twice is a no-op.
func (s *subscription) Remove() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if s.removed {
		return
	}
	s.removed = true
	subs := s.store.listeners[s.uid]
	for i, sub := range subs {
		if sub == s {
			s.store.listeners[s.uid] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// Facts reads the recorded membership snapshot for the pair.
func (s *Store) Facts(_ context.Context, eventID, uid string) (lifecycle.Facts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.factsLocked(eventID, uid), nil
}

func (s *Store) factsLocked(eventID, uid string) lifecycle.Facts {
	key := pairKey{eventID, uid}
	f := lifecycle.Facts{EventID: eventID, UID: uid}
	if _, ok := s.waitlist[key]; ok {
		f.Waitlisted = true
	}
	if invID, ok := s.currentInvite[key]; ok {
		if inv, ok := s.invitations[invID]; ok {
			cp := *inv
			f.Invitation = &cp
		}
	}
	if _, ok := s.admitted[key]; ok {
		f.Admitted = true
	}
	return f
}

func factsMatch(a, b lifecycle.Facts) bool {
	if a.Waitlisted != b.Waitlisted || a.Admitted != b.Admitted {
		return false
	}
	if (a.Invitation == nil) != (b.Invitation == nil) {
		return false
	}
	if a.Invitation != nil &&
		(a.Invitation.ID != b.Invitation.ID || a.Invitation.Status != b.Invitation.Status) {
		return false
	}
	return true
}

// Apply executes a transition's commands under one lock, conditional on
// the recorded facts still matching prior. On mismatch nothing is applied
// and a ConflictError is returned.
func (s *Store) Apply(_ context.Context, action lifecycle.Action, prior lifecycle.Facts, cmds []lifecycle.Command) error {
	s.mu.Lock()

	current := s.factsLocked(prior.EventID, prior.UID)
	if !factsMatch(current, prior) {
		s.mu.Unlock()
		return &data.ConflictError{Op: string(action), EventID: prior.EventID, UID: prior.UID}
	}

	if action == lifecycle.ActionExpire && prior.Invitation != nil {
		// Once an expiry has been noticed the invitation leaves the
		// pending sweep listing, same as the production store.
		s.swept[prior.Invitation.ID] = true
	}

	touched := map[string]bool{}
	for _, cmd := range cmds {
		s.applyLocked(cmd)
		touched[cmd.UID] = true
	}

	notify := s.pendingNotifyLocked(touched)
	s.mu.Unlock()

	for _, n := range notify {
		n()
	}
	return nil
}

func (s *Store) applyLocked(cmd lifecycle.Command) {
	key := pairKey{cmd.EventID, cmd.UID}
	switch cmd.Op {
	case lifecycle.OpCreateWaitlistEntry:
		entry := *cmd.Waitlist
		s.waitlist[key] = &entry
	case lifecycle.OpRemoveWaitlistEntry:
		delete(s.waitlist, key)
	case lifecycle.OpAppendEventWaitlist:
		if e, ok := s.events[cmd.EventID]; ok {
			e.AppendWaitlist(cmd.UID)
		}
	case lifecycle.OpRemoveEventWaitlist:
		if e, ok := s.events[cmd.EventID]; ok {
			e.RemoveWaitlist(cmd.UID)
		}
	case lifecycle.OpCreateInvitation:
		inv := *cmd.Invitation
		s.invitations[inv.ID] = &inv
		s.currentInvite[key] = inv.ID
	case lifecycle.OpSetInvitationStatus:
		if inv, ok := s.invitations[cmd.InvitationID]; ok {
			inv.Status = cmd.Status
		}
	case lifecycle.OpClearCurrentInvitation:
		delete(s.currentInvite, key)
	case lifecycle.OpCreateAdmittedEntry:
		entry := *cmd.Admitted
		s.admitted[key] = &entry
	case lifecycle.OpAppendEventAdmitted:
		if e, ok := s.events[cmd.EventID]; ok {
			e.AppendAdmitted(cmd.UID)
		}
	}
}

// pendingNotifyLocked snapshots listener callbacks for the touched uids so
// they can run outside the lock, each with a consistent snapshot.
func (s *Store) pendingNotifyLocked(uids map[string]bool) []func() {
	var out []func()
	now := s.Now()
	for uid := range uids {
		subs := s.listeners[uid]
		if len(subs) == 0 {
			continue
		}
		snapshot := s.listActiveLocked(uid, now)
		for _, sub := range subs {
			fn := sub.fn
			out = append(out, func() { fn(snapshot) })
		}
	}
	return out
}

// --- WaitlistRepository ---

func (s *Store) IsJoined(_ context.Context, eventID, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.waitlist[pairKey{eventID, uid}]
	return ok, nil
}

func (s *Store) Count(_ context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[eventID]; ok {
		return e.WaitlistCount(), nil
	}
	n := 0
	for key := range s.waitlist {
		if key.eventID == eventID {
			n++
		}
	}
	return n, nil
}

func (s *Store) Entries(_ context.Context, eventID string) ([]models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WaitlistEntry
	for key, entry := range s.waitlist {
		if key.eventID == eventID {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

// --- InvitationRepository ---

func (s *Store) GetInvitation(_ context.Context, invitationID string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[invitationID]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *Store) ListActive(_ context.Context, uid string, now time.Time) ([]*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listActiveLocked(uid, now), nil
}

func (s *Store) listActiveLocked(uid string, now time.Time) []*models.Invitation {
	var out []*models.Invitation
	for _, inv := range s.invitations {
		if inv.UID == uid && inv.Active(now) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out
}

func (s *Store) ListPendingExpired(_ context.Context, now time.Time) ([]*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Invitation
	for _, inv := range s.invitations {
		if inv.Expired(now) && !s.swept[inv.ID] {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

// ListenActive registers a listener and delivers the current snapshot
// immediately, mirroring a document-store snapshot subscription.
func (s *Store) ListenActive(_ context.Context, uid string, l data.InvitationListener) (data.Subscription, error) {
	s.mu.Lock()
	sub := &subscription{store: s, uid: uid, fn: l}
	s.listeners[uid] = append(s.listeners[uid], sub)
	snapshot := s.listActiveLocked(uid, s.Now())
	s.mu.Unlock()

	l(snapshot)
	return sub, nil
}

// --- AdmittedRepository ---

func (s *Store) IsAdmitted(_ context.Context, eventID, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.admitted[pairKey{eventID, uid}]
	return ok, nil
}

func (s *Store) GetAdmitted(_ context.Context, eventID, uid string) (*models.AdmittedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.admitted[pairKey{eventID, uid}]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (s *Store) UpcomingEvents(_ context.Context, uid string, now time.Time) ([]*models.Event, error) {
	return s.admittedEvents(uid, func(e *models.Event) bool { return e.StartsAt.After(now) }), nil
}

func (s *Store) PreviousEvents(_ context.Context, uid string, now time.Time) ([]*models.Event, error) {
	return s.admittedEvents(uid, func(e *models.Event) bool { return !e.StartsAt.After(now) }), nil
}

func (s *Store) admittedEvents(uid string, keep func(*models.Event) bool) []*models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Event
	for key := range s.admitted {
		if key.uid != uid {
			continue
		}
		if e, ok := s.events[key.eventID]; ok && keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}

// --- EventRepository ---

func (s *Store) CreateEvent(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	if cp.Waitlist == nil {
		cp.Waitlist = []string{}
	}
	if cp.Admitted == nil {
		cp.Admitted = []string{}
	}
	s.events[cp.ID] = &cp
	return nil
}

func (s *Store) GetEvent(_ context.Context, eventID string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) OpenEvents(_ context.Context, asOf time.Time) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Event
	for _, e := range s.events {
		if e.RegistrationOpen(asOf) && e.StartsAt.After(asOf) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// DeleteEvent removes the event and cascades removal of its waitlist,
// invitation, and admitted records.
func (s *Store) DeleteEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	touched := map[string]bool{}
	delete(s.events, eventID)
	for key := range s.waitlist {
		if key.eventID == eventID {
			delete(s.waitlist, key)
		}
	}
	for id, inv := range s.invitations {
		if inv.EventID == eventID {
			touched[inv.UID] = true
			delete(s.invitations, id)
		}
	}
	for key := range s.currentInvite {
		if key.eventID == eventID {
			delete(s.currentInvite, key)
		}
	}
	for key := range s.admitted {
		if key.eventID == eventID {
			delete(s.admitted, key)
		}
	}
	notify := s.pendingNotifyLocked(touched)
	s.mu.Unlock()

	for _, n := range notify {
		n()
	}
	return nil
}

// --- ProfileRepository ---

func (s *Store) GetProfile(_ context.Context, uid string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) UpsertProfile(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[cp.UID] = &cp
	return nil
}

// DeleteProfile removes the profile and cascades removal of the uid's
// waitlist entries, invitations, and admissions across all events.
func (s *Store) DeleteProfile(_ context.Context, uid string) error {
	s.mu.Lock()
	delete(s.profiles, uid)
	for key := range s.waitlist {
		if key.uid == uid {
			delete(s.waitlist, key)
		}
	}
	for id, inv := range s.invitations {
		if inv.UID == uid {
			delete(s.invitations, id)
		}
	}
	for key := range s.currentInvite {
		if key.uid == uid {
			delete(s.currentInvite, key)
		}
	}
	for key := range s.admitted {
		if key.uid == uid {
			delete(s.admitted, key)
		}
	}
	for _, e := range s.events {
		e.RemoveWaitlist(uid)
		e.RemoveAdmitted(uid)
	}
	notify := s.pendingNotifyLocked(map[string]bool{uid: true})
	s.mu.Unlock()

	for _, n := range notify {
		n()
	}
	return nil
}

// --- NotificationLog ---

func (s *Store) AppendNotification(_ context.Context, entry models.NotificationLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[entry.UID] = append(s.notifications[entry.UID], entry)
	return nil
}

// ListNotifications returns the uid's log entries, most recent first.
func (s *Store) ListNotifications(_ context.Context, uid string, limit int) ([]models.NotificationLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.notifications[uid]
	out := make([]models.NotificationLogEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, entries[i])
	}
	return out, nil
}
