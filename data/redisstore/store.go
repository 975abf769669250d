// Package redisstore is the production implementation of the data ports.
// Registration state lives in Redis; every lifecycle transition is applied
// by a Lua script that re-checks the recorded state before writing, so a
// racing writer loses cleanly instead of corrupting the pair.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"eventease/data"
	"eventease/lifecycle"
	"eventease/models"
)

type Store struct {
	Redis *redis.Client
	Now   func() time.Time

	// PollInterval drives the ListenActive watcher.
	PollInterval time.Duration
}

var _ data.Store = (*Store)(nil)

func NewStore(client *redis.Client, pollInterval time.Duration) *Store {
	return &Store{
		Redis:        client,
		Now:          time.Now,
		PollInterval: pollInterval,
	}
}

func transportErr(op string, err error) error {
	return &data.TransportError{Op: op, Err: err}
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// guardArgs encodes the caller's read of the facts for the script-side
// compare-and-swap check.
func guardArgs(f lifecycle.Facts) []any {
	invID, invStatus := "", ""
	if f.Invitation != nil {
		invID = f.Invitation.ID
		invStatus = string(f.Invitation.Status)
	}
	return []any{boolArg(f.Waitlisted), invID, invStatus, boolArg(f.Admitted)}
}

// Facts reads the recorded membership snapshot. The read is optimistic;
// Apply re-checks it atomically before writing.
func (s *Store) Facts(ctx context.Context, eventID, uid string) (lifecycle.Facts, error) {
	f := lifecycle.Facts{EventID: eventID, UID: uid}

	joined, err := s.Redis.Exists(ctx, memberKey(eventID, uid)).Result()
	if err != nil {
		return f, transportErr("facts", err)
	}
	f.Waitlisted = joined > 0

	invID, err := s.Redis.Get(ctx, currentKey(eventID, uid)).Result()
	if err != nil && err != redis.Nil {
		return f, transportErr("facts", err)
	}
	if invID != "" {
		fields, err := s.Redis.HGetAll(ctx, inviteKey(invID)).Result()
		if err != nil {
			return f, transportErr("facts", err)
		}
		if len(fields) > 0 {
			f.Invitation = parseInvitation(fields)
		}
	}

	adm, err := s.Redis.Exists(ctx, admittedEntryKey(eventID, uid)).Result()
	if err != nil {
		return f, transportErr("facts", err)
	}
	f.Admitted = adm > 0

	return f, nil
}

// Apply runs the transition's Lua script. The script applies either every
// effect or none; "conflict" means the recorded state moved under us.
func (s *Store) Apply(ctx context.Context, action lifecycle.Action, prior lifecycle.Facts, cmds []lifecycle.Command) error {
	if len(cmds) == 0 && action != lifecycle.ActionExpire {
		// Idempotent no-op transition (e.g. join while waitlisted).
		return nil
	}

	eventID, uid := prior.EventID, prior.UID
	base := []string{memberKey(eventID, uid), currentKey(eventID, uid), admittedEntryKey(eventID, uid)}
	guard := guardArgs(prior)
	now := s.Now()

	var script string
	var keys []string
	var args []any

	switch action {
	case lifecycle.ActionJoin:
		entry := findCommand(cmds, lifecycle.OpCreateWaitlistEntry).Waitlist
		script = joinScript
		keys = append(base, waitlistKey(eventID))
		args = append(guard, uid, entry.JoinedAt.UnixMilli())

	case lifecycle.ActionLeave:
		script = leaveScript
		keys = append(base, waitlistKey(eventID))
		args = append(guard, uid)

	case lifecycle.ActionInvite:
		inv := findCommand(cmds, lifecycle.OpCreateInvitation).Invitation
		script = inviteScript
		keys = append(base, inviteKey(inv.ID), userInvitesKey(uid), eventInvitesKey(eventID), pendingInvitesKey())
		args = append(guard, inv.ID, eventID, uid, inv.IssuedAt.UnixMilli(), inv.ExpiresAt.UnixMilli())

	case lifecycle.ActionAccept:
		invID := prior.Invitation.ID
		script = acceptScript
		keys = append(base, inviteKey(invID), waitlistKey(eventID), admittedKey(eventID), userAdmittedKey(uid), pendingInvitesKey())
		args = append(guard, invID, uid, eventID, now.UnixMilli())

	case lifecycle.ActionDecline:
		invID := prior.Invitation.ID
		script = declineScript
		keys = append(base, inviteKey(invID), waitlistKey(eventID), pendingInvitesKey())
		args = append(guard, invID, uid, now.UnixMilli())

	case lifecycle.ActionAdmit:
		script = admitScript
		keys = append(base, waitlistKey(eventID), admittedKey(eventID), userAdmittedKey(uid))
		args = append(guard, uid, eventID, now.UnixMilli())

	case lifecycle.ActionExpire:
		invID := prior.Invitation.ID
		script = expireScript
		keys = append(base, inviteKey(invID), pendingInvitesKey())
		args = append(guard, invID, now.UnixMilli())

	default:
		return fmt.Errorf("redisstore: unsupported action %q", action)
	}

	res, err := s.Redis.Eval(ctx, script, keys, args...).Result()
	if err != nil {
		return transportErr(string(action), err)
	}
	switch res {
	case "ok", "already_joined":
		return nil
	case "conflict":
		return &data.ConflictError{Op: string(action), EventID: eventID, UID: uid}
	default:
		return fmt.Errorf("redisstore: %s returned unexpected status %v", action, res)
	}
}

func findCommand(cmds []lifecycle.Command, op lifecycle.Op) *lifecycle.Command {
	for i := range cmds {
		if cmds[i].Op == op {
			return &cmds[i]
		}
	}
	return &lifecycle.Command{}
}

func parseInvitation(fields map[string]string) *models.Invitation {
	issued, _ := strconv.ParseInt(fields["issued_at"], 10, 64)
	expires, _ := strconv.ParseInt(fields["expires_at"], 10, 64)
	return &models.Invitation{
		ID:        fields["id"],
		EventID:   fields["event_id"],
		UID:       fields["uid"],
		Status:    models.InvitationStatus(fields["status"]),
		IssuedAt:  time.UnixMilli(issued).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}
}

// --- WaitlistRepository ---

func (s *Store) IsJoined(ctx context.Context, eventID, uid string) (bool, error) {
	n, err := s.Redis.Exists(ctx, memberKey(eventID, uid)).Result()
	if err != nil {
		return false, transportErr("is_joined", err)
	}
	return n > 0, nil
}

func (s *Store) Count(ctx context.Context, eventID string) (int, error) {
	n, err := s.Redis.LLen(ctx, waitlistKey(eventID)).Result()
	if err != nil {
		return 0, transportErr("count", err)
	}
	return int(n), nil
}

func (s *Store) Entries(ctx context.Context, eventID string) ([]models.WaitlistEntry, error) {
	uids, err := s.Redis.LRange(ctx, waitlistKey(eventID), 0, -1).Result()
	if err != nil {
		return nil, transportErr("entries", err)
	}
	out := make([]models.WaitlistEntry, 0, len(uids))
	for _, uid := range uids {
		entry := models.WaitlistEntry{EventID: eventID, UID: uid}
		raw, err := s.Redis.HGet(ctx, memberKey(eventID, uid), "joined_at").Result()
		if err == nil {
			if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
				entry.JoinedAt = time.UnixMilli(ms).UTC()
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// --- InvitationRepository ---

func (s *Store) GetInvitation(ctx context.Context, invitationID string) (*models.Invitation, error) {
	fields, err := s.Redis.HGetAll(ctx, inviteKey(invitationID)).Result()
	if err != nil {
		return nil, transportErr("get_invitation", err)
	}
	if len(fields) == 0 {
		return nil, data.ErrNotFound
	}
	return parseInvitation(fields), nil
}

func (s *Store) ListActive(ctx context.Context, uid string, now time.Time) ([]*models.Invitation, error) {
	ids, err := s.Redis.SMembers(ctx, userInvitesKey(uid)).Result()
	if err != nil {
		return nil, transportErr("list_active", err)
	}
	var out []*models.Invitation
	for _, id := range ids {
		fields, err := s.Redis.HGetAll(ctx, inviteKey(id)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		inv := parseInvitation(fields)
		if inv.Active(now) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (s *Store) ListPendingExpired(ctx context.Context, now time.Time) ([]*models.Invitation, error) {
	ids, err := s.Redis.SMembers(ctx, pendingInvitesKey()).Result()
	if err != nil {
		return nil, transportErr("list_pending_expired", err)
	}
	var out []*models.Invitation
	for _, id := range ids {
		fields, err := s.Redis.HGetAll(ctx, inviteKey(id)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		inv := parseInvitation(fields)
		if inv.Expired(now) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

// --- AdmittedRepository ---

func (s *Store) IsAdmitted(ctx context.Context, eventID, uid string) (bool, error) {
	n, err := s.Redis.Exists(ctx, admittedEntryKey(eventID, uid)).Result()
	if err != nil {
		return false, transportErr("is_admitted", err)
	}
	return n > 0, nil
}

func (s *Store) GetAdmitted(ctx context.Context, eventID, uid string) (*models.AdmittedEntry, error) {
	fields, err := s.Redis.HGetAll(ctx, admittedEntryKey(eventID, uid)).Result()
	if err != nil {
		return nil, transportErr("get_admitted", err)
	}
	if len(fields) == 0 {
		return nil, data.ErrNotFound
	}
	entry := &models.AdmittedEntry{EventID: eventID, UID: uid}
	if ms, perr := strconv.ParseInt(fields["admitted_at"], 10, 64); perr == nil {
		entry.AdmittedAt = time.UnixMilli(ms).UTC()
	}
	if raw, ok := fields["accepted_at"]; ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			at := time.UnixMilli(ms).UTC()
			entry.AcceptedAt = &at
		}
	}
	return entry, nil
}

func (s *Store) UpcomingEvents(ctx context.Context, uid string, now time.Time) ([]*models.Event, error) {
	return s.admittedEvents(ctx, uid, func(e *models.Event) bool { return e.StartsAt.After(now) })
}

func (s *Store) PreviousEvents(ctx context.Context, uid string, now time.Time) ([]*models.Event, error) {
	return s.admittedEvents(ctx, uid, func(e *models.Event) bool { return !e.StartsAt.After(now) })
}

func (s *Store) admittedEvents(ctx context.Context, uid string, keep func(*models.Event) bool) ([]*models.Event, error) {
	ids, err := s.Redis.SMembers(ctx, userAdmittedKey(uid)).Result()
	if err != nil {
		return nil, transportErr("admitted_events", err)
	}
	var out []*models.Event
	for _, id := range ids {
		e, err := s.GetEvent(ctx, id)
		if err != nil {
			continue
		}
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// --- EventRepository ---

func (s *Store) CreateEvent(ctx context.Context, e *models.Event) error {
	doc := *e
	// Membership lives in the list/set structures, never in the document.
	doc.Waitlist = nil
	doc.Admitted = nil
	raw, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("redisstore: marshal event: %w", err)
	}
	if err := s.Redis.Set(ctx, eventKey(e.ID), raw, 0).Err(); err != nil {
		return transportErr("create_event", err)
	}
	if err := s.Redis.SAdd(ctx, eventsAllKey(), e.ID).Err(); err != nil {
		return transportErr("create_event", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	raw, err := s.Redis.Get(ctx, eventKey(eventID)).Result()
	if err == redis.Nil {
		return nil, data.ErrNotFound
	}
	if err != nil {
		return nil, transportErr("get_event", err)
	}
	var e models.Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal event %s: %w", eventID, err)
	}

	waitlist, err := s.Redis.LRange(ctx, waitlistKey(eventID), 0, -1).Result()
	if err != nil {
		return nil, transportErr("get_event", err)
	}
	admitted, err := s.Redis.SMembers(ctx, admittedKey(eventID)).Result()
	if err != nil {
		return nil, transportErr("get_event", err)
	}
	sort.Strings(admitted)
	e.Waitlist = waitlist
	e.Admitted = admitted
	return &e, nil
}

func (s *Store) OpenEvents(ctx context.Context, asOf time.Time) ([]*models.Event, error) {
	ids, err := s.Redis.SMembers(ctx, eventsAllKey()).Result()
	if err != nil {
		return nil, transportErr("open_events", err)
	}
	var out []*models.Event
	for _, id := range ids {
		e, err := s.GetEvent(ctx, id)
		if err != nil {
			continue
		}
		if e.RegistrationOpen(asOf) && e.StartsAt.After(asOf) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// DeleteEvent removes the event and every dependent waitlist, invitation,
// and admitted record.
func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	waitlist, err := s.Redis.LRange(ctx, waitlistKey(eventID), 0, -1).Result()
	if err != nil {
		return transportErr("delete_event", err)
	}
	for _, uid := range waitlist {
		s.Redis.Del(ctx, memberKey(eventID, uid))
	}

	invIDs, err := s.Redis.SMembers(ctx, eventInvitesKey(eventID)).Result()
	if err != nil {
		return transportErr("delete_event", err)
	}
	for _, id := range invIDs {
		uid, _ := s.Redis.HGet(ctx, inviteKey(id), "uid").Result()
		s.Redis.Del(ctx, inviteKey(id))
		s.Redis.SRem(ctx, pendingInvitesKey(), id)
		if uid != "" {
			s.Redis.SRem(ctx, userInvitesKey(uid), id)
			s.Redis.Del(ctx, currentKey(eventID, uid))
		}
	}

	admitted, err := s.Redis.SMembers(ctx, admittedKey(eventID)).Result()
	if err != nil {
		return transportErr("delete_event", err)
	}
	for _, uid := range admitted {
		s.Redis.Del(ctx, admittedEntryKey(eventID, uid))
		s.Redis.SRem(ctx, userAdmittedKey(uid), eventID)
	}

	s.Redis.Del(ctx, waitlistKey(eventID), admittedKey(eventID), eventInvitesKey(eventID), eventKey(eventID))
	if err := s.Redis.SRem(ctx, eventsAllKey(), eventID).Err(); err != nil {
		return transportErr("delete_event", err)
	}
	return nil
}

// --- ProfileRepository ---

func (s *Store) GetProfile(ctx context.Context, uid string) (*models.Profile, error) {
	raw, err := s.Redis.Get(ctx, profileKey(uid)).Result()
	if err == redis.Nil {
		return nil, data.ErrNotFound
	}
	if err != nil {
		return nil, transportErr("get_profile", err)
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal profile %s: %w", uid, err)
	}
	return &p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *models.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redisstore: marshal profile: %w", err)
	}
	if err := s.Redis.Set(ctx, profileKey(p.UID), raw, 0).Err(); err != nil {
		return transportErr("upsert_profile", err)
	}
	return nil
}

// DeleteProfile removes the profile and the uid's waitlist entries,
// invitations, and admissions across every event.
func (s *Store) DeleteProfile(ctx context.Context, uid string) error {
	invIDs, err := s.Redis.SMembers(ctx, userInvitesKey(uid)).Result()
	if err != nil {
		return transportErr("delete_profile", err)
	}
	for _, id := range invIDs {
		eventID, _ := s.Redis.HGet(ctx, inviteKey(id), "event_id").Result()
		s.Redis.Del(ctx, inviteKey(id))
		s.Redis.SRem(ctx, pendingInvitesKey(), id)
		if eventID != "" {
			s.Redis.SRem(ctx, eventInvitesKey(eventID), id)
			s.Redis.Del(ctx, currentKey(eventID, uid))
		}
	}

	admittedEvents, err := s.Redis.SMembers(ctx, userAdmittedKey(uid)).Result()
	if err != nil {
		return transportErr("delete_profile", err)
	}
	for _, eventID := range admittedEvents {
		s.Redis.Del(ctx, admittedEntryKey(eventID, uid))
		s.Redis.SRem(ctx, admittedKey(eventID), uid)
	}

	eventIDs, err := s.Redis.SMembers(ctx, eventsAllKey()).Result()
	if err != nil {
		return transportErr("delete_profile", err)
	}
	for _, eventID := range eventIDs {
		s.Redis.LRem(ctx, waitlistKey(eventID), 0, uid)
		s.Redis.Del(ctx, memberKey(eventID, uid))
	}

	s.Redis.Del(ctx, userInvitesKey(uid), userAdmittedKey(uid), notificationsKey(uid))
	if err := s.Redis.Del(ctx, profileKey(uid)).Err(); err != nil {
		return transportErr("delete_profile", err)
	}
	return nil
}

// --- NotificationLog ---

func (s *Store) AppendNotification(ctx context.Context, entry models.NotificationLogEntry) error {
	raw, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("redisstore: marshal notification: %w", err)
	}
	if err := s.Redis.LPush(ctx, notificationsKey(entry.UID), raw).Err(); err != nil {
		return transportErr("append_notification", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, uid string, limit int) ([]models.NotificationLogEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raws, err := s.Redis.LRange(ctx, notificationsKey(uid), 0, stop).Result()
	if err != nil {
		return nil, transportErr("list_notifications", err)
	}
	out := make([]models.NotificationLogEntry, 0, len(raws))
	for _, raw := range raws {
		var entry models.NotificationLogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
