package redisstore

import "fmt"

// Key layout. The redis list/set structures are the authoritative
// membership index; the event JSON document carries the static fields and
// is rehydrated from the structures on read, so the two representations
// cannot drift.
func eventKey(eventID string) string        { return fmt.Sprintf("event:%s", eventID) }
func eventsAllKey() string                  { return "events:all" }
func waitlistKey(eventID string) string     { return fmt.Sprintf("waitlist:%s", eventID) }
func memberKey(eventID, uid string) string  { return fmt.Sprintf("waitlist:member:%s:%s", eventID, uid) }
func inviteKey(invitationID string) string  { return fmt.Sprintf("invite:%s", invitationID) }
func currentKey(eventID, uid string) string { return fmt.Sprintf("invite:current:%s:%s", eventID, uid) }
func userInvitesKey(uid string) string      { return fmt.Sprintf("invites:user:%s", uid) }
func eventInvitesKey(eventID string) string { return fmt.Sprintf("invites:event:%s", eventID) }
func pendingInvitesKey() string             { return "invites:pending" }
func admittedKey(eventID string) string     { return fmt.Sprintf("admitted:%s", eventID) }
func admittedEntryKey(eventID, uid string) string {
	return fmt.Sprintf("admitted:entry:%s:%s", eventID, uid)
}
func userAdmittedKey(uid string) string   { return fmt.Sprintf("admitted:user:%s", uid) }
func notificationsKey(uid string) string  { return fmt.Sprintf("notifications:%s", uid) }
func profileKey(uid string) string        { return fmt.Sprintf("profile:%s", uid) }
