package services

import (
	"fmt"

	pubnub "github.com/pubnub/go"

	"eventease/models"
)

// Notifier publishes registration updates to each user's private channel.
// A nil PubNub client disables publishing, which is how tests run.
type Notifier struct {
	pubnub *pubnub.PubNub
}

func NewNotifier(pn *pubnub.PubNub) *Notifier {
	return &Notifier{pubnub: pn}
}

func userChannel(uid string) string {
	return fmt.Sprintf("user-%s", uid)
}

func (n *Notifier) publish(uid string, message map[string]any) {
	if n == nil || n.pubnub == nil {
		return
	}
	n.pubnub.Publish().
		Channel(userChannel(uid)).
		Message(message).
		Execute()
}

func (n *Notifier) NotifyInvited(inv *models.Invitation, eventTitle string) {
	n.publish(inv.UID, map[string]any{
		"type":          "invited",
		"event_id":      inv.EventID,
		"invitation_id": inv.ID,
		"expires_at":    inv.ExpiresAt.UnixMilli(),
		"message":       fmt.Sprintf("You have been invited to %s", eventTitle),
	})
}

func (n *Notifier) NotifyAdmitted(eventID, uid, eventTitle string) {
	n.publish(uid, map[string]any{
		"type":     "admitted",
		"event_id": eventID,
		"message":  fmt.Sprintf("You're in! See you at %s", eventTitle),
	})
}

func (n *Notifier) NotifyDeclined(eventID, uid string) {
	n.publish(uid, map[string]any{
		"type":     "declined",
		"event_id": eventID,
		"message":  "Your spot has been released.",
	})
}

func (n *Notifier) NotifyExpired(inv *models.Invitation) {
	n.publish(inv.UID, map[string]any{
		"type":          "invitation_expired",
		"event_id":      inv.EventID,
		"invitation_id": inv.ID,
		"message":       "Your invitation has expired. You are still on the waitlist.",
	})
}
