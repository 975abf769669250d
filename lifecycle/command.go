package lifecycle

import "eventease/models"

// Op identifies one effect a transition requires from the backing store.
type Op string

const (
	OpCreateWaitlistEntry    Op = "create_waitlist_entry"
	OpRemoveWaitlistEntry    Op = "remove_waitlist_entry"
	OpAppendEventWaitlist    Op = "append_event_waitlist"
	OpRemoveEventWaitlist    Op = "remove_event_waitlist"
	OpCreateInvitation       Op = "create_invitation"
	OpSetInvitationStatus    Op = "set_invitation_status"
	OpClearCurrentInvitation Op = "clear_current_invitation"
	OpCreateAdmittedEntry    Op = "create_admitted_entry"
	OpAppendEventAdmitted    Op = "append_event_admitted"
)

// Command is one store effect. A transition's command list must be applied
// atomically: either every command lands or none does.
type Command struct {
	Op      Op
	EventID string
	UID     string

	// Payloads, set per Op.
	Waitlist     *models.WaitlistEntry
	Invitation   *models.Invitation
	InvitationID string
	Status       models.InvitationStatus
	Admitted     *models.AdmittedEntry
}
