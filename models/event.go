package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Notes             string          `json:"notes,omitempty"`
	Guidelines        string          `json:"guidelines,omitempty"`
	Location          string          `json:"location"`
	Capacity          int             `json:"capacity"`
	Fee               decimal.Decimal `json:"fee"`
	StartsAt          time.Time       `json:"starts_at"`
	RegistrationStart time.Time       `json:"registration_start"`
	RegistrationEnd   time.Time       `json:"registration_end"`
	Deadline          time.Time       `json:"deadline"`
	OrganizerID       string          `json:"organizer_id"`
	PosterURL         string          `json:"poster_url,omitempty"`
	QRPayload         string          `json:"qr_payload,omitempty"`
	Waitlist          []string        `json:"waitlist"`
	Admitted          []string        `json:"admitted"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewDraftEvent creates an event shell owned by the organizer. The caller
// fills in title/capacity/dates and validates before persisting.
func NewDraftEvent(id, organizerID string, now time.Time) *Event {
	return &Event{
		ID:          id,
		OrganizerID: organizerID,
		QRPayload:   fmt.Sprintf("event:%s", id),
		Waitlist:    []string{},
		Admitted:    []string{},
		CreatedAt:   now,
	}
}

// WaitlistCount is authoritative; the embedded list is the index.
func (e *Event) WaitlistCount() int {
	return len(e.Waitlist)
}

func (e *Event) IsWaitlisted(uid string) bool {
	for _, id := range e.Waitlist {
		if id == uid {
			return true
		}
	}
	return false
}

func (e *Event) IsAdmitted(uid string) bool {
	for _, id := range e.Admitted {
		if id == uid {
			return true
		}
	}
	return false
}

// AppendWaitlist adds uid preserving join order. Adding an already-listed
// uid is a no-op so retried joins never duplicate the index.
func (e *Event) AppendWaitlist(uid string) {
	if e.IsWaitlisted(uid) {
		return
	}
	e.Waitlist = append(e.Waitlist, uid)
}

func (e *Event) RemoveWaitlist(uid string) {
	out := e.Waitlist[:0]
	for _, id := range e.Waitlist {
		if id != uid {
			out = append(out, id)
		}
	}
	e.Waitlist = out
}

func (e *Event) AppendAdmitted(uid string) {
	if e.IsAdmitted(uid) {
		return
	}
	e.Admitted = append(e.Admitted, uid)
}

func (e *Event) RemoveAdmitted(uid string) {
	out := e.Admitted[:0]
	for _, id := range e.Admitted {
		if id != uid {
			out = append(out, id)
		}
	}
	e.Admitted = out
}

// RegistrationOpen reports whether the registration window contains now.
// A zero window start means registration opened at creation.
func (e *Event) RegistrationOpen(now time.Time) bool {
	if !e.RegistrationStart.IsZero() && now.Before(e.RegistrationStart) {
		return false
	}
	if !e.RegistrationEnd.IsZero() && now.After(e.RegistrationEnd) {
		return false
	}
	return true
}
