package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventease/data"
	"eventease/services"
)

// AdminHandler exposes the organizer-side operations: inviting from the
// waitlist, admitting directly, and inspecting the queue.
type AdminHandler struct {
	app     *pocketbase.PocketBase
	service *services.RegistrationService
	store   data.Store
}

func NewAdminHandler(app *pocketbase.PocketBase, service *services.RegistrationService, store data.Store) *AdminHandler {
	return &AdminHandler{
		app:     app,
		service: service,
		store:   store,
	}
}

// requireOrganizer loads the event and checks the caller owns it.
func (h *AdminHandler) requireOrganizer(e *core.RequestEvent, eventID string) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	event, err := h.store.GetEvent(e.Request.Context(), eventID)
	if err != nil {
		return apiError("Event not found", err)
	}
	if event.OrganizerID != e.Auth.Id {
		return apis.NewForbiddenError("Organizer access required", nil)
	}
	return nil
}

// Invite - Issue an invitation to a waitlisted user
func (h *AdminHandler) Invite(e *core.RequestEvent) error {
	var req struct {
		EventID string `json:"event_id"`
		UID     string `json:"uid"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := h.requireOrganizer(e, req.EventID); err != nil {
		return err
	}

	inv, err := h.service.Invite(e.Request.Context(), req.EventID, req.UID)
	if err != nil {
		return apiError("Failed to invite", err)
	}

	return e.JSON(http.StatusOK, inv)
}

// Admit - Admit a user directly, without an invitation round-trip
func (h *AdminHandler) Admit(e *core.RequestEvent) error {
	var req struct {
		EventID string `json:"event_id"`
		UID     string `json:"uid"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := h.requireOrganizer(e, req.EventID); err != nil {
		return err
	}

	if err := h.service.Admit(e.Request.Context(), req.EventID, req.UID); err != nil {
		return apiError("Failed to admit", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Admitted"})
}

// Waitlist - The event's waitlist entries in join order
func (h *AdminHandler) Waitlist(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}
	if err := h.requireOrganizer(e, eventID); err != nil {
		return err
	}

	entries, err := h.service.WaitlistEntries(e.Request.Context(), eventID)
	if err != nil {
		return apiError("Failed to list waitlist", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"entries": entries})
}
