package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventease/security"
	"eventease/services"
)

type RegistrationHandler struct {
	app         *pocketbase.PocketBase
	service     *services.RegistrationService
	rateLimiter *security.RateLimiter
}

func NewRegistrationHandler(app *pocketbase.PocketBase, service *services.RegistrationService, rateLimiter *security.RateLimiter) *RegistrationHandler {
	return &RegistrationHandler{
		app:         app,
		service:     service,
		rateLimiter: rateLimiter,
	}
}

// Join - Put the caller on an event's waitlist
func (h *RegistrationHandler) Join(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	if security.IsSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
		return apis.NewForbiddenError("Access denied", nil)
	}
	if h.rateLimiter != nil && !h.rateLimiter.Allow(e.Request.Context(), e.Auth.Id) {
		return apis.NewApiError(http.StatusTooManyRequests, "Too many requests", nil)
	}

	var req struct {
		EventID string `json:"event_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	if err := h.service.Join(e.Request.Context(), req.EventID, e.Auth.Id); err != nil {
		return apiError("Failed to join waitlist", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message":  "Joined waitlist",
		"event_id": req.EventID,
	})
}

// Leave - Remove the caller from an event's waitlist
func (h *RegistrationHandler) Leave(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID string `json:"event_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.service.Leave(e.Request.Context(), req.EventID, e.Auth.Id); err != nil {
		return apiError("Failed to leave waitlist", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Left waitlist"})
}

// Status - The caller's lifecycle state for an event
func (h *RegistrationHandler) Status(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.URL.Query().Get("event_id")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	state, err := h.service.Status(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		return apiError("Failed to read status", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id": eventID,
		"state":    state.String(),
	})
}

// WaitlistCount - Current queue length for an event
func (h *RegistrationHandler) WaitlistCount(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	n, err := h.service.WaitlistCount(e.Request.Context(), eventID)
	if err != nil {
		return apiError("Failed to count waitlist", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id": eventID,
		"count":    n,
	})
}

// Invitations - The caller's live invitations, oldest first
func (h *RegistrationHandler) Invitations(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	active, err := h.service.ListActiveInvitations(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return apiError("Failed to list invitations", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"invitations": active})
}

// Accept - Accept a live invitation and take the spot
func (h *RegistrationHandler) Accept(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID      string `json:"event_id"`
		InvitationID string `json:"invitation_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.service.Accept(e.Request.Context(), req.EventID, e.Auth.Id, req.InvitationID); err != nil {
		return apiError("Failed to accept invitation", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Invitation accepted"})
}

// Decline - Decline a live invitation and release the spot
func (h *RegistrationHandler) Decline(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID      string `json:"event_id"`
		InvitationID string `json:"invitation_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.service.Decline(e.Request.Context(), req.EventID, e.Auth.Id, req.InvitationID); err != nil {
		return apiError("Failed to decline invitation", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Invitation declined"})
}

// Notifications - The caller's notification log, newest first
func (h *RegistrationHandler) Notifications(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	limit := 50
	if raw := e.Request.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.service.Notifications(e.Request.Context(), e.Auth.Id, limit)
	if err != nil {
		return apiError("Failed to list notifications", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"notifications": entries})
}
