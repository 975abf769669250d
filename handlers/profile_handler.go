package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventease/data"
	"eventease/models"
	"eventease/services"
)

type ProfileHandler struct {
	app     *pocketbase.PocketBase
	store   data.Store
	service *services.RegistrationService
}

func NewProfileHandler(app *pocketbase.PocketBase, store data.Store, service *services.RegistrationService) *ProfileHandler {
	return &ProfileHandler{
		app:     app,
		store:   store,
		service: service,
	}
}

// GetProfile - The caller's profile
func (h *ProfileHandler) GetProfile(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	p, err := h.store.GetProfile(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return apiError("Profile not found", err)
	}
	return e.JSON(http.StatusOK, p)
}

// UpsertProfile - Create or update the caller's profile
func (h *ProfileHandler) UpsertProfile(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
		PhotoURL    string `json:"photo_url"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	now := time.Now().UTC()
	p := &models.Profile{
		UID:         e.Auth.Id,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		PhotoURL:    req.PhotoURL,
		UpdatedAt:   now,
	}
	if existing, err := h.store.GetProfile(e.Request.Context(), e.Auth.Id); err == nil {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}

	if err := h.store.UpsertProfile(e.Request.Context(), p); err != nil {
		return apiError("Failed to save profile", err)
	}
	return e.JSON(http.StatusOK, p)
}

// DeleteProfile - Remove the caller's profile and every registration record
func (h *ProfileHandler) DeleteProfile(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	if err := h.store.DeleteProfile(e.Request.Context(), e.Auth.Id); err != nil {
		return apiError("Failed to delete profile", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"message": "Profile deleted"})
}

// UpcomingEvents - Events the caller is admitted to that have not started
func (h *ProfileHandler) UpcomingEvents(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	events, err := h.service.UpcomingEvents(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return apiError("Failed to list events", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"events": events})
}

// PreviousEvents - Events the caller attended that already started
func (h *ProfileHandler) PreviousEvents(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	events, err := h.service.PreviousEvents(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return apiError("Failed to list events", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"events": events})
}
