package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"eventease/data"
	"eventease/logic"
	"eventease/models"
	"eventease/utils"
)

type EventHandler struct {
	app       *pocketbase.PocketBase
	store     data.Store
	validator *logic.Validator
}

func NewEventHandler(app *pocketbase.PocketBase, store data.Store, validator *logic.Validator) *EventHandler {
	return &EventHandler{
		app:       app,
		store:     store,
		validator: validator,
	}
}

type createEventRequest struct {
	Title             string `json:"title"`
	Notes             string `json:"notes"`
	Guidelines        string `json:"guidelines"`
	Location          string `json:"location"`
	Capacity          string `json:"capacity"`
	Fee               string `json:"fee"`
	StartsAt          int64  `json:"starts_at"`
	RegistrationStart int64  `json:"registration_start"`
	RegistrationEnd   int64  `json:"registration_end"`
	Deadline          int64  `json:"deadline"`
	PosterURL         string `json:"poster_url"`
}

// CreateEvent - Create a new event owned by the caller
func (h *EventHandler) CreateEvent(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req createEventRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.validator.ValidateTitle(req.Title); err != nil {
		return apiError("Invalid title", err)
	}
	if err := h.validator.ValidateCapacity(req.Capacity); err != nil {
		return apiError("Invalid capacity", err)
	}
	if err := h.validator.ValidateWhen(req.StartsAt); err != nil {
		return apiError("Invalid start time", err)
	}
	if err := h.validator.ValidateFee(req.Fee); err != nil {
		return apiError("Invalid fee", err)
	}

	id, err := utils.GenerateCode(8)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to create event", err)
	}

	event := models.NewDraftEvent(id, e.Auth.Id, h.validator.Now())
	event.Title = req.Title
	event.Notes = req.Notes
	event.Guidelines = req.Guidelines
	event.Location = req.Location
	event.PosterURL = req.PosterURL
	event.Capacity = parseCapacity(req.Capacity)
	event.StartsAt = time.UnixMilli(req.StartsAt).UTC()
	if req.RegistrationStart > 0 {
		event.RegistrationStart = time.UnixMilli(req.RegistrationStart).UTC()
	}
	if req.RegistrationEnd > 0 {
		event.RegistrationEnd = time.UnixMilli(req.RegistrationEnd).UTC()
	}
	if req.Deadline > 0 {
		event.Deadline = time.UnixMilli(req.Deadline).UTC()
	}
	if req.Fee != "" {
		fee, _ := decimal.NewFromString(req.Fee)
		event.Fee = fee
	}

	if err := h.store.CreateEvent(e.Request.Context(), event); err != nil {
		return apiError("Failed to create event", err)
	}

	return e.JSON(http.StatusOK, event)
}

// ListOpenEvents - Events whose registration window is open
func (h *EventHandler) ListOpenEvents(e *core.RequestEvent) error {
	events, err := h.openEvents(e.Request.Context())
	if err != nil {
		return apiError("Failed to list events", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"events": events})
}

// openEvents lists events open for registration at the handler's clock.
func (h *EventHandler) openEvents(ctx context.Context) ([]*models.Event, error) {
	return h.store.OpenEvents(ctx, h.validator.Now())
}

// GetEvent - Fetch one event with its current waitlist and admitted lists
func (h *EventHandler) GetEvent(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	event, err := h.store.GetEvent(e.Request.Context(), eventID)
	if err != nil {
		return apiError("Event not found", err)
	}
	return e.JSON(http.StatusOK, event)
}

// DeleteEvent - Remove an event and all dependent registration records
func (h *EventHandler) DeleteEvent(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	event, err := h.store.GetEvent(e.Request.Context(), eventID)
	if err != nil {
		return apiError("Event not found", err)
	}
	if event.OrganizerID != e.Auth.Id {
		return apis.NewForbiddenError("Only the organizer can delete the event", nil)
	}

	if err := h.store.DeleteEvent(e.Request.Context(), eventID); err != nil {
		return apiError("Failed to delete event", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"message": "Event deleted"})
}

// parseCapacity runs after ValidateCapacity, so the input is known good.
func parseCapacity(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
