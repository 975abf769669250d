package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"

	"eventease/data"
	"eventease/lifecycle"
	"eventease/logic"
	"eventease/services"
)

// apiError maps domain errors onto HTTP responses. Conflicts are 409 so
// clients know to re-read and retry; transport failures are 503.
func apiError(message string, err error) error {
	var validation *logic.ValidationError
	var precondition *lifecycle.PreconditionError

	switch {
	case errors.Is(err, data.ErrNotFound):
		return apis.NewNotFoundError(message, err)
	case data.IsConflict(err):
		return apis.NewApiError(http.StatusConflict, "State changed, please retry", err)
	case data.IsTransport(err):
		return apis.NewApiError(http.StatusServiceUnavailable, "Storage unavailable", err)
	case errors.As(err, &validation):
		return apis.NewBadRequestError(validation.Error(), err)
	case errors.As(err, &precondition):
		return apis.NewBadRequestError(message, err)
	case errors.Is(err, services.ErrRegistrationClosed),
		errors.Is(err, services.ErrCapacityReached):
		return apis.NewBadRequestError(err.Error(), err)
	default:
		return apis.NewApiError(http.StatusInternalServerError, message, err)
	}
}
