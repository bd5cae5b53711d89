package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/seat-reservation-engine/api"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	appvalidator "github.com/metinatakli/seat-reservation-engine/internal/validator"
)

const (
	ErrUnauthorizedAccess    = "You must be authenticated to access this resource"
	ErrInvalidToken          = "Invalid or expired authentication token"
	ErrInternalServer        = "The server encountered a problem and could not process your request"
	ErrResourceNotFound      = "The requested resource not found"
	ErrMethodNotAllowed      = "The %s method is not supported for this resource"
	ErrFailedValidation      = "One or more fields have invalid values"
	ErrTransientContention   = "The show is receiving too many bookings right now, please retry shortly"
	ErrIdempotencyKeyTooLong = "Idempotency-Key header must be at most 255 characters long"
)

const retryAfterSeconds = 1

func (app *Application) logError(r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.contextGetLogger(r).Error(err.Error(), "method", method, "uri", uri)
}

// The errorResponse() method is a generic helper for sending JSON-formatted error
// messages to the client with a given status code.
func (app *Application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	resp := api.ErrorResponse{
		Message:   message,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	app.writeResponse(w, r, status, resp, nil)
}

func (app *Application) writeResponse(w http.ResponseWriter, r *http.Request, status int, resp any, headers http.Header) {
	err := app.writeJSON(w, status, resp, headers)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	app.errorResponse(w, r, http.StatusInternalServerError, ErrInternalServer)
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, ErrResourceNotFound)
}

func (app *Application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusMethodNotAllowed, fmt.Sprintf(ErrMethodNotAllowed, r.Method))
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *Application) unprocessableEntityResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
}

func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.ValidationErrorResponse{
		Message:          ErrFailedValidation,
		RequestId:        middleware.GetReqID(r.Context()),
		Timestamp:        time.Now(),
		ValidationErrors: make([]api.ValidationError, len(validationErrs)),
	}

	for i, fieldErr := range validationErrs {
		resp.ValidationErrors[i] = api.ValidationError{
			Field: fieldErr.Field(),
			Issue: appvalidator.ValidationMessage(fieldErr),
		}
	}

	app.writeResponse(w, r, http.StatusUnprocessableEntity, resp, nil)
}

func (app *Application) seatConflictResponse(w http.ResponseWriter, r *http.Request, conflict *domain.SeatConflictError) {
	seats := make([]string, len(conflict.Seats))
	for i, seat := range conflict.Seats {
		seats[i] = string(seat)
	}

	resp := api.SeatConflictResponse{
		Message:          conflict.Error(),
		RequestId:        middleware.GetReqID(r.Context()),
		Timestamp:        time.Now(),
		ConflictingSeats: seats,
	}

	app.writeResponse(w, r, http.StatusConflict, resp, nil)
}

func (app *Application) serviceUnavailableResponse(w http.ResponseWriter, r *http.Request) {
	resp := api.ErrorResponse{
		Message:   ErrTransientContention,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	headers := http.Header{}
	headers.Set("Retry-After", strconv.Itoa(retryAfterSeconds))

	app.writeResponse(w, r, http.StatusServiceUnavailable, resp, headers)
}

func (app *Application) unauthorizedAccessResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusUnauthorized, ErrUnauthorizedAccess)
}

func (app *Application) invalidAuthenticationTokenResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")

	app.errorResponse(w, r, http.StatusUnauthorized, ErrInvalidToken)
}
