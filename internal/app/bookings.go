package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/metinatakli/seat-reservation-engine/api"
	"github.com/metinatakli/seat-reservation-engine/internal/booking"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

const (
	idempotencyKeyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLength = 255
)

func (app *Application) BookSeatsHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showID, err := readIDParam(r, "showId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input api.BookSeatsRequest

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	idempotencyKey := r.Header.Get(idempotencyKeyHeader)
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		app.badRequestResponse(w, r, errors.New(ErrIdempotencyKeyTooLong))
		return
	}

	confirmation, err := app.bookings.BookSeats(r.Context(), booking.BookSeatsInput{
		UserID:         app.contextGetUserID(r),
		ShowID:         showID,
		Seats:          toSeatIDs(input.SeatIds),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		var conflictErr *domain.SeatConflictError
		var selectionErr *domain.SeatSelectionError

		switch {
		case errors.As(err, &conflictErr):
			logger.Warn("booking rejected: seats already reserved", "show_id", showID, "seats", conflictErr.Seats)
			app.seatConflictResponse(w, r, conflictErr)
		case errors.As(err, &selectionErr):
			logger.Warn("booking rejected: invalid seat selection", "show_id", showID, "error", err)
			app.unprocessableEntityResponse(w, r, selectionErr)
		case errors.Is(err, domain.ErrIdempotencyKeyReused):
			logger.Warn("booking rejected: idempotency key reused", "show_id", showID)
			app.unprocessableEntityResponse(w, r, err)
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrTransientContention):
			logger.Warn("booking rejected: retries exhausted", "show_id", showID, "error", err)
			app.serviceUnavailableResponse(w, r)
		default:
			app.serverErrorResponse(w, r, fmt.Errorf("booking couldn't be created: %w", err))
		}

		return
	}

	status := http.StatusCreated
	if confirmation.Replayed {
		status = http.StatusOK
	}

	headers := http.Header{}
	headers.Set("Location", fmt.Sprintf("/bookings/%s", confirmation.Booking.ID))

	resp := api.BookingResponse{
		Booking:  toApiBooking(confirmation.Booking),
		Replayed: confirmation.Replayed,
	}

	err = app.writeJSON(w, status, resp, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetOccupiedSeatsHandler(w http.ResponseWriter, r *http.Request) {
	showID, err := readIDParam(r, "showId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	seats, err := app.bookings.GetOccupiedSeats(r.Context(), showID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	resp := api.OccupiedSeatsResponse{
		ShowId:        showID,
		OccupiedSeats: toSeatLabels(seats),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) ListShowBookingsHandler(w http.ResponseWriter, r *http.Request) {
	showID, err := readIDParam(r, "showId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	bookings, err := app.bookings.ListBookings(r.Context(), showID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	resp := api.ShowBookingsResponse{
		ShowId:   showID,
		Bookings: make([]api.Booking, len(bookings)),
	}

	for i := range bookings {
		resp.Bookings[i] = toApiBooking(&bookings[i])
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingId"))
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	b, err := app.bookings.GetBooking(r.Context(), app.contextGetUserID(r), bookingID.String())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	resp := api.BookingResponse{
		Booking: toApiBooking(b),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toApiBooking(b *domain.Booking) api.Booking {
	return api.Booking{
		Id:            b.ID,
		BookingNumber: b.Number,
		UserId:        b.UserID,
		ShowId:        b.ShowID,
		Seats:         toSeatLabels(b.Seats),
		Amount:        b.Amount,
		Status:        b.Status.String(),
		CreatedAt:     b.CreatedAt,
	}
}

func toSeatIDs(labels []string) []domain.SeatID {
	seats := make([]domain.SeatID, len(labels))
	for i, label := range labels {
		seats[i] = domain.SeatID(label)
	}

	return seats
}

func toSeatLabels(seats []domain.SeatID) []string {
	labels := make([]string, len(seats))
	for i, seat := range seats {
		labels[i] = string(seat)
	}

	return labels
}
