package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(app.recoverPanic)
	r.Use(app.requestLogger)

	r.Get("/health", app.GetHealth)
	r.Get("/shows/{showId}/occupied-seats", app.GetOccupiedSeatsHandler)

	r.Group(func(r chi.Router) {
		r.Use(app.requireAuthentication)

		r.Post("/shows/{showId}/bookings", app.BookSeatsHandler)
		r.Get("/shows/{showId}/bookings", app.ListShowBookingsHandler)
		r.Get("/bookings/{bookingId}", app.GetBookingHandler)
	})

	return r
}
