package router

// This file registers owner-specific routes for managing reservations.  The
// routes let owners list the reservations of their venues and record
// no-shows, cancellations and completions.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
)

// RegisterOwnerReservations registers routes that allow owners to manage
// reservations.  All routes are mounted under /v1/owner and require a JWT
// as well as the OWNER role.  Venue ownership itself is checked by the
// lifecycle service.
func RegisterOwnerReservations(e *echo.Echo, h *handler.OwnerReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/owner",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner),
	)
	// List the reservations of one venue
	g.GET("/venues/:id/reservations", h.ListVenueReservations)
	// NO_SHOW, CANCEL or COMPLETE a reservation
	g.POST("/reservations/:id/status", h.UpdateReservationStatus)
}
