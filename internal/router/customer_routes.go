package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
)

// RegisterCustomer registers the reservation endpoints any authenticated
// user may call.  Whether the caller may book, pay or cancel is decided by
// the lifecycle service from the roles in the token, so no role gate is
// applied here.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
	)
	g.POST("/reservations", h.CreateReservation)
	g.GET("/my-reservations", h.ListMyReservations)
	g.PUT("/reservations/:id/cancel", h.CancelReservation)
	g.POST("/payments/deposit", h.PayDeposit)
}
