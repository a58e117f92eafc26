package handler

// This file defines HTTP handlers for owners to manage reservations.  Owners
// can list the reservations of their venues and move a reservation to
// NO_SHOW, CANCELED or COMPLETED.  Ownership is checked by the lifecycle
// service against the venue of the reservation.

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// OwnerReservationHandler serves the owner side of the lifecycle.
type OwnerReservationHandler struct {
	Reservations Lifecycle
	Log          zerolog.Logger
}

// NewOwnerReservationHandler panics when the lifecycle is nil.
func NewOwnerReservationHandler(svc Lifecycle, log zerolog.Logger) *OwnerReservationHandler {
	if svc == nil {
		panic("nil lifecycle passed to NewOwnerReservationHandler")
	}
	return &OwnerReservationHandler{Reservations: svc, Log: log}
}

// ListVenueReservations handles GET /v1/owner/venues/:id/reservations.
// It returns 404 for an unknown venue and 403 when the caller does not own
// it.
func (h *OwnerReservationHandler) ListVenueReservations(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	venueID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	page, err := h.Reservations.ListForVenue(c.Request().Context(), actor, venueID, pageFrom(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

type ownerStatusRequest struct {
	Action string `json:"action" validate:"required"`
	Reason string `json:"reason" validate:"max=255"`
}

// UpdateReservationStatus handles POST /v1/owner/reservations/:id/status
// with {action: NO_SHOW|CANCEL|COMPLETE, reason}.
func (h *OwnerReservationHandler) UpdateReservationStatus(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var body ownerStatusRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.Reservations.OwnerUpdateStatus(c.Request().Context(), actor, id, body.Action, body.Reason)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}
