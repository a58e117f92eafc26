package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-reservation/internal/service"
)

// CustomerHandler serves the customer side of the reservation lifecycle:
// booking, paying the deposit, canceling and listing one's own
// reservations.  All methods assume JWTAuth has run; capability checks
// are made by the lifecycle service.
type CustomerHandler struct {
	Reservations Lifecycle
	Log          zerolog.Logger
}

// NewCustomerHandler panics when the lifecycle is nil.
func NewCustomerHandler(svc Lifecycle, log zerolog.Logger) *CustomerHandler {
	if svc == nil {
		panic("nil lifecycle passed to NewCustomerHandler")
	}
	return &CustomerHandler{Reservations: svc, Log: log}
}

type createReservationRequest struct {
	ServiceID      uint64 `json:"service_id" validate:"required"`
	ScheduledStart string `json:"scheduled_start" validate:"required"`
	PartySize      int    `json:"party_size" validate:"required,min=1"`
}

// CreateReservation handles POST /v1/reservations.  It books a slot in
// DEPOSIT_PENDING and returns 201 with the reservation, including the
// deposit the customer must pay before the deposit window closes.
func (h *CustomerHandler) CreateReservation(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return badRequest(c, err.Error())
	}
	start, absolute, err := parseStart(body.ScheduledStart)
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.Reservations.Create(c.Request().Context(), actor, service.CreateInput{
		ServiceID: body.ServiceID,
		Start:     start,
		Absolute:  absolute,
		PartySize: body.PartySize,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListMyReservations handles GET /v1/my-reservations?page&limit&status.
// status is a reservation status or "all".
func (h *CustomerHandler) ListMyReservations(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	page, err := h.Reservations.ListMine(c.Request().Context(), actor, c.QueryParam("status"), pageFrom(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

type cancelRequest struct {
	Reason string `json:"cancel_reason" validate:"max=255"`
}

// CancelReservation handles PUT /v1/reservations/:id/cancel.  A captured
// deposit is refunded in the same transaction.
func (h *CustomerHandler) CancelReservation(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	// The body is optional.
	var body cancelRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		if err := c.Validate(&body); err != nil {
			return badRequest(c, err.Error())
		}
	}
	res, err := h.Reservations.Cancel(c.Request().Context(), actor, id, body.Reason)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

type payDepositRequest struct {
	ReservationID uint64 `json:"reservation_id" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,max=30"`
}

// PayDeposit handles POST /v1/payments/deposit.  It returns 201 with the
// captured payment, or 410 when the deposit window has passed.
func (h *CustomerHandler) PayDeposit(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var body payDepositRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return badRequest(c, err.Error())
	}
	p, err := h.Reservations.PayDeposit(c.Request().Context(), actor, body.ReservationID, body.PaymentMethod)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, p)
}
