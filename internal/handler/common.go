package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-reservation/internal/apperror"
	"github.com/iliyamo/venue-reservation/internal/booking"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/service"
)

// Lifecycle is the part of the reservation service the handlers call.
type Lifecycle interface {
	Create(ctx context.Context, actor booking.Actor, in service.CreateInput) (*service.ReservationView, error)
	PayDeposit(ctx context.Context, actor booking.Actor, reservationID uint64, method string) (*service.PaymentView, error)
	Cancel(ctx context.Context, actor booking.Actor, reservationID uint64, reason string) (*service.ReservationView, error)
	OwnerUpdateStatus(ctx context.Context, actor booking.Actor, reservationID uint64, action, reason string) (*service.ReservationView, error)
	ListMine(ctx context.Context, actor booking.Actor, status string, page model.PageRequest) (model.Page[service.ReservationView], error)
	ListForVenue(ctx context.Context, actor booking.Actor, venueID uint64, page model.PageRequest) (model.Page[service.ReservationView], error)
	Snapshot(ctx context.Context, serviceID uint64, day time.Time) (*service.SnapshotView, error)
}

var errUnauthorized = errors.New("unauthorized")

// actorFrom builds the lifecycle actor from the identity JWTAuth stored
// in the context.
func actorFrom(c echo.Context) (booking.Actor, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return booking.Actor{}, errUnauthorized
	}
	return booking.NewActor(id, middleware.Roles(c)...), nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// pageFrom reads page and limit query parameters.  Missing or invalid
// values are left zero for the service to default.
func pageFrom(c echo.Context) model.PageRequest {
	var p model.PageRequest
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		p.Limit = v
	}
	return p
}

// respondError writes a typed lifecycle error with its status and code.
// Anything untyped is logged and hidden behind a generic 500.
func respondError(c echo.Context, log zerolog.Logger, err error) error {
	if errors.Is(err, errUnauthorized) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		code := ae.Code
		if code == "" {
			code = ae.Kind.String()
		}
		return c.JSON(apperror.HTTPStatus(ae.Kind), echo.Map{"error": ae.Message, "code": code})
	}
	log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": apperror.InvalidArgument.String()})
}

// Accepted forms of a venue-local start time.
var localLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02 15:04:05"}

// parseStart reads a scheduled start.  A value without a zone is a
// venue-local wall clock; an RFC3339 value is an instant.
func parseStart(s string) (t time.Time, absolute bool, err error) {
	s = strings.TrimSpace(s)
	for _, layout := range localLayouts {
		if t, err = time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, false, nil
		}
	}
	if t, err = time.Parse(time.RFC3339, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, errors.New("scheduled_start must be YYYY-MM-DDTHH:MM[:SS] or RFC3339")
}
