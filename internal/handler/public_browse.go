// Public, unauthenticated catalog reads.  Responses are safe to cache:
// they carry no owner or customer data.

package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// PublicHandler serves the public availability view of a service.
type PublicHandler struct {
	Catalog Lifecycle
	Log     zerolog.Logger
}

func NewPublicHandler(svc Lifecycle, log zerolog.Logger) *PublicHandler {
	return &PublicHandler{Catalog: svc, Log: log}
}

// GetServiceSnapshot handles GET /v1/services/:id/snapshot?date=YYYY-MM-DD.
// It returns the price, party bounds, deposit rate, opening windows and
// closures of the service on that venue-local date.
func (h *PublicHandler) GetServiceSnapshot(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid service id")
	}
	day, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), time.UTC)
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	snap, err := h.Catalog.Snapshot(c.Request().Context(), id, day)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, snap)
}
