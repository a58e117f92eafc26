package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation/internal/apperror"
	"github.com/iliyamo/venue-reservation/internal/booking"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/service"
	"github.com/iliyamo/venue-reservation/internal/utils"
)

const secret = "handler-secret"

// stubLifecycle records the last call and returns canned results.
type stubLifecycle struct {
	actor  booking.Actor
	input  service.CreateInput
	id     uint64
	text   string
	action string
	page   model.PageRequest
	day    time.Time
	err    error
	calls  int
}

func (s *stubLifecycle) Create(_ context.Context, a booking.Actor, in service.CreateInput) (*service.ReservationView, error) {
	s.calls++
	s.actor, s.input = a, in
	if s.err != nil {
		return nil, s.err
	}
	return &service.ReservationView{ID: 11, Status: string(model.StatusDepositPending), DepositAmount: decimal.NewFromInt(3600)}, nil
}

func (s *stubLifecycle) PayDeposit(_ context.Context, a booking.Actor, id uint64, method string) (*service.PaymentView, error) {
	s.calls++
	s.actor, s.id, s.text = a, id, method
	if s.err != nil {
		return nil, s.err
	}
	return &service.PaymentView{ID: 1, ReservationID: id, Type: "DEPOSIT", Status: "CAPTURED"}, nil
}

func (s *stubLifecycle) Cancel(_ context.Context, a booking.Actor, id uint64, reason string) (*service.ReservationView, error) {
	s.calls++
	s.actor, s.id, s.text = a, id, reason
	if s.err != nil {
		return nil, s.err
	}
	return &service.ReservationView{ID: id, Status: string(model.StatusCanceled)}, nil
}

func (s *stubLifecycle) OwnerUpdateStatus(_ context.Context, a booking.Actor, id uint64, action, reason string) (*service.ReservationView, error) {
	s.calls++
	s.actor, s.id, s.action, s.text = a, id, action, reason
	if s.err != nil {
		return nil, s.err
	}
	return &service.ReservationView{ID: id, Status: string(model.StatusNoShow)}, nil
}

func (s *stubLifecycle) ListMine(_ context.Context, a booking.Actor, status string, page model.PageRequest) (model.Page[service.ReservationView], error) {
	s.calls++
	s.actor, s.text, s.page = a, status, page
	if s.err != nil {
		return model.Page[service.ReservationView]{}, s.err
	}
	return model.NewPage([]service.ReservationView{{ID: 3}}, model.PageRequest{Page: 1, Limit: 10}, 1), nil
}

func (s *stubLifecycle) ListForVenue(_ context.Context, a booking.Actor, venueID uint64, page model.PageRequest) (model.Page[service.ReservationView], error) {
	s.calls++
	s.actor, s.id, s.page = a, venueID, page
	if s.err != nil {
		return model.Page[service.ReservationView]{}, s.err
	}
	return model.NewPage[service.ReservationView](nil, model.PageRequest{Page: 1, Limit: 20}, 0), nil
}

func (s *stubLifecycle) Snapshot(_ context.Context, serviceID uint64, day time.Time) (*service.SnapshotView, error) {
	s.calls++
	s.id, s.day = serviceID, day
	if s.err != nil {
		return nil, s.err
	}
	return &service.SnapshotView{ServiceID: serviceID, Date: day.Format("2006-01-02")}, nil
}

func newServer(stub *stubLifecycle) *echo.Echo {
	e := echo.New()
	e.Validator = NewRequestValidator()
	log := zerolog.Nop()
	ch := NewCustomerHandler(stub, log)
	oh := NewOwnerReservationHandler(stub, log)
	ph := NewPublicHandler(stub, log)

	e.GET("/v1/services/:id/snapshot", ph.GetServiceSnapshot)
	auth := e.Group("/v1", middleware.JWTAuth(secret))
	auth.POST("/reservations", ch.CreateReservation)
	auth.GET("/my-reservations", ch.ListMyReservations)
	auth.PUT("/reservations/:id/cancel", ch.CancelReservation)
	auth.POST("/payments/deposit", ch.PayDeposit)
	owner := auth.Group("/owner", middleware.RequireRole(model.RoleOwner))
	owner.GET("/venues/:id/reservations", oh.ListVenueReservations)
	owner.POST("/reservations/:id/status", oh.UpdateReservationStatus)
	return e
}

func call(t *testing.T, e *echo.Echo, method, path, body string, userID uint64, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != 0 {
		tok, err := utils.NewAccessToken(secret, userID, roles, 5)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateReservationLocalStart(t *testing.T) {
	stub := &stubLifecycle{}
	e := newServer(stub)

	rec := call(t, e, http.MethodPost, "/v1/reservations",
		`{"service_id":7,"scheduled_start":"2030-06-05T12:00","party_size":2}`, 5, model.RoleCustomer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"deposit_amount":"3600"`)

	assert.Equal(t, uint64(5), stub.actor.UserID)
	assert.True(t, stub.actor.Has(booking.CapBook))
	assert.Equal(t, uint64(7), stub.input.ServiceID)
	assert.False(t, stub.input.Absolute)
	assert.Equal(t, time.Date(2030, 6, 5, 12, 0, 0, 0, time.UTC), stub.input.Start)
	assert.Equal(t, 2, stub.input.PartySize)
}

func TestCreateReservationRFC3339Start(t *testing.T) {
	stub := &stubLifecycle{}
	e := newServer(stub)

	rec := call(t, e, http.MethodPost, "/v1/reservations",
		`{"service_id":7,"scheduled_start":"2030-06-05T12:00:00+09:00","party_size":2}`, 5)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, stub.input.Absolute)
	assert.True(t, stub.input.Start.Equal(time.Date(2030, 6, 5, 3, 0, 0, 0, time.UTC)))
}

func TestCreateReservationValidation(t *testing.T) {
	stub := &stubLifecycle{}
	e := newServer(stub)

	cases := map[string]string{
		"missing service": `{"scheduled_start":"2030-06-05T12:00","party_size":2}`,
		"zero party":      `{"service_id":7,"scheduled_start":"2030-06-05T12:00","party_size":0}`,
		"bad start":       `{"service_id":7,"scheduled_start":"tomorrow","party_size":2}`,
		"bad json":        `{"service_id":`,
	}
	for name, body := range cases {
		rec := call(t, e, http.MethodPost, "/v1/reservations", body, 5)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
	assert.Zero(t, stub.calls)

	rec := call(t, e, http.MethodPost, "/v1/reservations", `{"service_id":7,"scheduled_start":"2030-06-05T12:00","party_size":2}`, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLifecycleErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.NewInvalidSlot(apperror.CodeOverlappingReservation, "slot is already reserved"), http.StatusUnprocessableEntity, apperror.CodeOverlappingReservation},
		{apperror.NewForbidden("only customers can book"), http.StatusForbidden, "forbidden"},
		{apperror.NewNotFound("service"), http.StatusNotFound, "not_found"},
		{apperror.ErrSlotConflict, http.StatusConflict, apperror.CodeSlotConflict},
		{errors.New("connection reset"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		stub := &stubLifecycle{err: tc.err}
		rec := call(t, newServer(stub), http.MethodPost, "/v1/reservations",
			`{"service_id":7,"scheduled_start":"2030-06-05T12:00","party_size":2}`, 5)
		assert.Equal(t, tc.status, rec.Code)
		if tc.code != "" {
			assert.Contains(t, rec.Body.String(), `"code":"`+tc.code+`"`)
		} else {
			assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
		}
	}
}

func TestPayDeposit(t *testing.T) {
	stub := &stubLifecycle{}
	rec := call(t, newServer(stub), http.MethodPost, "/v1/payments/deposit", `{"reservation_id":11,"payment_method":"CARD"}`, 5)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(11), stub.id)
	assert.Equal(t, "CARD", stub.text)

	stub = &stubLifecycle{err: apperror.ErrDepositExpired}
	rec = call(t, newServer(stub), http.MethodPost, "/v1/payments/deposit", `{"reservation_id":11,"payment_method":"CARD"}`, 5)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Contains(t, rec.Body.String(), apperror.CodeDepositWindowExpired)

	stub = &stubLifecycle{}
	rec = call(t, newServer(stub), http.MethodPost, "/v1/payments/deposit", `{"reservation_id":11}`, 5)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_method is required")
}

func TestCancelReservation(t *testing.T) {
	stub := &stubLifecycle{}
	e := newServer(stub)

	rec := call(t, e, http.MethodPut, "/v1/reservations/11/cancel", `{"cancel_reason":"sick"}`, 5)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(11), stub.id)
	assert.Equal(t, "sick", stub.text)

	rec = call(t, e, http.MethodPut, "/v1/reservations/11/cancel", "", 5)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, stub.text)

	rec = call(t, e, http.MethodPut, "/v1/reservations/abc/cancel", "", 5)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stub.err = apperror.ErrCancellationWindow
	rec = call(t, e, http.MethodPut, "/v1/reservations/11/cancel", "", 5)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), apperror.CodeCancellationWindow)
}

func TestListMyReservations(t *testing.T) {
	stub := &stubLifecycle{}
	rec := call(t, newServer(stub), http.MethodGet, "/v1/my-reservations?page=2&limit=5&status=booked", "", 5)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PageRequest{Page: 2, Limit: 5}, stub.page)
	assert.Equal(t, "booked", stub.text)
	assert.Contains(t, rec.Body.String(), `"total_items":1`)
	assert.Contains(t, rec.Body.String(), `"total_pages":1`)
}

func TestOwnerRoutes(t *testing.T) {
	stub := &stubLifecycle{}
	e := newServer(stub)

	rec := call(t, e, http.MethodGet, "/v1/owner/venues/1/reservations", "", 9, model.RoleOwner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(1), stub.id)
	assert.True(t, stub.actor.Has(booking.CapManageVenue))
	assert.Contains(t, rec.Body.String(), `"items":[]`)

	rec = call(t, e, http.MethodPost, "/v1/owner/reservations/11/status", `{"action":"NO_SHOW"}`, 9, model.RoleOwner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NO_SHOW", stub.action)

	rec = call(t, e, http.MethodPost, "/v1/owner/reservations/11/status", `{"reason":"x"}`, 9, model.RoleOwner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Customers never reach the owner handlers.
	calls := stub.calls
	rec = call(t, e, http.MethodGet, "/v1/owner/venues/1/reservations", "", 5, model.RoleCustomer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, calls, stub.calls)
}

func TestGetServiceSnapshot(t *testing.T) {
	stub := &stubLifecycle{}
	e := newServer(stub)

	rec := call(t, e, http.MethodGet, "/v1/services/7/snapshot?date=2030-06-05", "", 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(7), stub.id)
	assert.Equal(t, time.Date(2030, 6, 5, 0, 0, 0, 0, time.UTC), stub.day)

	rec = call(t, e, http.MethodGet, "/v1/services/7/snapshot?date=06/05/2030", "", 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealthAndReady(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health)
	e.GET("/readyz", Ready(pinger{}))
	e.GET("/down", Ready(pinger{err: errors.New("no db")}))

	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/healthz", "", 0).Code)
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/readyz", "", 0).Code)
	assert.Equal(t, http.StatusServiceUnavailable, call(t, e, http.MethodGet, "/down", "", 0).Code)
}
