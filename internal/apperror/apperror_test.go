package apperror

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(NewNotFound("reservation")))
	assert.Equal(t, InvalidSlot, KindOf(fmt.Errorf("create: %w", NewInvalidSlot(CodeInsideBlock, "blocked"))))
	assert.Equal(t, Internal, KindOf(sql.ErrConnDone))
	assert.Equal(t, Internal, KindOf(nil))
}

func TestIsMatchesKindAndCode(t *testing.T) {
	err := fmt.Errorf("pay: %w", Wrap(ErrDepositExpired, errors.New("late")))
	assert.True(t, errors.Is(err, ErrDepositExpired))
	assert.False(t, errors.Is(err, ErrCancellationWindow))

	// An empty target code matches any code of the kind.
	assert.True(t, errors.Is(NewInvalidSlot(CodeOverlappingReservation, "x"), &Error{Kind: InvalidSlot}))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "service not found", NewNotFound("service").Error())
	assert.Equal(t, "deposit window expired: late", Wrap(ErrDepositExpired, errors.New("late")).Error())
	assert.Equal(t, "forbidden", NewForbidden("x").Code)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		NotFound:        http.StatusNotFound,
		Forbidden:       http.StatusForbidden,
		InvalidSlot:     http.StatusUnprocessableEntity,
		InvalidState:    http.StatusConflict,
		Expired:         http.StatusGone,
		InvalidArgument: http.StatusBadRequest,
		Conflict:        http.StatusConflict,
		Internal:        http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, HTTPStatus(k), k.String())
	}
}
