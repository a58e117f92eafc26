// Package apperror defines the typed failures returned by the reservation
// lifecycle.  Every business-rule violation is an *Error carrying a Kind
// and a stable machine-readable Code; anything else is treated as an
// internal failure.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Forbidden
	InvalidSlot
	InvalidState
	Expired
	InvalidArgument
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case InvalidSlot:
		return "invalid_slot"
	case InvalidState:
		return "invalid_state"
	case Expired:
		return "expired"
	case InvalidArgument:
		return "invalid_argument"
	case Conflict:
		return "conflict"
	}
	return "internal"
}

// Codes refining a Kind.
const (
	CodeMisalignedTime         = "misaligned_time"
	CodePartySizeOutOfRange    = "party_size_out_of_range"
	CodeOutsideBusinessHours   = "outside_business_hours"
	CodeInsideBlock            = "inside_block"
	CodeOverlappingReservation = "overlapping_reservation"
	CodeCancellationWindow     = "cancellation_window_closed"
	CodeDepositWindowExpired   = "deposit_window_expired"
	CodeSlotConflict           = "slot_conflict"
)

// Error is a typed failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and code, so that callers
// can compare against the package-level sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

func newError(kind Kind, code, msg string) *Error {
	if code == "" {
		code = kind.String()
	}
	return &Error{Kind: kind, Code: code, Message: msg}
}

func NewNotFound(resource string) *Error {
	return newError(NotFound, "", resource+" not found")
}

func NewForbidden(msg string) *Error {
	return newError(Forbidden, "", msg)
}

func NewInvalidSlot(code, msg string) *Error {
	return newError(InvalidSlot, code, msg)
}

func NewInvalidState(msg string) *Error {
	return newError(InvalidState, "", msg)
}

func NewInvalidArgument(msg string) *Error {
	return newError(InvalidArgument, "", msg)
}

// Sentinels for the failures that carry no variable detail.
var (
	ErrCancellationWindow = newError(InvalidState, CodeCancellationWindow, "cancellations are allowed up to 24h before start")
	ErrDepositExpired     = newError(Expired, CodeDepositWindowExpired, "deposit window expired")
	ErrSlotConflict       = newError(Conflict, CodeSlotConflict, "slot no longer available, please retry")
)

// Wrap attaches a cause to a fresh copy of e.
func Wrap(e *Error, err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// KindOf returns the Kind of err, or Internal when err is not typed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind onto the response status used by handlers.
func HTTPStatus(k Kind) int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case InvalidSlot:
		return http.StatusUnprocessableEntity
	case InvalidState, Conflict:
		return http.StatusConflict
	case Expired:
		return http.StatusGone
	case InvalidArgument:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
