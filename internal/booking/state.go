package booking

import (
	"fmt"
	"strings"

	"github.com/iliyamo/venue-reservation/internal/apperror"
	"github.com/iliyamo/venue-reservation/internal/model"
)

// transitions lists the lifecycle edges driven by customers, payments and
// the expiry sweep.
var transitions = map[model.ReservationStatus][]model.ReservationStatus{
	model.StatusDepositPending: {model.StatusBooked, model.StatusCanceled},
	model.StatusBooked:         {model.StatusCompleted, model.StatusNoShow, model.StatusCanceled},
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s model.ReservationStatus) bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is a lifecycle edge.
func CanTransition(from, to model.ReservationStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Cancelable reports whether a customer or owner may cancel from s.
func Cancelable(s model.ReservationStatus) bool {
	return CanTransition(s, model.StatusCanceled)
}

// OwnerAction is a status change requested by a venue owner.
type OwnerAction string

const (
	ActionNoShow   OwnerAction = "NO_SHOW"
	ActionCancel   OwnerAction = "CANCEL"
	ActionComplete OwnerAction = "COMPLETE"
)

// ParseOwnerAction accepts the action names case-insensitively, including
// COMPLETED as a synonym of COMPLETE.
func ParseOwnerAction(s string) (OwnerAction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NO_SHOW":
		return ActionNoShow, nil
	case "CANCEL":
		return ActionCancel, nil
	case "COMPLETE", "COMPLETED":
		return ActionComplete, nil
	}
	return "", apperror.NewInvalidArgument(fmt.Sprintf("invalid action %q", s))
}

// Target is the status the action moves a reservation to.
func (a OwnerAction) Target() model.ReservationStatus {
	switch a {
	case ActionNoShow:
		return model.StatusNoShow
	case ActionCancel:
		return model.StatusCanceled
	}
	return model.StatusCompleted
}

// OwnerMayApply reports whether an owner action is allowed from s.  Owners
// override the ordering of the lifecycle: any non-terminal reservation may
// be marked NO_SHOW, COMPLETED or CANCELED.
func OwnerMayApply(a OwnerAction, s model.ReservationStatus) bool {
	return !IsTerminal(s)
}
