// Package booking holds the pure decision logic of the reservation
// engine: slot validation, pricing, the status transition table and the
// actor capability set.  Nothing here touches storage or the clock.
package booking

import (
	"fmt"
	"time"

	"github.com/iliyamo/venue-reservation/internal/apperror"
	"github.com/iliyamo/venue-reservation/internal/model"
)

// SlotGranularity is the venue-wide alignment of slot start times.
const SlotGranularity = 30 * time.Minute

// SlotRequest carries a proposed slot together with the catalog data and
// reservations it is checked against.  Start is a venue-local wall-clock
// time; its Location is ignored.
type SlotRequest struct {
	Service   model.Service
	Start     time.Time
	PartySize int
	Hours     []model.BusinessHour
	Blocks    []model.AvailabilityBlock
	Active    []model.Reservation
}

// End returns the exclusive end of the proposed slot.
func (r SlotRequest) End() time.Time {
	return r.Start.Add(time.Duration(r.Service.DurationMinutes) * time.Minute)
}

// ValidateSlot checks a proposed slot and returns nil when it can be
// booked.  Checks run in a fixed order and the first failure wins:
// alignment, party size, business hours, blocks, overlap.
func ValidateSlot(r SlotRequest) error {
	start, end := r.Start, r.End()

	if start.Minute()%30 != 0 || start.Second() != 0 || start.Nanosecond() != 0 {
		return apperror.NewInvalidSlot(apperror.CodeMisalignedTime,
			"reservations start on 30-minute boundaries")
	}

	lo, hi := r.Service.PartyBounds()
	if r.PartySize < lo || r.PartySize > hi {
		return apperror.NewInvalidSlot(apperror.CodePartySizeOutOfRange,
			fmt.Sprintf("party size must be between %d and %d", lo, hi))
	}

	from := model.TimeOfDayOf(start)
	to := from + model.TimeOfDay(r.Service.DurationMinutes)
	if !withinHours(r.Hours, int(start.Weekday()), from, to) {
		return apperror.NewInvalidSlot(apperror.CodeOutsideBusinessHours,
			"slot is outside business hours")
	}

	for _, b := range r.Blocks {
		if !sameDate(b.Date, start) {
			continue
		}
		if from < b.End && to > b.Start {
			return apperror.NewInvalidSlot(apperror.CodeInsideBlock,
				"slot is unavailable at this time")
		}
	}

	for _, other := range r.Active {
		if other.ServiceID != r.Service.ID || !isActive(other.Status) {
			continue
		}
		if other.Overlaps(start, end) {
			return apperror.NewInvalidSlot(apperror.CodeOverlappingReservation,
				"slot is already reserved")
		}
	}
	return nil
}

// withinHours reports whether [from, to) fits entirely inside one window
// of the given weekday.  A slot running past midnight never fits.
func withinHours(hours []model.BusinessHour, dow int, from, to model.TimeOfDay) bool {
	for _, h := range hours {
		if h.DayOfWeek != dow {
			continue
		}
		if h.Open <= from && to <= h.Close {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func isActive(s model.ReservationStatus) bool {
	for _, st := range model.ActiveStatuses {
		if s == st {
			return true
		}
	}
	return false
}
