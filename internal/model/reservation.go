package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusDepositPending ReservationStatus = "DEPOSIT_PENDING"
	StatusBooked         ReservationStatus = "BOOKED"
	StatusCompleted      ReservationStatus = "COMPLETED"
	StatusCanceled       ReservationStatus = "CANCELED"
	StatusNoShow         ReservationStatus = "NO_SHOW"
)

// ActiveStatuses are the states that occupy a slot.
var ActiveStatuses = []ReservationStatus{StatusDepositPending, StatusBooked}

// ParseReservationStatus returns the status named by s and whether it is
// one of the known values.
func ParseReservationStatus(s string) (ReservationStatus, bool) {
	switch st := ReservationStatus(s); st {
	case StatusDepositPending, StatusBooked, StatusCompleted, StatusCanceled, StatusNoShow:
		return st, true
	}
	return "", false
}

// Reservation records a customer's booking of one slot of a service.
// Scheduled times are venue-local wall-clock values stored without a
// zone; in Go they carry time.UTC as a neutral location.  Pricing and
// grade fields are captured at creation and never recomputed.
//
// Fields:
//  ID                   – primary key identifier.
//  CustomerID           – user who made the reservation.
//  VenueID              – venue of the booked service.
//  ServiceID            – booked service.
//  PartySize            – number of guests.
//  ScheduledStart       – local start of the slot.
//  ScheduledEnd         – local end of the slot (start + duration).
//  Status               – lifecycle state.
//  BookedAt             – when the booking request was accepted.
//  CanceledAt           – when the reservation was canceled, if ever.
//  CanceledBy           – user who canceled; nil for system expiry.
//  CancelReason         – free text reason.
//  NoShowMarkedAt       – when the owner marked a no-show.
//  TotalPrice           – price * party size at booking time.
//  DepositRatePercent   – deposit rate applied at booking time.
//  GradeID              – grade applied at booking time.
//  GradeDiscountPercent – discount of that grade at booking time.
//  DepositAmount        – deposit the customer must pay.
//  Currency             – ISO 4217 code.
//  CreatedAt            – creation timestamp (UTC); the deposit window
//                         starts here.
//  UpdatedAt            – last update timestamp (UTC).
//  VenueOwnerID         – owner of the venue (joined, not stored).
//  VenueTimezone        – IANA zone of the venue (joined, not stored).
type Reservation struct {
	ID                   uint64            // reservations.id
	CustomerID           uint64            // reservations.customer_user_id
	VenueID              uint64            // reservations.venue_id
	ServiceID            uint64            // reservations.service_id
	PartySize            int               // reservations.party_size
	ScheduledStart       time.Time         // reservations.scheduled_start
	ScheduledEnd         time.Time         // reservations.scheduled_end
	Status               ReservationStatus // reservations.status
	BookedAt             time.Time         // reservations.booked_at
	CanceledAt           *time.Time        // reservations.canceled_at (nullable)
	CanceledBy           *uint64           // reservations.canceled_by_user_id (nullable)
	CancelReason         *string           // reservations.cancel_reason (nullable)
	NoShowMarkedAt       *time.Time        // reservations.no_show_marked_at (nullable)
	TotalPrice           decimal.Decimal   // reservations.total_price_at_booking
	DepositRatePercent   decimal.Decimal   // reservations.applied_deposit_rate_percent
	GradeID              *uint64           // reservations.applied_grade_id (nullable)
	GradeDiscountPercent decimal.Decimal   // reservations.applied_grade_discount_percent
	DepositAmount        decimal.Decimal   // reservations.deposit_amount
	Currency             string            // reservations.currency
	CreatedAt            time.Time         // reservations.created_at
	UpdatedAt            time.Time         // reservations.updated_at
	VenueOwnerID         uint64            // venues.owner_user_id
	VenueTimezone        string            // venues.timezone
}

// Location resolves the venue timezone joined onto the reservation.
func (r Reservation) Location() *time.Location {
	return Venue{Timezone: r.VenueTimezone}.Location()
}

// Overlaps reports whether the reservation's slot intersects [start, end).
func (r Reservation) Overlaps(start, end time.Time) bool {
	return start.Before(r.ScheduledEnd) && end.After(r.ScheduledStart)
}

// Cancellation describes who canceled a reservation, when and why.  By is
// nil when the system expired the reservation.
type Cancellation struct {
	At     time.Time
	By     *uint64
	Reason string
}
