package service

import (
	"context"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/queue"
)

// Store is the persistence the lifecycle needs outside a transaction.
// Lookups of a missing row return sql.ErrNoRows.
type Store interface {
	// Snapshot reads the service, its venue and the venue's hours and
	// blocks for the calendar date of day.
	Snapshot(ctx context.Context, serviceID uint64, day time.Time) (*model.CatalogSnapshot, error)
	Venue(ctx context.Context, venueID uint64) (*model.Venue, error)
	// CustomerGrade returns nil without error when the user has no grade.
	CustomerGrade(ctx context.Context, userID uint64) (*model.UserGrade, error)
	// DefaultGrade returns nil without error when no default exists.
	DefaultGrade(ctx context.Context) (*model.UserGrade, error)

	ListByCustomer(ctx context.Context, customerID uint64, status model.ReservationStatus, page model.PageRequest) ([]model.Reservation, int64, error)
	ListByVenue(ctx context.Context, venueID uint64, page model.PageRequest) ([]model.Reservation, int64, error)
	PaymentsFor(ctx context.Context, reservationIDs []uint64) (map[uint64][]model.Payment, error)

	// ExpireStale cancels up to limit DEPOSIT_PENDING reservations created
	// before cutoff and returns them in their canceled form.
	ExpireStale(ctx context.Context, cutoff time.Time, c model.Cancellation, limit int) ([]model.Reservation, error)

	// InTx runs fn in one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the transactional half of the store.  Conditional updates report
// whether a row changed instead of failing, so callers can detect that a
// concurrent transition got there first.
type Tx interface {
	// LockService takes a row lock on the service, serializing bookings
	// of the same service.
	LockService(ctx context.Context, serviceID uint64) error
	// ActiveReservations lists DEPOSIT_PENDING and BOOKED reservations of
	// the service starting in [from, to).
	ActiveReservations(ctx context.Context, serviceID uint64, from, to time.Time) ([]model.Reservation, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	// GetReservation reads and locks a reservation, including the owner
	// of its venue.
	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	MarkBooked(ctx context.Context, id uint64, now time.Time) (bool, error)
	Cancel(ctx context.Context, id uint64, from []model.ReservationStatus, c model.Cancellation) (bool, error)
	// SetStatus moves the reservation from one status to another.  A
	// non-nil noShowAt is recorded as the no-show mark.
	SetStatus(ctx context.Context, id uint64, from, to model.ReservationStatus, noShowAt *time.Time, now time.Time) (bool, error)

	Payments(ctx context.Context, reservationID uint64) ([]model.Payment, error)
	AppendPayment(ctx context.Context, p *model.Payment) error
}

// Publisher delivers lifecycle events.  Implementations must not block
// the caller for long; failures are logged by the service and ignored.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}
