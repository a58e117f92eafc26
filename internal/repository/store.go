package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/service"
)

// Store composes the repositories into the persistence the reservation
// service depends on.
type Store struct {
	db           *sql.DB
	Catalog      *CatalogRepo
	Grades       *GradeRepo
	Reservations *ReservationRepo
	Payments     *PaymentRepo
}

// NewStore builds a Store over db.  gradeTTL controls how long the
// default grade is cached.
func NewStore(db *sql.DB, gradeTTL time.Duration) *Store {
	return &Store{
		db:           db,
		Catalog:      NewCatalogRepo(db),
		Grades:       NewGradeRepo(db, gradeTTL),
		Reservations: NewReservationRepo(db),
		Payments:     NewPaymentRepo(db),
	}
}

var _ service.Store = (*Store)(nil)

// DB exposes the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Snapshot(ctx context.Context, serviceID uint64, day time.Time) (*model.CatalogSnapshot, error) {
	return s.Catalog.Snapshot(ctx, serviceID, day)
}

func (s *Store) Venue(ctx context.Context, venueID uint64) (*model.Venue, error) {
	return s.Catalog.Venue(ctx, venueID)
}

func (s *Store) CustomerGrade(ctx context.Context, userID uint64) (*model.UserGrade, error) {
	return s.Grades.ForUser(ctx, userID)
}

func (s *Store) DefaultGrade(ctx context.Context) (*model.UserGrade, error) {
	return s.Grades.Default(ctx)
}

func (s *Store) ListByCustomer(ctx context.Context, customerID uint64, status model.ReservationStatus, page model.PageRequest) ([]model.Reservation, int64, error) {
	return s.Reservations.ListByCustomer(ctx, customerID, status, page)
}

func (s *Store) ListByVenue(ctx context.Context, venueID uint64, page model.PageRequest) ([]model.Reservation, int64, error) {
	return s.Reservations.ListByVenue(ctx, venueID, page)
}

func (s *Store) PaymentsFor(ctx context.Context, reservationIDs []uint64) (map[uint64][]model.Payment, error) {
	return s.Payments.ListByReservations(ctx, reservationIDs)
}

func (s *Store) ExpireStale(ctx context.Context, cutoff time.Time, c model.Cancellation, limit int) ([]model.Reservation, error) {
	return s.Reservations.ExpireStale(ctx, cutoff, c, limit)
}

// InTx begins a transaction, hands it to fn and commits when fn returns
// nil.  Any error from fn or the commit rolls the transaction back.
func (s *Store) InTx(ctx context.Context, fn func(service.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&storeTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// storeTx binds the repositories' Tx methods to one *sql.Tx.
type storeTx struct {
	s  *Store
	tx *sql.Tx
}

func changed(err error) (bool, error) {
	if errors.Is(err, ErrNoChange) {
		return false, nil
	}
	return err == nil, err
}

func (t *storeTx) LockService(ctx context.Context, serviceID uint64) error {
	return t.s.Catalog.LockServiceTx(ctx, t.tx, serviceID)
}

func (t *storeTx) ActiveReservations(ctx context.Context, serviceID uint64, from, to time.Time) ([]model.Reservation, error) {
	return t.s.Reservations.ActiveForServiceTx(ctx, t.tx, serviceID, from, to)
}

func (t *storeTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.Reservations.CreateTx(ctx, t.tx, r)
}

func (t *storeTx) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.s.Reservations.GetForUpdateTx(ctx, t.tx, id)
}

func (t *storeTx) MarkBooked(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return changed(t.s.Reservations.MarkBookedTx(ctx, t.tx, id, now))
}

func (t *storeTx) Cancel(ctx context.Context, id uint64, from []model.ReservationStatus, c model.Cancellation) (bool, error) {
	return changed(t.s.Reservations.CancelTx(ctx, t.tx, id, from, c))
}

func (t *storeTx) SetStatus(ctx context.Context, id uint64, from, to model.ReservationStatus, noShowAt *time.Time, now time.Time) (bool, error) {
	return changed(t.s.Reservations.SetStatusTx(ctx, t.tx, id, from, to, noShowAt, now))
}

func (t *storeTx) Payments(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	return t.s.Payments.ListByReservationTx(ctx, t.tx, reservationID)
}

func (t *storeTx) AppendPayment(ctx context.Context, p *model.Payment) error {
	return t.s.Payments.AppendTx(ctx, t.tx, p)
}
