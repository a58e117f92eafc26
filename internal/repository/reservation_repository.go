package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// ReservationRepo provides reads and conditional writes for reservations.
// Every status change is an UPDATE guarded by the status the caller
// expects, so a transition that lost a race changes no row and returns
// ErrNoChange.  Audit timestamps are UTC; scheduled times are venue-local
// wall clocks stored without a zone.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationCols = `r.id, r.customer_user_id, r.venue_id, r.service_id, r.party_size,
       r.scheduled_start, r.scheduled_end, r.status, r.booked_at,
       r.canceled_at, r.canceled_by_user_id, r.cancel_reason, r.no_show_marked_at,
       r.total_price_at_booking, r.applied_deposit_rate_percent, r.applied_grade_id,
       r.applied_grade_discount_percent, r.deposit_amount, r.currency,
       r.created_at, r.updated_at, v.owner_user_id, v.timezone`

const reservationFrom = ` FROM reservations r JOIN venues v ON v.id = r.venue_id `

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	var canceledAt, noShowAt sql.NullTime
	var canceledBy, gradeID sql.NullInt64
	var reason sql.NullString
	err := row.Scan(
		&res.ID, &res.CustomerID, &res.VenueID, &res.ServiceID, &res.PartySize,
		&res.ScheduledStart, &res.ScheduledEnd, &res.Status, &res.BookedAt,
		&canceledAt, &canceledBy, &reason, &noShowAt,
		&res.TotalPrice, &res.DepositRatePercent, &gradeID,
		&res.GradeDiscountPercent, &res.DepositAmount, &res.Currency,
		&res.CreatedAt, &res.UpdatedAt, &res.VenueOwnerID, &res.VenueTimezone,
	)
	if err != nil {
		return nil, err
	}
	res.CanceledAt = timePtr(canceledAt)
	res.CanceledBy = uint64Ptr(canceledBy)
	res.CancelReason = stringPtr(reason)
	res.NoShowMarkedAt = timePtr(noShowAt)
	res.GradeID = uint64Ptr(gradeID)
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID.  The caller must commit or
// rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (
                   customer_user_id, venue_id, service_id, party_size,
                   scheduled_start, scheduled_end, status, booked_at,
                   total_price_at_booking, applied_deposit_rate_percent, applied_grade_id,
                   applied_grade_discount_percent, deposit_amount, currency,
                   created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.CustomerID, res.VenueID, res.ServiceID, res.PartySize,
		res.ScheduledStart, res.ScheduledEnd, string(res.Status), res.BookedAt,
		res.TotalPrice, res.DepositRatePercent, res.GradeID,
		res.GradeDiscountPercent, res.DepositAmount, res.Currency,
		res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetForUpdateTx reads a reservation and locks its row until the
// transaction ends.  sql.ErrNoRows is returned when it does not exist.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationCols + reservationFrom + `WHERE r.id = ? FOR UPDATE`
	return scanReservation(tx.QueryRowContext(ctx, q, id))
}

// ActiveForServiceTx lists the DEPOSIT_PENDING and BOOKED reservations of
// a service starting in [from, to).  Together with the service row lock
// this gives the slot validator a consistent view of the day.
func (r *ReservationRepo) ActiveForServiceTx(ctx context.Context, tx *sql.Tx, serviceID uint64, from, to time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationCols + reservationFrom + `
               WHERE r.service_id = ?
                 AND r.status IN ('DEPOSIT_PENDING', 'BOOKED')
                 AND r.scheduled_start >= ? AND r.scheduled_start < ?
               ORDER BY r.scheduled_start`
	rows, err := tx.QueryContext(ctx, q, serviceID, from, to)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

func expectAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoChange
	}
	return nil
}

// MarkBookedTx moves a DEPOSIT_PENDING reservation to BOOKED.
func (r *ReservationRepo) MarkBookedTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	const q = `UPDATE reservations SET status = 'BOOKED', updated_at = ?
               WHERE id = ? AND status = 'DEPOSIT_PENDING'`
	return expectAffected(tx.ExecContext(ctx, q, now, id))
}

// CancelTx cancels a reservation currently in one of the from statuses
// and records who canceled it, when and why.
func (r *ReservationRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, from []model.ReservationStatus, c model.Cancellation) error {
	if len(from) == 0 {
		return ErrNoChange
	}
	q := `UPDATE reservations
          SET status = 'CANCELED', canceled_at = ?, canceled_by_user_id = ?, cancel_reason = ?, updated_at = ?
          WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`
	args := []any{c.At, c.By, nullIfEmpty(c.Reason), c.At, id}
	for _, s := range from {
		args = append(args, string(s))
	}
	return expectAffected(tx.ExecContext(ctx, q, args...))
}

// SetStatusTx moves a reservation from one status to another.  A
// non-nil noShowAt is stored as the no-show mark.
func (r *ReservationRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.ReservationStatus, noShowAt *time.Time, now time.Time) error {
	const q = `UPDATE reservations
               SET status = ?, no_show_marked_at = COALESCE(?, no_show_marked_at), updated_at = ?
               WHERE id = ? AND status = ?`
	return expectAffected(tx.ExecContext(ctx, q, string(to), noShowAt, now, id, string(from)))
}

// ListByCustomer returns one page of the customer's reservations, newest
// first, and the total number of matching rows.  An empty status means
// no filter.
func (r *ReservationRepo) ListByCustomer(ctx context.Context, customerID uint64, status model.ReservationStatus, page model.PageRequest) ([]model.Reservation, int64, error) {
	where := `WHERE r.customer_user_id = ?`
	args := []any{customerID}
	if status != "" {
		where += ` AND r.status = ?`
		args = append(args, string(status))
	}
	return r.list(ctx, where, args, page)
}

// ListByVenue returns one page of the venue's reservations, newest first,
// and the total number of rows.
func (r *ReservationRepo) ListByVenue(ctx context.Context, venueID uint64, page model.PageRequest) ([]model.Reservation, int64, error) {
	return r.list(ctx, `WHERE r.venue_id = ?`, []any{venueID}, page)
}

func (r *ReservationRepo) list(ctx context.Context, where string, args []any, page model.PageRequest) ([]model.Reservation, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations r `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}
	q := `SELECT ` + reservationCols + reservationFrom + where + `
          ORDER BY r.booked_at DESC, r.id DESC
          LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	items, err := scanReservations(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ExpireStale cancels up to limit DEPOSIT_PENDING reservations created
// before cutoff and returns them as canceled.  Rows locked by another
// transaction (a payment in flight) are skipped and picked up by a later
// run, so concurrent sweepers never block each other or a payer.
func (r *ReservationRepo) ExpireStale(ctx context.Context, cutoff time.Time, c model.Cancellation, limit int) ([]model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT ` + reservationCols + reservationFrom + `
                 WHERE r.status = 'DEPOSIT_PENDING' AND r.created_at < ?
                 ORDER BY r.id
                 LIMIT ?
                 FOR UPDATE OF r SKIP LOCKED`
	rows, err := tx.QueryContext(ctx, sel, cutoff, limit)
	if err != nil {
		return nil, err
	}
	stale, err := scanReservations(rows)
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(stale))
	for i := range stale {
		ids[i] = stale[i].ID
	}
	upd := `UPDATE reservations
            SET status = 'CANCELED', canceled_at = ?, canceled_by_user_id = NULL, cancel_reason = ?, updated_at = ?
            WHERE status = 'DEPOSIT_PENDING' AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]any{c.At, c.Reason, c.At}, uint64Args(ids)...)
	if _, err := tx.ExecContext(ctx, upd, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	at := c.At
	reason := c.Reason
	for i := range stale {
		stale[i].Status = model.StatusCanceled
		stale[i].CanceledAt = &at
		stale[i].CanceledBy = nil
		stale[i].CancelReason = &reason
		stale[i].UpdatedAt = at
	}
	return stale, nil
}
