package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// CatalogRepo reads the venue catalog: services, venues, business hours
// and availability blocks.  The catalog is maintained elsewhere; this
// repository never writes to it.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo returns a CatalogRepo bound to db.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

const venueCols = `v.id, v.owner_user_id, v.name, v.default_deposit_rate_percent, v.currency, v.timezone, v.is_active`

func scanVenue(row rowScanner, v *model.Venue) error {
	return row.Scan(&v.ID, &v.OwnerID, &v.Name, &v.DefaultDepositRatePercent, &v.Currency, &v.Timezone, &v.IsActive)
}

// Snapshot returns the service, its venue, the venue's business hours for
// the weekday of day and its availability blocks dated day.  day is a
// venue-local calendar date; only its year, month and day are used.
// sql.ErrNoRows is returned when the service does not exist.
func (r *CatalogRepo) Snapshot(ctx context.Context, serviceID uint64, day time.Time) (*model.CatalogSnapshot, error) {
	const q = `SELECT s.id, s.venue_id, s.name, s.price, s.duration_minutes,
                      s.min_party_size, s.max_party_size, s.deposit_rate_percent, s.is_active,
                      ` + venueCols + `
               FROM venue_services s
               JOIN venues v ON v.id = s.venue_id
               WHERE s.id = ?`
	var snap model.CatalogSnapshot
	var minParty, maxParty sql.NullInt64
	var rate decimal.NullDecimal
	s := &snap.Service
	v := &snap.Venue
	err := r.db.QueryRowContext(ctx, q, serviceID).Scan(
		&s.ID, &s.VenueID, &s.Name, &s.Price, &s.DurationMinutes,
		&minParty, &maxParty, &rate, &s.IsActive,
		&v.ID, &v.OwnerID, &v.Name, &v.DefaultDepositRatePercent, &v.Currency, &v.Timezone, &v.IsActive,
	)
	if err != nil {
		return nil, err
	}
	s.MinPartySize = intPtr(minParty)
	s.MaxPartySize = intPtr(maxParty)
	if rate.Valid {
		d := rate.Decimal
		s.DepositRatePercent = &d
	}

	if snap.Hours, err = r.hoursFor(ctx, v.ID, int(day.Weekday())); err != nil {
		return nil, err
	}
	if snap.Blocks, err = r.blocksOn(ctx, v.ID, day); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *CatalogRepo) hoursFor(ctx context.Context, venueID uint64, dow int) ([]model.BusinessHour, error) {
	const q = `SELECT id, venue_id, day_of_week, open_time, close_time
               FROM business_hours
               WHERE venue_id = ? AND day_of_week = ?
               ORDER BY open_time`
	rows, err := r.db.QueryContext(ctx, q, venueID, dow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BusinessHour
	for rows.Next() {
		var h model.BusinessHour
		var open, closing string
		if err := rows.Scan(&h.ID, &h.VenueID, &h.DayOfWeek, &open, &closing); err != nil {
			return nil, err
		}
		if h.Open, err = model.ParseTimeOfDay(open); err != nil {
			return nil, fmt.Errorf("business_hours %d: %w", h.ID, err)
		}
		if h.Close, err = model.ParseTimeOfDay(closing); err != nil {
			return nil, fmt.Errorf("business_hours %d: %w", h.ID, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) blocksOn(ctx context.Context, venueID uint64, day time.Time) ([]model.AvailabilityBlock, error) {
	const q = `SELECT id, venue_id, block_date, start_time, end_time, reason
               FROM availability_blocks
               WHERE venue_id = ? AND block_date = ?
               ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, venueID, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AvailabilityBlock
	for rows.Next() {
		var b model.AvailabilityBlock
		var start, end string
		var reason sql.NullString
		if err := rows.Scan(&b.ID, &b.VenueID, &b.Date, &start, &end, &reason); err != nil {
			return nil, err
		}
		if b.Start, err = model.ParseTimeOfDay(start); err != nil {
			return nil, fmt.Errorf("availability_blocks %d: %w", b.ID, err)
		}
		if b.End, err = model.ParseTimeOfDay(end); err != nil {
			return nil, fmt.Errorf("availability_blocks %d: %w", b.ID, err)
		}
		b.Reason = stringPtr(reason)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Venue fetches a venue by id.  sql.ErrNoRows is returned when it does
// not exist.
func (r *CatalogRepo) Venue(ctx context.Context, venueID uint64) (*model.Venue, error) {
	const q = `SELECT ` + venueCols + ` FROM venues v WHERE v.id = ?`
	var v model.Venue
	if err := scanVenue(r.db.QueryRowContext(ctx, q, venueID), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// LockServiceTx takes a row lock on the service so that concurrent
// bookings of the same service run one after another.
func (r *CatalogRepo) LockServiceTx(ctx context.Context, tx *sql.Tx, serviceID uint64) error {
	var id uint64
	return tx.QueryRowContext(ctx, `SELECT id FROM venue_services WHERE id = ? FOR UPDATE`, serviceID).Scan(&id)
}
