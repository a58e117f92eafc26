package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/service"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var reservationColumns = []string{
	"id", "customer_user_id", "venue_id", "service_id", "party_size",
	"scheduled_start", "scheduled_end", "status", "booked_at",
	"canceled_at", "canceled_by_user_id", "cancel_reason", "no_show_marked_at",
	"total_price_at_booking", "applied_deposit_rate_percent", "applied_grade_id",
	"applied_grade_discount_percent", "deposit_amount", "currency",
	"created_at", "updated_at", "owner_user_id", "timezone",
}

var (
	slotStart = time.Date(2030, 6, 5, 12, 0, 0, 0, time.UTC)
	createdAt = time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)
)

func addReservation(rows *sqlmock.Rows, id int64, status string) *sqlmock.Rows {
	return rows.AddRow(
		id, int64(5), int64(1), int64(7), int64(2),
		slotStart, slotStart.Add(time.Hour), status, createdAt,
		nil, nil, nil, nil,
		"20000.00", "20.00", int64(3),
		"10.00", "3600.00", "KRW",
		createdAt, createdAt, int64(9), "Asia/Seoul",
	)
}

func TestCatalogSnapshot(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCatalogRepo(db)

	mock.ExpectQuery(q("FROM venue_services s")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "venue_id", "name", "price", "duration_minutes", "min_party_size", "max_party_size", "deposit_rate_percent", "is_active",
			"id", "owner_user_id", "name", "default_deposit_rate_percent", "currency", "timezone", "is_active",
		}).AddRow(int64(7), int64(1), "Dinner", "10000.00", int64(60), int64(2), nil, nil, true,
			int64(1), int64(9), "Bistro", "20.00", "KRW", "Asia/Seoul", true))
	mock.ExpectQuery(q("FROM business_hours")).WithArgs(1, 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "venue_id", "day_of_week", "open_time", "close_time"}).
			AddRow(int64(1), int64(1), int64(3), "09:00:00", "14:00:00").
			AddRow(int64(2), int64(1), int64(3), "17:00:00", "22:00:00"))
	mock.ExpectQuery(q("FROM availability_blocks")).WithArgs(1, "2030-06-05").
		WillReturnRows(sqlmock.NewRows([]string{"id", "venue_id", "block_date", "start_time", "end_time", "reason"}).
			AddRow(int64(4), int64(1), time.Date(2030, 6, 5, 0, 0, 0, 0, time.UTC), "12:30:00", "13:00:00", "private event"))

	snap, err := repo.Snapshot(context.Background(), 7, time.Date(2030, 6, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "Dinner", snap.Service.Name)
	assert.True(t, snap.Service.Price.Equal(decimal.NewFromInt(10000)))
	lo, hi := snap.Service.PartyBounds()
	assert.Equal(t, 2, lo)
	assert.Equal(t, 2, hi)
	assert.Nil(t, snap.Service.DepositRatePercent)
	assert.Equal(t, uint64(9), snap.Venue.OwnerID)
	assert.Equal(t, "Asia/Seoul", snap.Venue.Timezone)
	require.Len(t, snap.Hours, 2)
	assert.Equal(t, model.TimeOfDay(17*60), snap.Hours[1].Open)
	require.Len(t, snap.Blocks, 1)
	assert.Equal(t, model.TimeOfDay(12*60+30), snap.Blocks[0].Start)
	require.NotNil(t, snap.Blocks[0].Reason)
	assert.Equal(t, "private event", *snap.Blocks[0].Reason)
}

func TestCatalogSnapshotMissingService(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM venue_services s")).WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewCatalogRepo(db).Snapshot(context.Background(), 99, slotStart)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGradeDefaultIsCached(t *testing.T) {
	db, mock := newMock(t)
	repo := NewGradeRepo(db, time.Minute)

	mock.ExpectQuery(q("WHERE g.is_default = 1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "grade_name", "grade_code", "deposit_discount_percent", "priority", "is_default"}).
			AddRow(int64(1), "BASIC", nil, "5.00", int64(0), true))

	for i := 0; i < 3; i++ {
		g, err := repo.Default(context.Background())
		require.NoError(t, err)
		require.NotNil(t, g)
		assert.Equal(t, uint64(1), g.ID)
		assert.Nil(t, g.Code)
	}
	require.NoError(t, mock.ExpectationsWereMet())

	repo.Invalidate()
	mock.ExpectQuery(q("WHERE g.is_default = 1")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	g, err := repo.Default(context.Background())
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestGradeForUserWithoutGrade(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("JOIN user_grades g ON g.id = u.grade_id")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	g, err := NewGradeRepo(db, 0).ForUser(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestStoreInTxCommits(t *testing.T) {
	db, mock := newMock(t)
	store := NewStore(db, 0)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE reservations SET status = 'BOOKED'")).
		WithArgs(sqlmock.AnyArg(), 11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx service.Tx) error {
		ok, err := tx.MarkBooked(context.Background(), 11, createdAt)
		require.True(t, ok)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreInTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	store := NewStore(db, 0)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE reservations SET status = 'BOOKED'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	lost := errors.New("lost the race")
	err := store.InTx(context.Background(), func(tx service.Tx) error {
		ok, err := tx.MarkBooked(context.Background(), 11, createdAt)
		require.NoError(t, err)
		if !ok {
			return lost
		}
		return nil
	})
	assert.ErrorIs(t, err, lost)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelTxGuardsOnStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	by := uint64(5)
	c := model.Cancellation{At: createdAt, By: &by, Reason: "plans changed"}

	mock.ExpectBegin()
	mock.ExpectExec(q("WHERE id = ? AND status IN (?,?)")).
		WithArgs(createdAt, 5, "plans changed", createdAt, 11, "DEPOSIT_PENDING", "BOOKED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.CancelTx(context.Background(), tx, 11, model.ActiveStatuses, c)
	assert.ErrorIs(t, err, ErrNoChange)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatusTxRecordsNoShow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	at := createdAt.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(q("no_show_marked_at = COALESCE(?, no_show_marked_at)")).
		WithArgs("NO_SHOW", at, at, 11, "BOOKED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.SetStatusTx(context.Background(), tx, 11, model.StatusBooked, model.StatusNoShow, &at, at))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireStaleSkipsLockedRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	now := createdAt.Add(15 * time.Minute)
	cutoff := now.Add(-10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE OF r SKIP LOCKED")).WithArgs(cutoff, 100).
		WillReturnRows(addReservation(addReservation(sqlmock.NewRows(reservationColumns), 11, "DEPOSIT_PENDING"), 12, "DEPOSIT_PENDING"))
	mock.ExpectExec(q("WHERE status = 'DEPOSIT_PENDING' AND id IN (?,?)")).
		WithArgs(now, "deposit window expired", now, 11, 12).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	expired, err := repo.ExpireStale(context.Background(), cutoff, model.Cancellation{At: now, Reason: "deposit window expired"}, 100)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, expired, 2)
	for _, r := range expired {
		assert.Equal(t, model.StatusCanceled, r.Status)
		assert.Nil(t, r.CanceledBy)
		require.NotNil(t, r.CanceledAt)
		assert.Equal(t, now, *r.CanceledAt)
	}
}

func TestExpireStaleWithNothingToDo(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE OF r SKIP LOCKED")).
		WillReturnRows(sqlmock.NewRows(reservationColumns))
	mock.ExpectRollback()

	expired, err := NewReservationRepo(db).ExpireStale(context.Background(), createdAt, model.Cancellation{At: createdAt}, 100)
	require.NoError(t, err)
	assert.Empty(t, expired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByCustomerPagesAndFilters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM reservations r WHERE r.customer_user_id = ? AND r.status = ?")).
		WithArgs(5, "BOOKED").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(12)))
	mock.ExpectQuery(q("ORDER BY r.booked_at DESC, r.id DESC")).
		WithArgs(5, "BOOKED", 10, 10).
		WillReturnRows(addReservation(addReservation(sqlmock.NewRows(reservationColumns), 2, "BOOKED"), 1, "BOOKED"))

	items, total, err := repo.ListByCustomer(context.Background(), 5, model.StatusBooked, model.PageRequest{Page: 2, Limit: 10})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, int64(12), total)
	require.Len(t, items, 2)
	assert.Equal(t, uint64(2), items[0].ID)
	assert.Equal(t, uint64(9), items[0].VenueOwnerID)
	assert.Equal(t, "Asia/Seoul", items[0].VenueTimezone)
	assert.True(t, items[0].DepositAmount.Equal(decimal.NewFromInt(3600)))
	require.NotNil(t, items[0].GradeID)
	assert.Equal(t, uint64(3), *items[0].GradeID)
}

func TestListByVenueEmptySkipsSelect(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("SELECT COUNT(*) FROM reservations r WHERE r.venue_id = ?")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(0)))

	items, total, err := NewReservationRepo(db).ListByVenue(context.Background(), 1, model.PageRequest{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

var paymentColumns = []string{
	"id", "reservation_id", "payer_user_id", "payment_type", "method", "provider", "provider_txn_id",
	"amount", "currency", "status", "related_payment_id", "paid_at", "created_at", "updated_at",
}

func TestPaymentAppendRejectsSecondRefund(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepo(db)
	deposit := uint64(40)

	mock.ExpectBegin()
	mock.ExpectQuery(q("WHERE payment_type = 'REFUND' AND related_payment_id = ?")).WithArgs(40).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.AppendTx(context.Background(), tx, &model.Payment{
		ReservationID:    11,
		Type:             model.PaymentRefund,
		RelatedPaymentID: &deposit,
	})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentAppendDeposit(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepo(db)
	provider, txn := "internal", "b7c1"

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO payments")).
		WithArgs(11, 5, "DEPOSIT", "CARD", "internal", "b7c1", "3600", "KRW", "CAPTURED", nil, createdAt, createdAt, createdAt).
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	p := &model.Payment{
		ReservationID: 11, PayerID: 5, Type: model.PaymentDeposit, Method: "CARD",
		Provider: &provider, ProviderTxnID: &txn,
		Amount: decimal.NewFromInt(3600), Currency: "KRW", Status: model.PaymentCaptured,
		PaidAt: &createdAt, CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	require.NoError(t, repo.AppendTx(context.Background(), tx, p))
	require.NoError(t, tx.Commit())
	assert.Equal(t, uint64(41), p.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByReservationsGroupsRows(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("WHERE reservation_id IN (?,?)")).WithArgs(11, 12).
		WillReturnRows(sqlmock.NewRows(paymentColumns).
			AddRow(int64(40), int64(11), int64(5), "DEPOSIT", "CARD", "internal", "t1", "3600.00", "KRW", "CAPTURED", nil, createdAt, createdAt, createdAt).
			AddRow(int64(41), int64(11), int64(5), "REFUND", "CARD", nil, nil, "3600.00", "KRW", "CAPTURED", int64(40), createdAt, createdAt, createdAt))

	got, err := NewPaymentRepo(db).ListByReservations(context.Background(), []uint64{11, 12})
	require.NoError(t, err)
	require.Len(t, got[11], 2)
	assert.Empty(t, got[12])
	assert.Equal(t, model.PaymentRefund, got[11][1].Type)
	require.NotNil(t, got[11][1].RelatedPaymentID)
	assert.Equal(t, uint64(40), *got[11][1].RelatedPaymentID)
	assert.Nil(t, got[11][1].Provider)
}
