package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// PaymentRepo is the append-only payment ledger.  It exposes inserts and
// reads only; a reversal is recorded as a new REFUND row that points at
// the payment it reverses.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to db.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentCols = `id, reservation_id, payer_user_id, payment_type, method, provider, provider_txn_id,
       amount, currency, status, related_payment_id, paid_at, created_at, updated_at`

func scanPayment(row rowScanner) (*model.Payment, error) {
	var p model.Payment
	var provider, txnID sql.NullString
	var related sql.NullInt64
	var paidAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.ReservationID, &p.PayerID, &p.Type, &p.Method, &provider, &txnID,
		&p.Amount, &p.Currency, &p.Status, &related, &paidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Provider = stringPtr(provider)
	p.ProviderTxnID = stringPtr(txnID)
	p.RelatedPaymentID = uint64Ptr(related)
	p.PaidAt = timePtr(paidAt)
	return &p, nil
}

// AppendTx inserts p within tx and populates its ID.  A refund pointing at
// a deposit that another refund already references returns ErrConflict.
func (r *PaymentRepo) AppendTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	if p.Type == model.PaymentRefund && p.RelatedPaymentID != nil {
		var n int
		const chk = `SELECT COUNT(*) FROM payments WHERE payment_type = 'REFUND' AND related_payment_id = ?`
		if err := tx.QueryRowContext(ctx, chk, *p.RelatedPaymentID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
	}
	const q = `INSERT INTO payments (
                   reservation_id, payer_user_id, payment_type, method, provider, provider_txn_id,
                   amount, currency, status, related_payment_id, paid_at, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		p.ReservationID, p.PayerID, string(p.Type), p.Method, p.Provider, p.ProviderTxnID,
		p.Amount, p.Currency, string(p.Status), p.RelatedPaymentID, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// ListByReservationTx returns the ledger of one reservation in insertion
// order.
func (r *PaymentRepo) ListByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]model.Payment, error) {
	const q = `SELECT ` + paymentCols + ` FROM payments WHERE reservation_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListByReservations loads the ledgers of several reservations with one
// query, keyed by reservation id.
func (r *PaymentRepo) ListByReservations(ctx context.Context, reservationIDs []uint64) (map[uint64][]model.Payment, error) {
	out := make(map[uint64][]model.Payment, len(reservationIDs))
	if len(reservationIDs) == 0 {
		return out, nil
	}
	q := `SELECT ` + paymentCols + ` FROM payments WHERE reservation_id IN (` + placeholders(len(reservationIDs)) + `) ORDER BY reservation_id, id`
	rows, err := r.db.QueryContext(ctx, q, uint64Args(reservationIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out[p.ReservationID] = append(out[p.ReservationID], *p)
	}
	return out, rows.Err()
}
