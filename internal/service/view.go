package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// localLayout formats venue-local wall-clock times, which carry no zone.
const localLayout = "2006-01-02T15:04:05"

// ReservationView is the read model returned by lifecycle operations.
type ReservationView struct {
	ID                   uint64          `json:"id"`
	CustomerID           uint64          `json:"customer_id"`
	VenueID              uint64          `json:"venue_id"`
	ServiceID            uint64          `json:"service_id"`
	PartySize            int             `json:"party_size"`
	ScheduledStart       string          `json:"scheduled_start"`
	ScheduledEnd         string          `json:"scheduled_end"`
	Status               string          `json:"status"`
	BookedAt             time.Time       `json:"booked_at"`
	CanceledAt           *time.Time      `json:"canceled_at,omitempty"`
	CanceledBy           *uint64         `json:"canceled_by,omitempty"`
	CancelReason         *string         `json:"cancel_reason,omitempty"`
	NoShowMarkedAt       *time.Time      `json:"no_show_marked_at,omitempty"`
	TotalPrice           decimal.Decimal `json:"total_price"`
	DepositRatePercent   decimal.Decimal `json:"deposit_rate_percent"`
	GradeID              *uint64         `json:"grade_id,omitempty"`
	GradeDiscountPercent decimal.Decimal `json:"grade_discount_percent"`
	DepositAmount        decimal.Decimal `json:"deposit_amount"`
	Currency             string          `json:"currency"`
	CreatedAt            time.Time       `json:"created_at"`
	Payments             []PaymentView   `json:"payments"`
}

// PaymentView is one ledger row as shown to clients.
type PaymentView struct {
	ID               uint64          `json:"id"`
	ReservationID    uint64          `json:"reservation_id"`
	Type             string          `json:"payment_type"`
	Method           string          `json:"method"`
	Provider         *string         `json:"provider,omitempty"`
	ProviderTxnID    *string         `json:"provider_txn_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	RelatedPaymentID *uint64         `json:"related_payment_id,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
}

func newPaymentView(p model.Payment) PaymentView {
	return PaymentView{
		ID:               p.ID,
		ReservationID:    p.ReservationID,
		Type:             string(p.Type),
		Method:           p.Method,
		Provider:         p.Provider,
		ProviderTxnID:    p.ProviderTxnID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           string(p.Status),
		RelatedPaymentID: p.RelatedPaymentID,
		PaidAt:           p.PaidAt,
	}
}

func newReservationView(r model.Reservation, payments []model.Payment) ReservationView {
	v := ReservationView{
		ID:                   r.ID,
		CustomerID:           r.CustomerID,
		VenueID:              r.VenueID,
		ServiceID:            r.ServiceID,
		PartySize:            r.PartySize,
		ScheduledStart:       r.ScheduledStart.Format(localLayout),
		ScheduledEnd:         r.ScheduledEnd.Format(localLayout),
		Status:               string(r.Status),
		BookedAt:             r.BookedAt,
		CanceledAt:           r.CanceledAt,
		CanceledBy:           r.CanceledBy,
		CancelReason:         r.CancelReason,
		NoShowMarkedAt:       r.NoShowMarkedAt,
		TotalPrice:           r.TotalPrice,
		DepositRatePercent:   r.DepositRatePercent,
		GradeID:              r.GradeID,
		GradeDiscountPercent: r.GradeDiscountPercent,
		DepositAmount:        r.DepositAmount,
		Currency:             r.Currency,
		CreatedAt:            r.CreatedAt,
		Payments:             make([]PaymentView, 0, len(payments)),
	}
	for _, p := range payments {
		v.Payments = append(v.Payments, newPaymentView(p))
	}
	return v
}
