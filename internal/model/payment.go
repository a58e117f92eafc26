package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType classifies a ledger row.
type PaymentType string

const (
	PaymentDeposit PaymentType = "DEPOSIT"
	PaymentBalance PaymentType = "BALANCE"
	PaymentRefund  PaymentType = "REFUND"
)

// PaymentStatus is the settlement state of a ledger row.
type PaymentStatus string

const (
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentCaptured   PaymentStatus = "CAPTURED"
	PaymentCanceled   PaymentStatus = "CANCELED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
	PaymentFailed     PaymentStatus = "FAILED"
)

// Payment is an append-only ledger row.  Rows are inserted and never
// updated or deleted; a refund is a new REFUND row pointing at the
// deposit it reverses.
//
// Fields:
//  ID               – primary key identifier.
//  ReservationID    – reservation the money belongs to.
//  PayerID          – user who paid (or triggered the refund).
//  Type             – DEPOSIT, BALANCE or REFUND.
//  Method           – payment method label supplied by the client.
//  Provider         – payment provider name (nullable).
//  ProviderTxnID    – provider transaction id (nullable).
//  Amount           – amount in whole currency units.
//  Currency         – ISO 4217 code.
//  Status           – settlement status.
//  RelatedPaymentID – for refunds, the deposit being reversed.
//  PaidAt           – capture time (nullable).
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Payment struct {
	ID               uint64          // payments.id
	ReservationID    uint64          // payments.reservation_id
	PayerID          uint64          // payments.payer_user_id
	Type             PaymentType     // payments.payment_type
	Method           string          // payments.method
	Provider         *string         // payments.provider (nullable)
	ProviderTxnID    *string         // payments.provider_txn_id (nullable)
	Amount           decimal.Decimal // payments.amount
	Currency         string          // payments.currency
	Status           PaymentStatus   // payments.status
	RelatedPaymentID *uint64         // payments.related_payment_id (nullable)
	PaidAt           *time.Time      // payments.paid_at (nullable)
	CreatedAt        time.Time       // payments.created_at
	UpdatedAt        time.Time       // payments.updated_at
}
