// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// DefaultQueue is the durable queue lifecycle events are published to.
const DefaultQueue = "reservation.events"

// Event types.
const (
	EventCreated   = "reservation.created"
	EventBooked    = "reservation.booked"
	EventCanceled  = "reservation.canceled"
	EventExpired   = "reservation.expired"
	EventNoShow    = "reservation.no_show"
	EventCompleted = "reservation.completed"
)

// ReservationEvent is published after a lifecycle transition commits.  It
// carries enough of the reservation for downstream consumers to log or
// aggregate without querying the primary database.
type ReservationEvent struct {
	Type           string `json:"type"`
	ReservationID  uint64 `json:"reservation_id"`
	CustomerID     uint64 `json:"customer_id"`
	VenueID        uint64 `json:"venue_id"`
	ServiceID      uint64 `json:"service_id"`
	Status         string `json:"status"`
	ScheduledStart string `json:"scheduled_start"`
	DepositAmount  string `json:"deposit_amount"`
	Currency       string `json:"currency"`
	OccurredAt     string `json:"occurred_at"`
}

// NewReservationEvent snapshots r into an event of type typ.  The
// scheduled start is venue-local and formatted without a zone.
func NewReservationEvent(typ string, r model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:           typ,
		ReservationID:  r.ID,
		CustomerID:     r.CustomerID,
		VenueID:        r.VenueID,
		ServiceID:      r.ServiceID,
		Status:         string(r.Status),
		ScheduledStart: r.ScheduledStart.Format("2006-01-02T15:04:05"),
		DepositAmount:  r.DepositAmount.String(),
		Currency:       r.Currency,
		OccurredAt:     at.UTC().Format(time.RFC3339),
	}
}
