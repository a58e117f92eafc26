package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/venue-reservation/internal/booking"
)

// SnapshotView is the public availability view of a service on one date.
type SnapshotView struct {
	ServiceID          uint64          `json:"service_id"`
	VenueID            uint64          `json:"venue_id"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	DurationMinutes    int             `json:"duration_minutes"`
	MinPartySize       int             `json:"min_party_size"`
	MaxPartySize       int             `json:"max_party_size"`
	DepositRatePercent decimal.Decimal `json:"deposit_rate_percent"`
	Currency           string          `json:"currency"`
	Timezone           string          `json:"timezone"`
	Date               string          `json:"date"`
	Hours              []WindowView    `json:"hours"`
	Blocks             []WindowView    `json:"blocks"`
}

// WindowView is an opening window or a closure on the requested date.
type WindowView struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Reason *string `json:"reason,omitempty"`
}

// Snapshot returns the bookable facts of an active service for the given
// venue-local date.
func (s *ReservationService) Snapshot(ctx context.Context, serviceID uint64, day time.Time) (*SnapshotView, error) {
	snap, err := s.loadSnapshot(ctx, serviceID, day)
	if err != nil {
		return nil, err
	}
	lo, hi := snap.Service.PartyBounds()
	v := &SnapshotView{
		ServiceID:          snap.Service.ID,
		VenueID:            snap.Venue.ID,
		Name:               snap.Service.Name,
		Price:              snap.Service.Price,
		DurationMinutes:    snap.Service.DurationMinutes,
		MinPartySize:       lo,
		MaxPartySize:       hi,
		DepositRatePercent: booking.ResolveDepositRate(snap.Service.DepositRatePercent, snap.Venue.DefaultDepositRatePercent),
		Currency:           snap.Venue.Currency,
		Timezone:           snap.Venue.Timezone,
		Date:               booking.DateOf(day).Format("2006-01-02"),
		Hours:              make([]WindowView, 0, len(snap.Hours)),
		Blocks:             make([]WindowView, 0, len(snap.Blocks)),
	}
	for _, h := range snap.Hours {
		v.Hours = append(v.Hours, WindowView{From: h.Open.String(), To: h.Close.String()})
	}
	for _, b := range snap.Blocks {
		v.Blocks = append(v.Blocks, WindowView{From: b.Start.String(), To: b.End.String(), Reason: b.Reason})
	}
	return v, nil
}
