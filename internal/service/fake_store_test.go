package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/queue"
)

// fakeStore is an in-memory Store.  Transactions are serialized by one
// mutex and roll back by restoring a copy of the mutable state.
type fakeStore struct {
	mu sync.Mutex

	services map[uint64]model.Service
	venues   map[uint64]model.Venue
	hours    []model.BusinessHour
	blocks   []model.AvailabilityBlock
	grades   map[uint64]*model.UserGrade
	defGrade *model.UserGrade

	reservations map[uint64]model.Reservation
	payments     []model.Payment
	nextRes      uint64
	nextPay      uint64

	// insertErrs are returned, in order, by InsertReservation.
	insertErrs []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		services:     map[uint64]model.Service{},
		venues:       map[uint64]model.Venue{},
		grades:       map[uint64]*model.UserGrade{},
		reservations: map[uint64]model.Reservation{},
	}
}

func (s *fakeStore) Snapshot(_ context.Context, serviceID uint64, day time.Time) (*model.CatalogSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	snap := &model.CatalogSnapshot{Service: svc, Venue: s.venues[svc.VenueID]}
	for _, h := range s.hours {
		if h.VenueID == svc.VenueID && h.DayOfWeek == int(day.Weekday()) {
			snap.Hours = append(snap.Hours, h)
		}
	}
	for _, b := range s.blocks {
		if b.VenueID == svc.VenueID && b.Date.Equal(day) {
			snap.Blocks = append(snap.Blocks, b)
		}
	}
	return snap, nil
}

func (s *fakeStore) Venue(_ context.Context, venueID uint64) (*model.Venue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.venues[venueID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (s *fakeStore) CustomerGrade(_ context.Context, userID uint64) (*model.UserGrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grades[userID], nil
}

func (s *fakeStore) DefaultGrade(context.Context) (*model.UserGrade, error) {
	return s.defGrade, nil
}

func (s *fakeStore) joined(r model.Reservation) model.Reservation {
	v := s.venues[r.VenueID]
	r.VenueOwnerID = v.OwnerID
	r.VenueTimezone = v.Timezone
	return r
}

func (s *fakeStore) list(match func(model.Reservation) bool, page model.PageRequest) ([]model.Reservation, int64) {
	var all []model.Reservation
	for _, r := range s.reservations {
		if match(r) {
			all = append(all, s.joined(r))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].BookedAt.Equal(all[j].BookedAt) {
			return all[i].BookedAt.After(all[j].BookedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := int64(len(all))
	from := page.Offset()
	if from > len(all) {
		from = len(all)
	}
	to := from + page.Limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], total
}

func (s *fakeStore) ListByCustomer(_ context.Context, customerID uint64, status model.ReservationStatus, page model.PageRequest) ([]model.Reservation, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, total := s.list(func(r model.Reservation) bool {
		return r.CustomerID == customerID && (status == "" || r.Status == status)
	}, page)
	return items, total, nil
}

func (s *fakeStore) ListByVenue(_ context.Context, venueID uint64, page model.PageRequest) ([]model.Reservation, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, total := s.list(func(r model.Reservation) bool { return r.VenueID == venueID }, page)
	return items, total, nil
}

func (s *fakeStore) PaymentsFor(_ context.Context, ids []uint64) (map[uint64][]model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[uint64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[uint64][]model.Payment{}
	for _, p := range s.payments {
		if want[p.ReservationID] {
			out[p.ReservationID] = append(out[p.ReservationID], p)
		}
	}
	return out, nil
}

func (s *fakeStore) ExpireStale(_ context.Context, cutoff time.Time, c model.Cancellation, limit int) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, r := range s.reservations {
		if r.Status == model.StatusDepositPending && r.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]model.Reservation, 0, len(ids))
	for _, id := range ids {
		r := s.reservations[id]
		s.cancel(&r, c)
		s.reservations[id] = r
		out = append(out, s.joined(r))
	}
	return out, nil
}

func (s *fakeStore) cancel(r *model.Reservation, c model.Cancellation) {
	at := c.At
	r.Status = model.StatusCanceled
	r.CanceledAt = &at
	r.CanceledBy = c.By
	if c.Reason != "" {
		reason := c.Reason
		r.CancelReason = &reason
	}
	r.UpdatedAt = at
}

func (s *fakeStore) InTx(_ context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make(map[uint64]model.Reservation, len(s.reservations))
	for k, v := range s.reservations {
		saved[k] = v
	}
	savedPayments := append([]model.Payment(nil), s.payments...)
	nextRes, nextPay := s.nextRes, s.nextPay

	if err := fn(&fakeTx{s: s}); err != nil {
		s.reservations, s.payments = saved, savedPayments
		s.nextRes, s.nextPay = nextRes, nextPay
		return err
	}
	return nil
}

func (s *fakeStore) reservation(id uint64) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined(s.reservations[id])
}

func (s *fakeStore) paymentsOf(id uint64) []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Payment
	for _, p := range s.payments {
		if p.ReservationID == id {
			out = append(out, p)
		}
	}
	return out
}

// fakeTx runs with fakeStore.mu held by InTx.
type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) LockService(_ context.Context, serviceID uint64) error {
	if _, ok := t.s.services[serviceID]; !ok {
		return sql.ErrNoRows
	}
	return nil
}

func (t *fakeTx) ActiveReservations(_ context.Context, serviceID uint64, from, to time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range t.s.reservations {
		if r.ServiceID != serviceID {
			continue
		}
		if r.Status != model.StatusDepositPending && r.Status != model.StatusBooked {
			continue
		}
		if r.ScheduledStart.Before(from) || !r.ScheduledStart.Before(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (t *fakeTx) InsertReservation(_ context.Context, r *model.Reservation) error {
	if len(t.s.insertErrs) > 0 {
		err := t.s.insertErrs[0]
		t.s.insertErrs = t.s.insertErrs[1:]
		return err
	}
	t.s.nextRes++
	r.ID = t.s.nextRes
	t.s.reservations[r.ID] = *r
	return nil
}

func (t *fakeTx) GetReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	r, ok := t.s.reservations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r = t.s.joined(r)
	return &r, nil
}

func (t *fakeTx) MarkBooked(_ context.Context, id uint64, now time.Time) (bool, error) {
	r, ok := t.s.reservations[id]
	if !ok || r.Status != model.StatusDepositPending {
		return false, nil
	}
	r.Status = model.StatusBooked
	r.UpdatedAt = now
	t.s.reservations[id] = r
	return true, nil
}

func (t *fakeTx) Cancel(_ context.Context, id uint64, from []model.ReservationStatus, c model.Cancellation) (bool, error) {
	r, ok := t.s.reservations[id]
	if !ok || !hasStatus(from, r.Status) {
		return false, nil
	}
	t.s.cancel(&r, c)
	t.s.reservations[id] = r
	return true, nil
}

func (t *fakeTx) SetStatus(_ context.Context, id uint64, from, to model.ReservationStatus, noShowAt *time.Time, now time.Time) (bool, error) {
	r, ok := t.s.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	if noShowAt != nil {
		at := *noShowAt
		r.NoShowMarkedAt = &at
	}
	r.UpdatedAt = now
	t.s.reservations[id] = r
	return true, nil
}

func (t *fakeTx) Payments(_ context.Context, reservationID uint64) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range t.s.payments {
		if p.ReservationID == reservationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *fakeTx) AppendPayment(_ context.Context, p *model.Payment) error {
	t.s.nextPay++
	p.ID = t.s.nextPay
	t.s.payments = append(t.s.payments, *p)
	return nil
}

func hasStatus(set []model.ReservationStatus, s model.ReservationStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// clock is a settable time source safe for concurrent use.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
