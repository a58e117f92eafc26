// Package service implements the reservation lifecycle: booking a slot,
// capturing the deposit, cancellation with refunds, owner status updates,
// listings and expiry of unpaid reservations.  Storage is reached through
// the Store and Tx ports; every mutating operation runs in a single
// transaction and publishes its event only after commit.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-reservation/internal/apperror"
	"github.com/iliyamo/venue-reservation/internal/booking"
	"github.com/iliyamo/venue-reservation/internal/config"
	"github.com/iliyamo/venue-reservation/internal/database"
	"github.com/iliyamo/venue-reservation/internal/metrics"
	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/queue"
)

const (
	// ExpiredReason is recorded on reservations canceled for non-payment.
	ExpiredReason = "deposit window expired"
	// InternalProvider names the in-house ledger as payment provider.
	InternalProvider = "internal"

	defaultMineLimit  = 10
	defaultVenueLimit = 20
	maxLimit          = 100
	expireBatch       = 500
	publishTimeout    = 3 * time.Second
)

// ReservationService orchestrates the reservation lifecycle.
type ReservationService struct {
	store   Store
	pub     Publisher
	cfg     config.BookingConfig
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewReservationService wires the lifecycle.  pub and m may be nil.
func NewReservationService(store Store, cfg config.BookingConfig, pub Publisher, log zerolog.Logger, m *metrics.Metrics) *ReservationService {
	return &ReservationService{
		store:   store,
		pub:     pub,
		cfg:     cfg,
		log:     log.With().Str("component", "reservation-service").Logger(),
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the time source.  Used by tests.
func (s *ReservationService) WithClock(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

// CreateInput is a booking request.  Start is a venue-local wall-clock
// time unless Absolute is set, in which case it is an instant converted
// to the venue's timezone.
type CreateInput struct {
	ServiceID uint64
	Start     time.Time
	Absolute  bool
	PartySize int
}

// Create books a slot in DEPOSIT_PENDING.  The service row is locked
// while the day's reservations are validated, so two requests for
// overlapping slots cannot both succeed.
func (s *ReservationService) Create(ctx context.Context, actor booking.Actor, in CreateInput) (*ReservationView, error) {
	r, err := s.create(ctx, actor, in)
	s.observe("create", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.EventCreated, *r)
	s.log.Info().Uint64("reservation_id", r.ID).Uint64("customer_id", r.CustomerID).
		Uint64("service_id", r.ServiceID).Str("start", r.ScheduledStart.Format(localLayout)).
		Msg("reservation created")
	v := newReservationView(*r, nil)
	return &v, nil
}

func (s *ReservationService) create(ctx context.Context, actor booking.Actor, in CreateInput) (*model.Reservation, error) {
	if !actor.Has(booking.CapBook) {
		return nil, apperror.NewForbidden("only customers can book")
	}

	snap, start, err := s.snapshotFor(ctx, in)
	if err != nil {
		return nil, err
	}
	svc, venue := snap.Service, snap.Venue

	grade, err := s.store.CustomerGrade(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	var fallback *model.UserGrade
	if grade == nil {
		if fallback, err = s.store.DefaultGrade(ctx); err != nil {
			return nil, err
		}
	}
	applied := booking.ResolveGrade(grade, fallback)
	rate := booking.ResolveDepositRate(svc.DepositRatePercent, venue.DefaultDepositRatePercent)
	quote := booking.CalculatePrice(svc.Price, in.PartySize, rate, applied.DiscountPercent)

	// DATETIME columns keep whole seconds.
	now := s.now().UTC().Truncate(time.Second)
	day := booking.DateOf(start)
	res := model.Reservation{
		CustomerID:           actor.UserID,
		VenueID:              venue.ID,
		ServiceID:            svc.ID,
		PartySize:            in.PartySize,
		ScheduledStart:       start,
		ScheduledEnd:         start.Add(time.Duration(svc.DurationMinutes) * time.Minute),
		Status:               model.StatusDepositPending,
		BookedAt:             now,
		TotalPrice:           quote.Total,
		DepositRatePercent:   rate,
		GradeID:              applied.GradeID,
		GradeDiscountPercent: applied.DiscountPercent,
		DepositAmount:        quote.Deposit,
		Currency:             venue.Currency,
		CreatedAt:            now,
		UpdatedAt:            now,
		VenueOwnerID:         venue.OwnerID,
		VenueTimezone:        venue.Timezone,
	}

	for attempt := 0; ; attempt++ {
		r := res
		err = s.store.InTx(ctx, func(tx Tx) error {
			if err := tx.LockService(ctx, svc.ID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return apperror.NewNotFound("service")
				}
				return err
			}
			active, err := tx.ActiveReservations(ctx, svc.ID, day, day.AddDate(0, 0, 1))
			if err != nil {
				return err
			}
			if err := booking.ValidateSlot(booking.SlotRequest{
				Service:   svc,
				Start:     start,
				PartySize: in.PartySize,
				Hours:     snap.Hours,
				Blocks:    snap.Blocks,
				Active:    active,
			}); err != nil {
				return err
			}
			return tx.InsertReservation(ctx, &r)
		})
		if err == nil {
			return &r, nil
		}
		if !database.IsRetryable(err) {
			return nil, err
		}
		if attempt > 0 {
			return nil, apperror.Wrap(apperror.ErrSlotConflict, err)
		}
		s.log.Debug().Err(err).Uint64("service_id", svc.ID).Msg("retrying booking after lock conflict")
	}
}

// snapshotFor loads the catalog for the request and resolves the local
// start time.  An instant is first placed on the venue's clock, which may
// move it to another date and require the snapshot of that date.
func (s *ReservationService) snapshotFor(ctx context.Context, in CreateInput) (*model.CatalogSnapshot, time.Time, error) {
	start := in.Start
	if !in.Absolute {
		start = booking.WallClock(start, time.UTC)
	}
	snap, err := s.loadSnapshot(ctx, in.ServiceID, start)
	if err != nil {
		return nil, time.Time{}, err
	}
	if in.Absolute {
		local := booking.WallClock(in.Start, snap.Venue.Location())
		if !booking.DateOf(local).Equal(booking.DateOf(start)) {
			if snap, err = s.loadSnapshot(ctx, in.ServiceID, local); err != nil {
				return nil, time.Time{}, err
			}
		}
		start = local
	}
	return snap, start, nil
}

func (s *ReservationService) loadSnapshot(ctx context.Context, serviceID uint64, day time.Time) (*model.CatalogSnapshot, error) {
	snap, err := s.store.Snapshot(ctx, serviceID, booking.DateOf(day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("service")
	}
	if err != nil {
		return nil, err
	}
	if !snap.Service.IsActive || !snap.Venue.IsActive {
		return nil, apperror.NewNotFound("service")
	}
	return snap, nil
}

// PayDeposit captures the deposit of a DEPOSIT_PENDING reservation and
// books it.  A reservation whose deposit window has passed is canceled on
// the spot and the payment fails with ErrDepositExpired.
func (s *ReservationService) PayDeposit(ctx context.Context, actor booking.Actor, reservationID uint64, method string) (*PaymentView, error) {
	var (
		payment  *model.Payment
		res      *model.Reservation
		expired  bool
		canceled bool
	)
	now := s.now().UTC()
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := s.getReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if !actor.Has(booking.CapPay) || !actor.IsCustomerOf(*r) {
			return apperror.NewForbidden("only the customer can pay this reservation")
		}
		if r.Status == model.StatusDepositPending && now.After(r.CreatedAt.Add(s.cfg.DepositTimeout)) {
			c := model.Cancellation{At: now, Reason: ExpiredReason}
			ok, err := tx.Cancel(ctx, r.ID, []model.ReservationStatus{model.StatusDepositPending}, c)
			if err != nil {
				return err
			}
			expired, canceled = true, ok
			applyCancellation(r, c)
			res = r
			return nil
		}
		if r.Status != model.StatusDepositPending {
			return apperror.NewInvalidState(fmt.Sprintf("cannot pay a reservation in status %s", r.Status))
		}
		ok, err := tx.MarkBooked(ctx, r.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewInvalidState("reservation is no longer awaiting its deposit")
		}
		provider, txnID := InternalProvider, uuid.NewString()
		p := &model.Payment{
			ReservationID: r.ID,
			PayerID:       actor.UserID,
			Type:          model.PaymentDeposit,
			Method:        method,
			Provider:      &provider,
			ProviderTxnID: &txnID,
			Amount:        r.DepositAmount,
			Currency:      r.Currency,
			Status:        model.PaymentCaptured,
			PaidAt:        &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.AppendPayment(ctx, p); err != nil {
			return err
		}
		r.Status = model.StatusBooked
		r.UpdatedAt = now
		payment, res = p, r
		return nil
	})
	if err == nil && expired {
		err = apperror.ErrDepositExpired
		if canceled {
			s.publish(ctx, queue.EventExpired, *res)
		}
	}
	s.observe("pay_deposit", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.EventBooked, *res)
	s.log.Info().Uint64("reservation_id", res.ID).Uint64("payment_id", payment.ID).
		Str("amount", payment.Amount.String()).Msg("deposit captured")
	v := newPaymentView(*payment)
	return &v, nil
}

// Cancel lets the customer cancel a pending or booked reservation up to
// the cancellation window before its start.  A captured deposit is
// refunded in the same transaction.
func (s *ReservationService) Cancel(ctx context.Context, actor booking.Actor, reservationID uint64, reason string) (*ReservationView, error) {
	var view ReservationView
	var res model.Reservation
	now := s.now().UTC()
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := s.getReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if !actor.Has(booking.CapCancelOwn) || !actor.IsCustomerOf(*r) {
			return apperror.NewForbidden("only the customer can cancel this reservation")
		}
		if !booking.Cancelable(r.Status) {
			return apperror.NewInvalidState(fmt.Sprintf("cannot cancel a reservation in status %s", r.Status))
		}
		localNow := booking.WallClock(now, r.Location())
		if r.ScheduledStart.Sub(localNow) < s.cfg.CancelWindow {
			return apperror.ErrCancellationWindow
		}
		by := actor.UserID
		c := model.Cancellation{At: now, By: &by, Reason: strings.TrimSpace(reason)}
		ok, err := tx.Cancel(ctx, r.ID, model.ActiveStatuses, c)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewInvalidState("reservation changed concurrently")
		}
		applyCancellation(r, c)
		payments, err := s.refundIfDue(ctx, tx, r, actor.UserID, now)
		if err != nil {
			return err
		}
		res, view = *r, newReservationView(*r, payments)
		return nil
	})
	s.observe("cancel", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.EventCanceled, res)
	s.log.Info().Uint64("reservation_id", res.ID).Uint64("canceled_by", actor.UserID).Msg("reservation canceled")
	return &view, nil
}

// OwnerUpdateStatus applies an owner action (NO_SHOW, CANCEL, COMPLETE)
// to a reservation of a venue the actor owns.  Owner cancellation ignores
// the customer cancellation window and refunds the deposit.
func (s *ReservationService) OwnerUpdateStatus(ctx context.Context, actor booking.Actor, reservationID uint64, action, reason string) (*ReservationView, error) {
	act, err := booking.ParseOwnerAction(action)
	if err != nil {
		s.observe("owner_update_status", err)
		return nil, err
	}
	var view ReservationView
	var res model.Reservation
	now := s.now().UTC()
	err = s.store.InTx(ctx, func(tx Tx) error {
		r, err := s.getReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if !actor.Manages(r.VenueOwnerID) {
			return apperror.NewForbidden("only the venue owner can update this reservation")
		}
		if !booking.OwnerMayApply(act, r.Status) {
			return apperror.NewInvalidState(fmt.Sprintf("reservation is already %s", r.Status))
		}

		var ok bool
		switch act {
		case booking.ActionCancel:
			by := actor.UserID
			c := model.Cancellation{At: now, By: &by, Reason: strings.TrimSpace(reason)}
			if ok, err = tx.Cancel(ctx, r.ID, []model.ReservationStatus{r.Status}, c); err == nil && ok {
				applyCancellation(r, c)
			}
		case booking.ActionNoShow:
			if ok, err = tx.SetStatus(ctx, r.ID, r.Status, model.StatusNoShow, &now, now); err == nil && ok {
				r.NoShowMarkedAt = &now
			}
		default:
			ok, err = tx.SetStatus(ctx, r.ID, r.Status, act.Target(), nil, now)
		}
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewInvalidState("reservation changed concurrently")
		}
		r.Status = act.Target()
		r.UpdatedAt = now

		var payments []model.Payment
		if act == booking.ActionCancel {
			payments, err = s.refundIfDue(ctx, tx, r, actor.UserID, now)
		} else {
			payments, err = tx.Payments(ctx, r.ID)
		}
		if err != nil {
			return err
		}
		res, view = *r, newReservationView(*r, payments)
		return nil
	})
	s.observe("owner_update_status", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, ownerEvent(act), res)
	s.log.Info().Uint64("reservation_id", res.ID).Str("action", string(act)).
		Uint64("owner_id", actor.UserID).Msg("reservation status updated by owner")
	return &view, nil
}

func ownerEvent(a booking.OwnerAction) string {
	switch a {
	case booking.ActionCancel:
		return queue.EventCanceled
	case booking.ActionNoShow:
		return queue.EventNoShow
	}
	return queue.EventCompleted
}

// refundIfDue appends a refund for the latest unrefunded captured deposit
// when the reservation carries a positive deposit.  It returns the ledger
// after the refund.
func (s *ReservationService) refundIfDue(ctx context.Context, tx Tx, r *model.Reservation, payer uint64, now time.Time) ([]model.Payment, error) {
	payments, err := tx.Payments(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if !r.DepositAmount.IsPositive() {
		return payments, nil
	}
	deposit := booking.RefundableDeposit(payments)
	if deposit == nil {
		return payments, nil
	}
	provider, txnID := InternalProvider, uuid.NewString()
	related := deposit.ID
	refund := model.Payment{
		ReservationID:    r.ID,
		PayerID:          payer,
		Type:             model.PaymentRefund,
		Method:           deposit.Method,
		Provider:         &provider,
		ProviderTxnID:    &txnID,
		Amount:           r.DepositAmount,
		Currency:         deposit.Currency,
		Status:           model.PaymentCaptured,
		RelatedPaymentID: &related,
		PaidAt:           &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.AppendPayment(ctx, &refund); err != nil {
		return nil, err
	}
	s.log.Info().Uint64("reservation_id", r.ID).Uint64("refund_of", related).
		Str("amount", refund.Amount.String()).Msg("deposit refunded")
	return append(payments, refund), nil
}

func (s *ReservationService) getReservation(ctx context.Context, tx Tx, id uint64) (*model.Reservation, error) {
	r, err := tx.GetReservation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("reservation")
	}
	return r, err
}

func applyCancellation(r *model.Reservation, c model.Cancellation) {
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

// ParseStatusFilter maps a listing filter onto a status.  An empty value
// or "all" means no filter.
func ParseStatusFilter(s string) (model.ReservationStatus, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "ALL" {
		return "", nil
	}
	st, ok := model.ParseReservationStatus(s)
	if !ok {
		return "", apperror.NewInvalidArgument(fmt.Sprintf("unknown status %q", s))
	}
	return st, nil
}

// ListMine returns the actor's reservations, newest first.
func (s *ReservationService) ListMine(ctx context.Context, actor booking.Actor, status string, page model.PageRequest) (model.Page[ReservationView], error) {
	st, err := ParseStatusFilter(status)
	if err != nil {
		return model.Page[ReservationView]{}, err
	}
	page = page.Normalize(defaultMineLimit, maxLimit)
	items, total, err := s.store.ListByCustomer(ctx, actor.UserID, st, page)
	if err != nil {
		return model.Page[ReservationView]{}, err
	}
	return s.page(ctx, items, page, total)
}

// ListForVenue returns the reservations of a venue the actor owns, newest
// first.
func (s *ReservationService) ListForVenue(ctx context.Context, actor booking.Actor, venueID uint64, page model.PageRequest) (model.Page[ReservationView], error) {
	venue, err := s.store.Venue(ctx, venueID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page[ReservationView]{}, apperror.NewNotFound("venue")
	}
	if err != nil {
		return model.Page[ReservationView]{}, err
	}
	if !actor.Manages(venue.OwnerID) {
		return model.Page[ReservationView]{}, apperror.NewForbidden("only the venue owner can list its reservations")
	}
	page = page.Normalize(defaultVenueLimit, maxLimit)
	items, total, err := s.store.ListByVenue(ctx, venueID, page)
	if err != nil {
		return model.Page[ReservationView]{}, err
	}
	return s.page(ctx, items, page, total)
}

func (s *ReservationService) page(ctx context.Context, items []model.Reservation, req model.PageRequest, total int64) (model.Page[ReservationView], error) {
	ids := make([]uint64, len(items))
	for i, r := range items {
		ids[i] = r.ID
	}
	payments, err := s.store.PaymentsFor(ctx, ids)
	if err != nil {
		return model.Page[ReservationView]{}, err
	}
	views := make([]ReservationView, len(items))
	for i, r := range items {
		views[i] = newReservationView(r, payments[r.ID])
	}
	return model.NewPage(views, req, total), nil
}

// ExpireStale cancels every DEPOSIT_PENDING reservation whose deposit
// window has passed and returns how many it canceled.  Work is done in
// batches; rows a concurrent payment holds are left for the next run.
func (s *ReservationService) ExpireStale(ctx context.Context) (int, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.cfg.DepositTimeout)
	c := model.Cancellation{At: now, Reason: ExpiredReason}
	total := 0
	for {
		expired, err := s.store.ExpireStale(ctx, cutoff, c, expireBatch)
		for _, r := range expired {
			s.publish(ctx, queue.EventExpired, r)
		}
		total += len(expired)
		if err != nil {
			return total, err
		}
		if len(expired) < expireBatch {
			return total, nil
		}
	}
}

// publish sends an event without letting a broker failure affect the
// caller.
func (s *ReservationService) publish(ctx context.Context, typ string, r model.Reservation) {
	if s.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(ctx, queue.NewReservationEvent(typ, r, s.now())); err != nil {
		s.log.Warn().Err(err).Str("event", typ).Uint64("reservation_id", r.ID).Msg("event publish failed")
	}
}

func (s *ReservationService) observe(op string, err error) {
	switch {
	case err == nil:
		s.metrics.Observe(op, metrics.OutcomeOK)
	case apperror.KindOf(err) != apperror.Internal:
		s.metrics.Observe(op, metrics.OutcomeRejected)
	default:
		s.metrics.Observe(op, metrics.OutcomeError)
		s.log.Error().Err(err).Str("operation", op).Msg("lifecycle operation failed")
	}
}
