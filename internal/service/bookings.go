package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"classfit/internal/cache"
	"classfit/internal/config"
	"classfit/internal/database"
	apperrors "classfit/internal/errors"
	"classfit/internal/external"
	"classfit/internal/logger"
	"classfit/internal/messaging"
	"classfit/internal/metrics"
	"classfit/internal/models"
	"classfit/internal/repository"
)

type BookingService struct {
	db          *database.DB
	repos       *repository.Repositories
	natsClient  *messaging.NATSClient
	cacheClient *cache.ValkeyClient
	billing     *external.BillingClient
	lockTimeout time.Duration
	skipPolicy  config.WaitlistSkipPolicy
}

func NewBookingService(db *database.DB, repos *repository.Repositories, natsClient *messaging.NATSClient,
	cacheClient *cache.ValkeyClient, billing *external.BillingClient,
	lockTimeout time.Duration, skipPolicy config.WaitlistSkipPolicy) *BookingService {
	return &BookingService{
		db:          db,
		repos:       repos,
		natsClient:  natsClient,
		cacheClient: cacheClient,
		billing:     billing,
		lockTimeout: lockTimeout,
		skipPolicy:  skipPolicy,
	}
}

// chargeIntent defers a drop-in charge until after the transaction
// commits so the billing gateway is never called while row locks are
// held.
type chargeIntent struct {
	orgID       uuid.UUID
	memberID    uuid.UUID
	bookingID   uuid.UUID
	amountCents int64
	description string
}

// refundIntent defers a drop-in refund the same way; the gateway keys
// charges by booking id.
type refundIntent struct {
	orgID     uuid.UUID
	bookingID uuid.UUID
	reason    string
}

// txResult accumulates everything a booking transaction wants done
// after commit.
type txResult struct {
	events  []models.OutboundEvent
	charges []chargeIntent
	refunds []refundIntent
}

func (r *txResult) event(subject string, payload any) {
	r.events = append(r.events, models.OutboundEvent{Subject: subject, Payload: payload})
}

// Request books a member into a session: a seat when one is free, the
// waitlist otherwise. Payment resolution happens before any counter
// mutation, so a payment failure leaves nothing to unwind. Repeating a
// request while the member already holds a live booking returns that
// booking unchanged.
func (s *BookingService) Request(ctx context.Context, orgID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, bool, error) {
	log := logger.WithOrgID(orgID)

	session, err := s.repos.Sessions.GetByID(ctx, orgID, req.SessionID)
	if err != nil {
		return nil, false, err
	}
	class, err := s.repos.Classes.GetByID(ctx, orgID, session.ClassID)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()

	// Loaded without locks; the debit re-validates under its own lock.
	sub, err := s.repos.Subscriptions.GetActiveByMember(ctx, orgID, req.MemberID)
	if err != nil {
		return nil, false, err
	}
	balances, err := s.repos.Balances.ListUsableByMember(ctx, orgID, req.MemberID, now)
	if err != nil {
		return nil, false, err
	}

	var booking *models.Booking
	var result txResult
	outcome := "confirmed"

	err = s.db.WithTx(ctx, s.lockTimeout, func(tx *sql.Tx) error {
		locked, err := s.repos.Sessions.GetForUpdate(ctx, tx, orgID, req.SessionID)
		if err != nil {
			return err
		}
		if locked.Halted {
			return apperrors.ErrSessionHalted
		}

		existing, err := s.repos.Bookings.GetActive(ctx, tx, req.SessionID, req.MemberID)
		if err != nil {
			return err
		}
		if existing != nil {
			booking = existing
			outcome = "duplicate"
			return nil
		}

		if locked.HasAvailableSpots() {
			decision, err := s.resolve(class, sub, balances, req.Complimentary, now)
			if err != nil {
				return err
			}
			if err := locked.ReserveSeat(); err != nil {
				return err
			}

			booking = models.NewConfirmedBooking(orgID, req.SessionID, req.MemberID, decision, now)
			if err := s.applyDebit(ctx, tx, booking, class, decision, now, &result); err != nil {
				return err
			}
			if err := s.repos.Bookings.Create(ctx, tx, booking); err != nil {
				return err
			}
			result.event(models.EventBookingConfirmed, bookingEvent(booking, "", now))
		} else {
			if !class.WaitlistEnabled {
				return apperrors.ErrSessionNotBookable
			}
			if err := locked.JoinWaitlist(class.MaxWaitlistSize); err != nil {
				return err
			}

			booking = models.NewWaitlistedBooking(orgID, req.SessionID, req.MemberID, locked.WaitlistCount, now)
			if err := s.repos.Bookings.Create(ctx, tx, booking); err != nil {
				return err
			}
			outcome = "waitlisted"
			result.event(models.EventBookingWaitlisted, bookingEvent(booking, "", now))
		}

		if err := s.verifyCounters(ctx, tx, locked); err != nil {
			return err
		}
		return s.repos.Sessions.SaveCounters(ctx, tx, locked)
	})
	if err != nil {
		return nil, false, s.mapTxError(ctx, err, req.SessionID, "book")
	}

	s.finish(ctx, orgID, &result)
	metrics.BookingsTotal.WithLabelValues(outcome).Inc()
	log.Info("Booking request handled",
		"booking_id", booking.ID, "session_id", req.SessionID, "member_id", req.MemberID,
		"outcome", outcome)

	return booking, outcome != "duplicate", nil
}

// Cancel cancels a booking. For a confirmed booking the seat is
// released, eligible credits are refunded, and the freed seat is
// offered to the waitlist, all in one transaction. A waitlisted booking
// releases its slot and the queue renumbers behind it.
func (s *BookingService) Cancel(ctx context.Context, orgID uuid.UUID, req *models.CancelBookingRequest) (*models.Booking, error) {
	existing, err := s.repos.Bookings.GetByID(ctx, orgID, req.BookingID)
	if err != nil {
		return nil, err
	}

	session, err := s.repos.Sessions.GetByID(ctx, orgID, existing.SessionID)
	if err != nil {
		return nil, err
	}
	class, err := s.repos.Classes.GetByID(ctx, orgID, session.ClassID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	late := false

	var booking *models.Booking
	var result txResult

	err = s.db.WithTx(ctx, s.lockTimeout, func(tx *sql.Tx) error {
		locked, err := s.repos.Sessions.GetForUpdate(ctx, tx, orgID, existing.SessionID)
		if err != nil {
			return err
		}
		if locked.Halted {
			return apperrors.ErrSessionHalted
		}

		booking, err = s.repos.Bookings.GetForUpdate(ctx, tx, orgID, req.BookingID)
		if err != nil {
			return err
		}

		wasWaitlisted := booking.Status == models.BookingWaitlisted

		if err := booking.Cancel(req.Reason, now); err != nil {
			return err
		}

		if wasWaitlisted {
			if err := locked.LeaveWaitlist(); err != nil {
				return err
			}
			if err := s.repos.Bookings.Update(ctx, tx, booking); err != nil {
				return err
			}
			if err := s.renumberWaitlist(ctx, tx, locked.ID); err != nil {
				return err
			}
		} else {
			// Past the class's cancellation deadline the debited
			// credit is forfeited; the seat is still released.
			deadline := session.StartsAt.Add(-time.Duration(class.CancelDeadlineHrs) * time.Hour)
			late = now.After(deadline)
			if !late {
				if err := s.refund(ctx, tx, booking, "cancelled", &result); err != nil {
					return err
				}
			}
			if err := s.repos.Bookings.Update(ctx, tx, booking); err != nil {
				return err
			}
			if err := locked.ReleaseSeat(); err != nil {
				return err
			}
			if err := s.promoteForFreedSeat(ctx, tx, locked, now, &result); err != nil {
				return err
			}
		}

		result.event(models.EventBookingCancelled, bookingEvent(booking, req.Reason, now))

		if err := s.verifyCounters(ctx, tx, locked); err != nil {
			return err
		}
		return s.repos.Sessions.SaveCounters(ctx, tx, locked)
	})
	if err != nil {
		return nil, s.mapTxError(ctx, err, existing.SessionID, "cancel")
	}

	s.finish(ctx, orgID, &result)
	metrics.CancellationsTotal.WithLabelValues(fmt.Sprintf("%t", late)).Inc()

	return booking, nil
}

// CheckIn marks attendance on a confirmed booking.
func (s *BookingService) CheckIn(ctx context.Context, orgID uuid.UUID, req *models.CheckInRequest) (*models.Booking, error) {
	existing, err := s.repos.Bookings.GetByID(ctx, orgID, req.BookingID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	var booking *models.Booking
	var result txResult

	err = s.db.WithTx(ctx, s.lockTimeout, func(tx *sql.Tx) error {
		locked, err := s.repos.Sessions.GetForUpdate(ctx, tx, orgID, existing.SessionID)
		if err != nil {
			return err
		}

		booking, err = s.repos.Bookings.GetForUpdate(ctx, tx, orgID, req.BookingID)
		if err != nil {
			return err
		}

		if err := booking.CheckIn(now); err != nil {
			return err
		}
		if err := locked.RecordCheckIn(); err != nil {
			return err
		}
		if err := s.repos.Bookings.Update(ctx, tx, booking); err != nil {
			return err
		}

		result.event(models.EventBookingCheckedIn, bookingEvent(booking, "", now))
		return s.repos.Sessions.SaveCounters(ctx, tx, locked)
	})
	if err != nil {
		return nil, s.mapTxError(ctx, err, existing.SessionID, "checkin")
	}

	s.finish(ctx, orgID, &result)
	return booking, nil
}

// MarkNoShow records a missed confirmed booking and refunds the debited
// credit. The seat is not released; the session is already over or
// underway when no-shows are recorded.
func (s *BookingService) MarkNoShow(ctx context.Context, orgID uuid.UUID, req *models.NoShowRequest) (*models.Booking, error) {
	existing, err := s.repos.Bookings.GetByID(ctx, orgID, req.BookingID)
	if err != nil {
		return nil, err
	}

	var booking *models.Booking
	var result txResult

	err = s.db.WithTx(ctx, s.lockTimeout, func(tx *sql.Tx) error {
		if _, err := s.repos.Sessions.GetForUpdate(ctx, tx, orgID, existing.SessionID); err != nil {
			return err
		}

		booking, err = s.repos.Bookings.GetForUpdate(ctx, tx, orgID, req.BookingID)
		if err != nil {
			return err
		}

		if err := booking.MarkNoShow(); err != nil {
			return err
		}
		if err := s.refund(ctx, tx, booking, "no_show", &result); err != nil {
			return err
		}
		if err := s.repos.Bookings.Update(ctx, tx, booking); err != nil {
			return err
		}

		result.event(models.EventBookingNoShow, bookingEvent(booking, "", time.Now().UTC()))
		return nil
	})
	if err != nil {
		return nil, s.mapTxError(ctx, err, existing.SessionID, "noshow")
	}

	s.finish(ctx, orgID, &result)
	metrics.NoShowsTotal.Inc()
	return booking, nil
}

// ListByMember returns a member's booking history, newest first.
func (s *BookingService) ListByMember(ctx context.Context, orgID, memberID uuid.UUID) ([]models.Booking, error) {
	return s.repos.Bookings.ListByMember(ctx, orgID, memberID)
}

// Waitlist returns a session's waitlist in position order.
func (s *BookingService) Waitlist(ctx context.Context, orgID, sessionID uuid.UUID) ([]models.Booking, error) {
	all, err := s.repos.Bookings.ListBySession(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	var waitlisted []models.Booking
	for _, b := range all {
		if b.Status == models.BookingWaitlisted {
			waitlisted = append(waitlisted, b)
		}
	}
	return waitlisted, nil
}

// Options previews the payment sources a member could book a session
// with, without reserving anything.
func (s *BookingService) Options(ctx context.Context, orgID, sessionID, memberID uuid.UUID) (*models.BookingOptionsResponse, error) {
	session, err := s.repos.Sessions.GetByID(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	class, err := s.repos.Classes.GetByID(ctx, orgID, session.ClassID)
	if err != nil {
		return nil, err
	}

	resp := &models.BookingOptionsResponse{
		SessionID: sessionID,
		MemberID:  memberID,
	}

	if !session.Bookable() {
		resp.Reason = "session is not open for booking"
		return resp, nil
	}

	now := time.Now().UTC()

	sub, err := s.repos.Subscriptions.GetActiveByMember(ctx, orgID, memberID)
	if err != nil {
		return nil, err
	}
	balances, err := s.repos.Balances.ListUsableByMember(ctx, orgID, memberID, now)
	if err != nil {
		return nil, err
	}

	if class.AcceptsMembership() {
		opt := &models.MembershipOption{}
		switch {
		case !sub.IsActive():
			opt.Reason = "no active membership"
		case class.DeductsFromPlan && !sub.HasClassesAvailable():
			opt.Reason = "plan class allowance exhausted"
		default:
			opt.Available = true
			opt.ClassesRemaining = sub.ClassesRemaining
		}
		resp.Membership = opt
	}

	if class.AcceptsClassPack() {
		for _, b := range balances {
			if b.Usable(now) && b.CoversClass(class) {
				resp.ClassPacks = append(resp.ClassPacks, models.ClassPackOption{
					BalanceID:        b.ID,
					CreditsRemaining: b.CreditsRemaining,
					ExpiresAt:        b.ExpiresAt,
					CategoryScoped:   b.PerCategory(),
				})
			}
		}
	}

	if class.AcceptsPayPerEntry() && class.DropInPriceCents != nil {
		resp.PayPerEntry = &models.PayPerEntryOption{Available: true, PriceCents: *class.DropInPriceCents}
	}

	_, err = models.ResolvePaymentSource(class, sub, balances, now)
	resp.CanBook = err == nil
	if err != nil && resp.Reason == "" {
		resp.Reason = "no payment source available"
	}

	return resp, nil
}

func (s *BookingService) resolve(class *models.GymClass, sub *models.Subscription,
	balances []*models.CreditBalance, complimentary bool, now time.Time) (models.PaymentDecision, error) {
	if complimentary {
		return models.PaymentDecision{Source: models.SourceComplimentary}, nil
	}
	return models.ResolvePaymentSource(class, sub, balances, now)
}

// applyDebit consumes one unit from the decided source under its own
// row lock. Session lock is already held, so the lock order is always
// session, then booking, then balance or subscription.
func (s *BookingService) applyDebit(ctx context.Context, tx *sql.Tx, booking *models.Booking,
	class *models.GymClass, decision models.PaymentDecision, now time.Time, result *txResult) error {
	switch decision.Source {
	case models.SourceMembership:
		if !class.DeductsFromPlan {
			return nil
		}
		sub, err := s.repos.Subscriptions.GetForUpdate(ctx, tx, booking.OrgID, *decision.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil || !sub.IsActive() {
			return apperrors.ErrNoPaymentSource
		}
		if sub.ClassesRemaining == nil {
			// Unlimited plans have nothing to decrement or refund.
			return nil
		}
		if *sub.ClassesRemaining <= 0 {
			return apperrors.ErrNoPaymentSource
		}
		*sub.ClassesRemaining--
		if err := s.repos.Subscriptions.Save(ctx, tx, sub); err != nil {
			return err
		}
		booking.ClassDeducted = true
		result.event(models.EventCreditsDebited, creditsEvent(booking, nil))
		metrics.CreditDebitsTotal.Inc()

	case models.SourceClassPack:
		balance, err := s.repos.Balances.GetForUpdate(ctx, tx, booking.OrgID, *decision.BalanceID)
		if err != nil {
			return err
		}
		if err := balance.Debit(now, decision.CategoryID); err != nil {
			return err
		}
		if err := s.repos.Balances.Save(ctx, tx, balance); err != nil {
			return err
		}
		booking.ClassDeducted = true
		result.event(models.EventCreditsDebited, creditsEvent(booking, decision.BalanceID))
		metrics.CreditDebitsTotal.Inc()

	case models.SourcePayPerEntry:
		result.charges = append(result.charges, chargeIntent{
			orgID:       booking.OrgID,
			memberID:    booking.MemberID,
			bookingID:   booking.ID,
			amountCents: *decision.AmountCents,
			description: class.Name,
		})

	case models.SourceComplimentary:
		// Nothing to debit.
	}

	return nil
}

// refund reverses the booking's debit. Idempotent: a booking whose
// classDeducted flag is already false is a no-op.
func (s *BookingService) refund(ctx context.Context, tx *sql.Tx, booking *models.Booking,
	reason string, result *txResult) error {
	if booking.PaymentSource != nil && *booking.PaymentSource == models.SourcePayPerEntry {
		// Drop-in money lives in the billing gateway, not the credit
		// ledger. Reverse the charge after commit; a no-show keeps it.
		if reason != "no_show" {
			result.refunds = append(result.refunds, refundIntent{
				orgID:     booking.OrgID,
				bookingID: booking.ID,
				reason:    reason,
			})
		}
		return nil
	}
	if !booking.ClassDeducted || booking.PaymentSource == nil {
		return nil
	}

	switch *booking.PaymentSource {
	case models.SourceMembership:
		if booking.SubscriptionID == nil {
			return nil
		}
		sub, err := s.repos.Subscriptions.GetForUpdate(ctx, tx, booking.OrgID, *booking.SubscriptionID)
		if err != nil {
			return err
		}
		if sub != nil && sub.ClassesRemaining != nil {
			*sub.ClassesRemaining++
			if err := s.repos.Subscriptions.Save(ctx, tx, sub); err != nil {
				return err
			}
		}

	case models.SourceClassPack:
		if booking.CreditBalanceID == nil {
			return nil
		}
		balance, err := s.repos.Balances.GetForUpdate(ctx, tx, booking.OrgID, *booking.CreditBalanceID)
		if err != nil {
			return err
		}
		if err := balance.Refund(booking.CategoryID); err != nil {
			return err
		}
		if err := s.repos.Balances.Save(ctx, tx, balance); err != nil {
			return err
		}

	default:
		return nil
	}

	booking.ClassDeducted = false
	result.event(models.EventCreditsRefunded, creditsEvent(booking, booking.CreditBalanceID))
	metrics.CreditRefundsTotal.WithLabelValues(reason).Inc()
	return nil
}

// verifyCounters cross-checks the mutated counters against the booking
// rows before commit. A mismatch aborts the transaction and halts the
// session.
func (s *BookingService) verifyCounters(ctx context.Context, tx *sql.Tx, session *models.ClassSession) error {
	counts, err := s.repos.Bookings.CountByStatus(ctx, tx, session.ID)
	if err != nil {
		return err
	}
	return session.CheckCounters(models.SeatCount(counts), counts[models.BookingWaitlisted])
}

// mapTxError translates low-level transaction failures and handles the
// consistency-violation path: the session is frozen so nothing else
// mutates it until an operator reconciles the counters.
func (s *BookingService) mapTxError(ctx context.Context, err error, sessionID uuid.UUID, op string) error {
	if database.IsLockTimeout(err) {
		metrics.LockTimeoutsTotal.Inc()
		return apperrors.ErrBookingTimeout
	}

	var cerr *apperrors.ConsistencyError
	if errors.As(err, &cerr) {
		logger.Get().Error("Counter consistency violation, halting session",
			"session_id", sessionID, "op", op, "detail", cerr.Detail)
		metrics.SessionsHaltedTotal.Inc()
		if haltErr := s.repos.Sessions.Halt(context.WithoutCancel(ctx), sessionID); haltErr != nil {
			logger.Get().Error("Failed to halt session", "session_id", sessionID, "error", haltErr)
		}
	}

	return err
}

// finish runs the side effects deferred past commit: events, drop-in
// charges, cache invalidation. All best-effort.
func (s *BookingService) finish(ctx context.Context, orgID uuid.UUID, result *txResult) {
	if s.natsClient != nil {
		s.natsClient.PublishAll(result.events)
	}

	for _, c := range result.charges {
		if s.billing == nil {
			continue
		}
		if _, err := s.billing.ChargeDropIn(ctx, c.orgID, c.memberID, c.bookingID, c.amountCents, c.description); err != nil {
			logger.Get().Error("Drop-in charge failed", "booking_id", c.bookingID, "error", err)
		}
	}

	for _, r := range result.refunds {
		if s.billing == nil {
			continue
		}
		if _, err := s.billing.RefundCharge(ctx, r.orgID, r.bookingID, r.reason); err != nil {
			logger.Get().Error("Drop-in refund failed", "booking_id", r.bookingID, "error", err)
		}
	}

	if s.cacheClient != nil {
		if err := s.cacheClient.Invalidate(ctx, orgID); err != nil {
			logger.Get().Warn("Schedule cache invalidation failed", "org_id", orgID, "error", err)
		}
	}
}

func bookingEvent(b *models.Booking, reason string, now time.Time) models.BookingEvent {
	return models.BookingEvent{
		BookingID: b.ID,
		SessionID: b.SessionID,
		MemberID:  b.MemberID,
		OrgID:     b.OrgID,
		Reason:    reason,
		Timestamp: now,
	}
}

func creditsEvent(b *models.Booking, balanceID *uuid.UUID) models.CreditsEvent {
	var src models.PaymentSource
	if b.PaymentSource != nil {
		src = *b.PaymentSource
	}
	return models.CreditsEvent{
		MemberID:  b.MemberID,
		BalanceID: balanceID,
		Credits:   1,
		Source:    src,
		OrgID:     b.OrgID,
		Timestamp: time.Now().UTC(),
	}
}
