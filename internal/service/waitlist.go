package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"classfit/internal/config"
	"classfit/internal/logger"
	"classfit/internal/metrics"
	"classfit/internal/models"
)

// promoteForFreedSeat offers one freed seat to the session's waitlist
// in FIFO order. Candidates whose payment cannot be resolved are
// skipped (or expired, per policy) and never block the pipeline; the
// first resolvable candidate takes the seat. When nobody resolves, the
// seat stays open for new bookings.
//
// Runs inside the caller's transaction with the session lock held.
func (s *BookingService) promoteForFreedSeat(ctx context.Context, tx *sql.Tx,
	session *models.ClassSession, now time.Time, result *txResult) error {
	if !session.Bookable() || session.WaitlistCount == 0 || !session.HasAvailableSpots() {
		return nil
	}

	class, err := s.repos.Classes.GetByID(ctx, session.OrgID, session.ClassID)
	if err != nil {
		return err
	}

	waitlist, err := s.repos.Bookings.ListWaitlistedForUpdate(ctx, tx, session.ID)
	if err != nil {
		return err
	}

	// Payment is resolved and debited against locked rows before any
	// seat transfer, so a candidate that cannot fund the promotion is
	// passed over with nothing to unwind. The unlocked reads in
	// resolveForMember can go stale, which surfaces here as
	// ErrBalanceNotUsable from the debit.
	promoted, decision, passedOver, err := models.SelectPromotion(waitlist,
		func(candidate *models.Booking) (models.PaymentDecision, error) {
			d, err := s.resolveForMember(ctx, class, candidate.MemberID, now)
			if err != nil {
				return models.PaymentDecision{}, err
			}
			return d, s.applyDebit(ctx, tx, candidate, class, d, now, result)
		})
	if err != nil {
		return err
	}

	for _, candidate := range passedOver {
		if err := s.passOver(ctx, tx, session, candidate, now, result); err != nil {
			return err
		}
	}

	if promoted != nil {
		if err := session.ReserveSeat(); err != nil {
			return err
		}
		if err := session.LeaveWaitlist(); err != nil {
			return err
		}
		if err := promoted.Promote(decision, now); err != nil {
			return err
		}
		if err := s.repos.Bookings.Update(ctx, tx, promoted); err != nil {
			return err
		}

		result.event(models.EventWaitlistPromoted, models.PromotionEvent{
			BookingID: promoted.ID,
			MemberID:  promoted.MemberID,
			SessionID: session.ID,
			OrgID:     session.OrgID,
			Timestamp: now,
		})
		metrics.PromotionsTotal.Inc()
	}

	return s.renumber(ctx, tx, waitlist)
}

// passOver applies the configured skip policy to a waitlisted candidate
// that could not fund a promotion.
func (s *BookingService) passOver(ctx context.Context, tx *sql.Tx, session *models.ClassSession,
	candidate *models.Booking, now time.Time, result *txResult) error {
	log := logger.WithOrgID(session.OrgID)

	if s.skipPolicy == config.SkipPolicyExpire {
		if err := candidate.Cancel("payment source unavailable at promotion", now); err != nil {
			return err
		}
		if err := session.LeaveWaitlist(); err != nil {
			return err
		}
		if err := s.repos.Bookings.Update(ctx, tx, candidate); err != nil {
			return err
		}
		result.event(models.EventBookingCancelled, bookingEvent(candidate, "payment source unavailable at promotion", now))
		metrics.PromotionSkipsTotal.WithLabelValues("expire").Inc()
		log.Info("Expired waitlisted booking with no payment source",
			"booking_id", candidate.ID, "session_id", session.ID)
		return nil
	}

	candidate.MarkPromotionSkipped(now)
	if err := s.repos.Bookings.Update(ctx, tx, candidate); err != nil {
		return err
	}
	metrics.PromotionSkipsTotal.WithLabelValues("skip").Inc()
	log.Info("Skipped waitlisted booking with no payment source",
		"booking_id", candidate.ID, "session_id", session.ID)
	return nil
}

// renumber rewrites the still-waitlisted bookings to dense 1..n
// positions and persists the ones that moved.
func (s *BookingService) renumber(ctx context.Context, tx *sql.Tx, waitlist []*models.Booking) error {
	var remaining []*models.Booking
	for _, b := range waitlist {
		if b.Status == models.BookingWaitlisted {
			remaining = append(remaining, b)
		}
	}

	for _, b := range models.RenumberWaitlist(remaining) {
		if err := s.repos.Bookings.Update(ctx, tx, b); err != nil {
			return err
		}
	}
	return nil
}

// renumberWaitlist reloads and renumbers a session's waitlist, used
// when a waitlisted booking cancels out of the middle of the queue.
func (s *BookingService) renumberWaitlist(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID) error {
	waitlist, err := s.repos.Bookings.ListWaitlistedForUpdate(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	return s.renumber(ctx, tx, waitlist)
}

func (s *BookingService) resolveForMember(ctx context.Context, class *models.GymClass,
	memberID uuid.UUID, now time.Time) (models.PaymentDecision, error) {
	sub, err := s.repos.Subscriptions.GetActiveByMember(ctx, class.OrgID, memberID)
	if err != nil {
		return models.PaymentDecision{}, err
	}
	balances, err := s.repos.Balances.ListUsableByMember(ctx, class.OrgID, memberID, now)
	if err != nil {
		return models.PaymentDecision{}, err
	}
	return models.ResolvePaymentSource(class, sub, balances, now)
}
