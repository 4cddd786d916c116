package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "classfit/internal/errors"
)

func waitlisted(position int) *Booking {
	return NewWaitlistedBooking(uuid.New(), uuid.New(), uuid.New(), position, time.Now())
}

func TestNewConfirmedBookingCarriesDecision(t *testing.T) {
	subID := uuid.New()
	now := time.Now()
	b := NewConfirmedBooking(uuid.New(), uuid.New(), uuid.New(), PaymentDecision{
		Source:         SourceMembership,
		SubscriptionID: &subID,
	}, now)

	assert.Equal(t, BookingConfirmed, b.Status)
	require.NotNil(t, b.PaymentSource)
	assert.Equal(t, SourceMembership, *b.PaymentSource)
	assert.Equal(t, subID, *b.SubscriptionID)
	assert.Nil(t, b.WaitlistPosition)
	assert.False(t, b.ClassDeducted)
	assert.Equal(t, now, b.BookedAt)
}

func TestPromoteClearsQueueStateAndStampsPayment(t *testing.T) {
	balanceID := uuid.New()
	categoryID := uuid.New()
	now := time.Now()
	skipped := now.Add(-time.Minute)

	b := waitlisted(2)
	b.PromotionSkippedAt = &skipped

	err := b.Promote(PaymentDecision{
		Source:     SourceClassPack,
		BalanceID:  &balanceID,
		CategoryID: &categoryID,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, BookingConfirmed, b.Status)
	assert.Nil(t, b.WaitlistPosition)
	assert.Nil(t, b.PromotionSkippedAt)
	assert.Equal(t, balanceID, *b.CreditBalanceID)
	assert.Equal(t, categoryID, *b.CategoryID)
	assert.Equal(t, now, *b.PromotedAt)
}

func TestPromoteOnlyFromWaitlisted(t *testing.T) {
	b := waitlisted(1)
	require.NoError(t, b.Cancel("changed plans", time.Now()))

	err := b.Promote(PaymentDecision{Source: SourcePayPerEntry}, time.Now())
	assert.True(t, apperrors.IsInvalidTransition(err))
}

func TestCancelClearsPositionAndRecordsReason(t *testing.T) {
	now := time.Now()
	b := waitlisted(3)

	require.NoError(t, b.Cancel("injury", now))
	assert.Equal(t, BookingCancelled, b.Status)
	assert.Nil(t, b.WaitlistPosition)
	assert.Equal(t, now, *b.CancelledAt)
	assert.Equal(t, "injury", *b.CancelReason)
	assert.False(t, b.Active())
}

func TestCheckInThenComplete(t *testing.T) {
	now := time.Now()
	b := NewConfirmedBooking(uuid.New(), uuid.New(), uuid.New(), PaymentDecision{Source: SourceComplimentary}, now)

	require.NoError(t, b.CheckIn(now))
	assert.Equal(t, now, *b.CheckedInAt)

	assert.True(t, apperrors.IsInvalidTransition(b.MarkNoShow()), "attended member cannot be a no-show")

	require.NoError(t, b.Complete())
	assert.Equal(t, BookingCompleted, b.Status)
}

func TestNoShowOnlyFromConfirmed(t *testing.T) {
	b := NewConfirmedBooking(uuid.New(), uuid.New(), uuid.New(), PaymentDecision{Source: SourceMembership}, time.Now())
	require.NoError(t, b.MarkNoShow())
	assert.Equal(t, BookingNoShow, b.Status)

	w := waitlisted(1)
	assert.True(t, apperrors.IsInvalidTransition(w.MarkNoShow()))
}

func TestRenumberWaitlistDensifies(t *testing.T) {
	// Positions 2, 5, 9 after removals collapse to 1, 2, 3.
	a := waitlisted(2)
	b := waitlisted(5)
	c := waitlisted(9)

	changed := RenumberWaitlist([]*Booking{a, b, c})

	require.Len(t, changed, 3)
	assert.Equal(t, 1, *a.WaitlistPosition)
	assert.Equal(t, 2, *b.WaitlistPosition)
	assert.Equal(t, 3, *c.WaitlistPosition)
}

func TestRenumberWaitlistReportsOnlyChanged(t *testing.T) {
	a := waitlisted(1)
	b := waitlisted(3)

	changed := RenumberWaitlist([]*Booking{a, b})

	require.Len(t, changed, 1)
	assert.Same(t, b, changed[0])
	assert.Equal(t, 2, *b.WaitlistPosition)
}

func TestRenumberWaitlistEmpty(t *testing.T) {
	assert.Empty(t, RenumberWaitlist(nil))
}

func TestSelectPromotionPicksFirstInPosition(t *testing.T) {
	a, b, c := waitlisted(1), waitlisted(2), waitlisted(3)

	var resolved []*Booking
	promoted, decision, passedOver, err := SelectPromotion([]*Booking{a, b, c},
		func(cand *Booking) (PaymentDecision, error) {
			resolved = append(resolved, cand)
			return PaymentDecision{Source: SourceMembership}, nil
		})

	require.NoError(t, err)
	assert.Same(t, a, promoted)
	assert.Equal(t, SourceMembership, decision.Source)
	assert.Empty(t, passedOver)
	assert.Len(t, resolved, 1, "selection stops at the first success")
}

func TestSelectPromotionPassesOverUnfundedCandidates(t *testing.T) {
	a, b, c := waitlisted(1), waitlisted(2), waitlisted(3)

	promoted, decision, passedOver, err := SelectPromotion([]*Booking{a, b, c},
		func(cand *Booking) (PaymentDecision, error) {
			switch cand {
			case a:
				return PaymentDecision{}, apperrors.ErrNoPaymentSource
			case b:
				// A balance that looked usable at resolution but was
				// drained before the debit took the row lock.
				return PaymentDecision{}, apperrors.ErrBalanceNotUsable
			default:
				return PaymentDecision{Source: SourcePayPerEntry}, nil
			}
		})

	require.NoError(t, err)
	assert.Same(t, c, promoted)
	assert.Equal(t, SourcePayPerEntry, decision.Source)
	assert.Equal(t, []*Booking{a, b}, passedOver)
}

func TestSelectPromotionAbortsOnOtherErrors(t *testing.T) {
	boom := errors.New("driver: bad connection")

	promoted, _, passedOver, err := SelectPromotion([]*Booking{waitlisted(1), waitlisted(2)},
		func(*Booking) (PaymentDecision, error) {
			return PaymentDecision{}, boom
		})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, promoted)
	assert.Empty(t, passedOver)
}

func TestSelectPromotionEmptyWaitlist(t *testing.T) {
	promoted, _, passedOver, err := SelectPromotion(nil,
		func(*Booking) (PaymentDecision, error) {
			t.Fatal("resolver must not run with an empty waitlist")
			return PaymentDecision{}, nil
		})

	require.NoError(t, err)
	assert.Nil(t, promoted)
	assert.Empty(t, passedOver)
}

func TestMarkPromotionSkippedKeepsQueuePosition(t *testing.T) {
	now := time.Now()
	b := waitlisted(2)

	b.MarkPromotionSkipped(now)

	assert.Equal(t, BookingWaitlisted, b.Status)
	require.NotNil(t, b.WaitlistPosition)
	assert.Equal(t, 2, *b.WaitlistPosition)
	require.NotNil(t, b.PromotionSkippedAt)
	assert.Equal(t, now, *b.PromotionSkippedAt)
}
