package models

import (
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "classfit/internal/errors"
)

// NewConfirmedBooking creates a booking that holds a seat. The caller
// has already reserved capacity and resolved payment.
func NewConfirmedBooking(orgID, sessionID, memberID uuid.UUID, decision PaymentDecision, now time.Time) *Booking {
	src := decision.Source
	return &Booking{
		ID:              uuid.New(),
		OrgID:           orgID,
		SessionID:       sessionID,
		MemberID:        memberID,
		SubscriptionID:  decision.SubscriptionID,
		Status:          BookingConfirmed,
		PaymentSource:   &src,
		CreditBalanceID: decision.BalanceID,
		CategoryID:      decision.CategoryID,
		BookedAt:        now,
	}
}

// NewWaitlistedBooking creates a booking queued at the given 1-based
// position. Payment is not applied while waitlisted; the promoter
// resolves it when a seat frees up.
func NewWaitlistedBooking(orgID, sessionID, memberID uuid.UUID, position int, now time.Time) *Booking {
	return &Booking{
		ID:               uuid.New(),
		OrgID:            orgID,
		SessionID:        sessionID,
		MemberID:         memberID,
		Status:           BookingWaitlisted,
		WaitlistPosition: &position,
		BookedAt:         now,
	}
}

// Promote moves a waitlisted booking into a seat, clearing its position
// and stamping the payment decision.
func (b *Booking) Promote(decision PaymentDecision, now time.Time) error {
	if err := Transition(b.Status, BookingConfirmed); err != nil {
		return err
	}
	src := decision.Source
	b.Status = BookingConfirmed
	b.WaitlistPosition = nil
	b.SubscriptionID = decision.SubscriptionID
	b.PaymentSource = &src
	b.CreditBalanceID = decision.BalanceID
	b.CategoryID = decision.CategoryID
	b.PromotedAt = &now
	b.PromotionSkippedAt = nil
	return nil
}

// Cancel moves the booking to CANCELLED.
func (b *Booking) Cancel(reason string, now time.Time) error {
	if err := Transition(b.Status, BookingCancelled); err != nil {
		return err
	}
	b.Status = BookingCancelled
	b.WaitlistPosition = nil
	b.CancelledAt = &now
	if reason != "" {
		b.CancelReason = &reason
	}
	return nil
}

// CheckIn marks attendance.
func (b *Booking) CheckIn(now time.Time) error {
	if err := Transition(b.Status, BookingCheckedIn); err != nil {
		return err
	}
	b.Status = BookingCheckedIn
	b.CheckedInAt = &now
	return nil
}

// MarkPromotionSkipped stamps a candidate that was passed over at
// promotion but stays in the queue at its current position.
func (b *Booking) MarkPromotionSkipped(now time.Time) {
	b.PromotionSkippedAt = &now
}

// MarkNoShow records a missed confirmed booking.
func (b *Booking) MarkNoShow() error {
	if err := Transition(b.Status, BookingNoShow); err != nil {
		return err
	}
	b.Status = BookingNoShow
	return nil
}

// Complete closes out a checked-in booking when its session completes.
func (b *Booking) Complete() error {
	if err := Transition(b.Status, BookingCompleted); err != nil {
		return err
	}
	b.Status = BookingCompleted
	return nil
}

// PromotionResolver resolves and applies payment for one waitlist
// candidate.
type PromotionResolver func(*Booking) (PaymentDecision, error)

// SelectPromotion walks waitlisted bookings in position order and picks
// the first candidate whose payment resolves. Candidates failing with
// ErrNoPaymentSource or ErrBalanceNotUsable are collected in passedOver
// and never block the queue; any other resolver error aborts the scan.
// Selection stops at the first success, so later candidates are not
// touched.
func SelectPromotion(waitlist []*Booking, resolve PromotionResolver) (promoted *Booking, decision PaymentDecision, passedOver []*Booking, err error) {
	for _, candidate := range waitlist {
		d, rerr := resolve(candidate)
		if rerr == nil {
			return candidate, d, passedOver, nil
		}
		if !errors.Is(rerr, apperrors.ErrNoPaymentSource) && !errors.Is(rerr, apperrors.ErrBalanceNotUsable) {
			return nil, PaymentDecision{}, nil, rerr
		}
		passedOver = append(passedOver, candidate)
	}
	return nil, PaymentDecision{}, passedOver, nil
}

// RenumberWaitlist rewrites positions to a dense 1..n sequence in the
// given order and returns the bookings whose position changed. Input
// must already be sorted by current position.
func RenumberWaitlist(waitlist []*Booking) []*Booking {
	var changed []*Booking
	for i, b := range waitlist {
		want := i + 1
		if b.WaitlistPosition == nil || *b.WaitlistPosition != want {
			pos := want
			b.WaitlistPosition = &pos
			changed = append(changed, b)
		}
	}
	return changed
}
