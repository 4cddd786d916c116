package models

import (
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "classfit/internal/errors"
)

// PaymentDecision is the outcome of payment-source resolution: which
// entitlement pays for one seat. Resolution never applies the debit;
// the booking service does, inside the same transaction that commits
// capacity.
type PaymentDecision struct {
	Source         PaymentSource
	SubscriptionID *uuid.UUID
	BalanceID      *uuid.UUID
	CategoryID     *uuid.UUID
	AmountCents    *int64
}

// ResolvePaymentSource picks exactly one payment source for a member
// booking into class. For HYBRID the precedence is membership allowance,
// then class-pack credit (category-scoped balances matching the class's
// category first, then flat pools, soonest expiry first), then
// pay-per-entry. Non-hybrid models attempt only their designated source.
//
// It is a pure function over already-loaded state so it can be exercised
// without any persistence.
func ResolvePaymentSource(class *GymClass, sub *Subscription, balances []*CreditBalance, now time.Time) (PaymentDecision, error) {
	if class.AcceptsMembership() {
		if sub.IsActive() && (!class.DeductsFromPlan || sub.HasClassesAvailable()) {
			return PaymentDecision{Source: SourceMembership, SubscriptionID: &sub.ID}, nil
		}
	}

	if class.AcceptsClassPack() {
		if pick := pickBalance(class, balances, now); pick != nil {
			d := PaymentDecision{Source: SourceClassPack, BalanceID: &pick.ID}
			if pick.PerCategory() {
				d.CategoryID = class.CategoryID
			}
			return d, nil
		}
	}

	if class.AcceptsPayPerEntry() && class.DropInPriceCents != nil {
		return PaymentDecision{Source: SourcePayPerEntry, AmountCents: class.DropInPriceCents}, nil
	}

	return PaymentDecision{}, apperrors.ErrNoPaymentSource
}

// pickBalance chooses the balance to debit: usable, covering the class,
// category-scoped matches before flat pools, soonest expiry first within
// each group (balances without expiry sort last).
func pickBalance(class *GymClass, balances []*CreditBalance, now time.Time) *CreditBalance {
	var candidates []*CreditBalance
	for _, b := range balances {
		if b.Usable(now) && b.CoversClass(class) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.PerCategory() != cj.PerCategory() {
			return ci.PerCategory()
		}
		return expiresBefore(ci.ExpiresAt, cj.ExpiresAt)
	})
	return candidates[0]
}

func expiresBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}
