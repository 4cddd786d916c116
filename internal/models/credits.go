package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "classfit/internal/errors"
)

// Credit ledger. All debits and refunds against a balance go through
// these methods so the invariants hold after every mutation:
// 0 <= creditsRemaining <= creditsPurchased, and when category
// allocations exist their remaining counts sum to creditsRemaining.

// Usable reports whether the balance can fund a booking at the given
// time.
func (b *CreditBalance) Usable(now time.Time) bool {
	if b.Status != BalanceActive {
		return false
	}
	if b.CreditsRemaining <= 0 {
		return false
	}
	if b.ExpiresAt != nil && !now.Before(*b.ExpiresAt) {
		return false
	}
	return true
}

// PerCategory reports whether the balance earmarks credits by category.
func (b *CreditBalance) PerCategory() bool {
	return len(b.Allocations) > 0
}

// Allocation returns the sub-pool for categoryID, or nil.
func (b *CreditBalance) Allocation(categoryID uuid.UUID) *CategoryAllocation {
	for i := range b.Allocations {
		if b.Allocations[i].CategoryID == categoryID {
			return &b.Allocations[i]
		}
	}
	return nil
}

// CoversClass reports whether the pack behind this balance may pay for
// the class: flat packs check the type/id restriction sets, per-category
// packs need a matching category sub-pool with credits left.
func (b *CreditBalance) CoversClass(class *GymClass) bool {
	if b.PerCategory() {
		if class.CategoryID == nil {
			return false
		}
		alloc := b.Allocation(*class.CategoryID)
		return alloc != nil && alloc.CreditsRemaining > 0
	}
	if len(b.ClassIDRestrictions) > 0 {
		found := false
		for _, id := range b.ClassIDRestrictions {
			if id == class.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(b.ClassTypeRestrictions) > 0 {
		found := false
		for _, t := range b.ClassTypeRestrictions {
			if t == class.ClassType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Debit consumes one credit. For per-category balances categoryID picks
// the sub-pool and is required.
func (b *CreditBalance) Debit(now time.Time, categoryID *uuid.UUID) error {
	if !b.Usable(now) {
		return apperrors.ErrBalanceNotUsable
	}
	if b.PerCategory() {
		if categoryID == nil {
			return fmt.Errorf("category is required for a per-category balance: %w", apperrors.ErrBalanceNotUsable)
		}
		alloc := b.Allocation(*categoryID)
		if alloc == nil || alloc.CreditsRemaining <= 0 {
			return apperrors.ErrBalanceNotUsable
		}
		alloc.CreditsRemaining--
	}
	b.CreditsRemaining--
	if b.CreditsRemaining == 0 {
		b.Status = BalanceDepleted
	}
	return b.checkInvariants()
}

// Refund returns one credit to the exact sub-pool it came from,
// re-activating a depleted balance. Callers guard idempotency with the
// booking's classDeducted flag; Refund itself always credits.
func (b *CreditBalance) Refund(categoryID *uuid.UUID) error {
	if b.Status == BalanceCancelled {
		return apperrors.ErrBalanceNotUsable
	}
	if b.CreditsRemaining >= b.CreditsPurchased {
		return &apperrors.ConsistencyError{Detail: fmt.Sprintf("refund would exceed purchased credits on balance %s", b.ID)}
	}
	if b.PerCategory() {
		if categoryID == nil {
			return fmt.Errorf("category is required for a per-category balance: %w", apperrors.ErrBalanceNotUsable)
		}
		alloc := b.Allocation(*categoryID)
		if alloc == nil {
			return apperrors.ErrBalanceNotUsable
		}
		alloc.CreditsRemaining++
	}
	b.CreditsRemaining++
	if b.Status == BalanceDepleted {
		b.Status = BalanceActive
	}
	return b.checkInvariants()
}

func (b *CreditBalance) checkInvariants() error {
	if b.CreditsRemaining < 0 || b.CreditsRemaining > b.CreditsPurchased {
		return &apperrors.ConsistencyError{Detail: fmt.Sprintf("balance %s remaining=%d purchased=%d", b.ID, b.CreditsRemaining, b.CreditsPurchased)}
	}
	if b.PerCategory() {
		sum := 0
		for i := range b.Allocations {
			if b.Allocations[i].CreditsRemaining < 0 {
				return &apperrors.ConsistencyError{Detail: fmt.Sprintf("balance %s negative category allocation", b.ID)}
			}
			sum += b.Allocations[i].CreditsRemaining
		}
		if sum != b.CreditsRemaining {
			return &apperrors.ConsistencyError{Detail: fmt.Sprintf("balance %s category sum=%d remaining=%d", b.ID, sum, b.CreditsRemaining)}
		}
	}
	return nil
}

// NewBalanceFromPack builds a member's balance (and its category
// sub-pools) from a pack definition, as done on purchase or admin grant.
func NewBalanceFromPack(orgID, memberID uuid.UUID, pack *ClassPack, orderID *uuid.UUID, now time.Time) *CreditBalance {
	balance := &CreditBalance{
		ID:               uuid.New(),
		OrgID:            orgID,
		MemberID:         memberID,
		PackID:           pack.ID,
		OrderID:          orderID,
		CreditsPurchased: pack.ClassCount,
		CreditsRemaining: pack.ClassCount,
		Status:           BalanceActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if pack.ValidityDays != nil {
		exp := now.AddDate(0, 0, *pack.ValidityDays)
		balance.ExpiresAt = &exp
	}
	if pack.AllocationMode == AllocationPerCategory {
		for _, pa := range pack.Allocations {
			balance.Allocations = append(balance.Allocations, CategoryAllocation{
				ID:               uuid.New(),
				BalanceID:        balance.ID,
				CategoryID:       pa.CategoryID,
				CreditsAllocated: pa.Credits,
				CreditsRemaining: pa.Credits,
			})
		}
	} else {
		balance.ClassTypeRestrictions = pack.ClassTypeRestrictions
		balance.ClassIDRestrictions = pack.ClassIDRestrictions
	}
	return balance
}
