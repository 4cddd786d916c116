package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "classfit/internal/errors"
)

func newFlatBalance(purchased, remaining int) *CreditBalance {
	return &CreditBalance{
		ID:               uuid.New(),
		OrgID:            uuid.New(),
		MemberID:         uuid.New(),
		PackID:           uuid.New(),
		CreditsPurchased: purchased,
		CreditsRemaining: remaining,
		Status:           BalanceActive,
	}
}

func newCategoryBalance(categories map[uuid.UUID]int) *CreditBalance {
	total := 0
	b := newFlatBalance(0, 0)
	for categoryID, credits := range categories {
		total += credits
		b.Allocations = append(b.Allocations, CategoryAllocation{
			ID:               uuid.New(),
			BalanceID:        b.ID,
			CategoryID:       categoryID,
			CreditsAllocated: credits,
			CreditsRemaining: credits,
		})
	}
	b.CreditsPurchased = total
	b.CreditsRemaining = total
	return b
}

func TestFlatDebitAndRefundConservation(t *testing.T) {
	now := time.Now()
	b := newFlatBalance(3, 3)

	require.NoError(t, b.Debit(now, nil))
	require.NoError(t, b.Debit(now, nil))
	assert.Equal(t, 1, b.CreditsRemaining)

	require.NoError(t, b.Refund(nil))
	assert.Equal(t, 2, b.CreditsRemaining)
	assert.Equal(t, BalanceActive, b.Status)
}

func TestDebitDepletesAndRefundReactivates(t *testing.T) {
	now := time.Now()
	b := newFlatBalance(1, 1)

	require.NoError(t, b.Debit(now, nil))
	assert.Equal(t, BalanceDepleted, b.Status)

	assert.ErrorIs(t, b.Debit(now, nil), apperrors.ErrBalanceNotUsable)

	require.NoError(t, b.Refund(nil))
	assert.Equal(t, BalanceActive, b.Status)
	assert.Equal(t, 1, b.CreditsRemaining)
}

func TestDebitExpiredBalanceFails(t *testing.T) {
	now := time.Now()
	expired := now.Add(-time.Hour)
	b := newFlatBalance(5, 5)
	b.ExpiresAt = &expired

	assert.ErrorIs(t, b.Debit(now, nil), apperrors.ErrBalanceNotUsable)
	assert.Equal(t, 5, b.CreditsRemaining)
}

func TestRefundNeverExceedsPurchased(t *testing.T) {
	b := newFlatBalance(2, 2)

	err := b.Refund(nil)
	require.Error(t, err)
	var cerr *apperrors.ConsistencyError
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, 2, b.CreditsRemaining)
}

func TestRefundOnCancelledBalanceFails(t *testing.T) {
	b := newFlatBalance(5, 3)
	b.Status = BalanceCancelled
	assert.ErrorIs(t, b.Refund(nil), apperrors.ErrBalanceNotUsable)
}

func TestRefundOnExpiredBalanceRestoresWithoutReactivating(t *testing.T) {
	b := newFlatBalance(5, 3)
	b.Status = BalanceExpired

	require.NoError(t, b.Refund(nil))
	assert.Equal(t, 4, b.CreditsRemaining)
	assert.Equal(t, BalanceExpired, b.Status)
	assert.False(t, b.Usable(time.Now()))
}

func TestCategoryDebitTracksSubPool(t *testing.T) {
	now := time.Now()
	yoga := uuid.New()
	pilates := uuid.New()
	b := newCategoryBalance(map[uuid.UUID]int{yoga: 2, pilates: 1})

	require.NoError(t, b.Debit(now, &yoga))
	assert.Equal(t, 2, b.CreditsRemaining)
	assert.Equal(t, 1, b.Allocation(yoga).CreditsRemaining)
	assert.Equal(t, 1, b.Allocation(pilates).CreditsRemaining)

	// Pilates pool empties independently of the yoga pool.
	require.NoError(t, b.Debit(now, &pilates))
	assert.ErrorIs(t, b.Debit(now, &pilates), apperrors.ErrBalanceNotUsable)
	assert.Equal(t, 1, b.CreditsRemaining)
}

func TestCategoryRefundGoesToExactPool(t *testing.T) {
	now := time.Now()
	yoga := uuid.New()
	pilates := uuid.New()
	b := newCategoryBalance(map[uuid.UUID]int{yoga: 1, pilates: 1})

	require.NoError(t, b.Debit(now, &yoga))
	require.NoError(t, b.Refund(&yoga))

	assert.Equal(t, 1, b.Allocation(yoga).CreditsRemaining)
	assert.Equal(t, 1, b.Allocation(pilates).CreditsRemaining)
	assert.Equal(t, 2, b.CreditsRemaining)
}

func TestCategoryDebitRequiresCategory(t *testing.T) {
	now := time.Now()
	yoga := uuid.New()
	b := newCategoryBalance(map[uuid.UUID]int{yoga: 2})

	assert.Error(t, b.Debit(now, nil))
	assert.Equal(t, 2, b.CreditsRemaining)
}

func TestCoversClassRestrictions(t *testing.T) {
	yogaClass := &GymClass{ID: uuid.New(), ClassType: "YOGA"}
	spinClass := &GymClass{ID: uuid.New(), ClassType: "SPIN"}

	b := newFlatBalance(5, 5)
	assert.True(t, b.CoversClass(yogaClass), "unrestricted pack covers anything")

	b.ClassTypeRestrictions = []string{"YOGA", "PILATES"}
	assert.True(t, b.CoversClass(yogaClass))
	assert.False(t, b.CoversClass(spinClass))

	b.ClassIDRestrictions = []uuid.UUID{spinClass.ID}
	assert.False(t, b.CoversClass(yogaClass), "id restriction excludes it")
}

func TestCoversClassPerCategory(t *testing.T) {
	yoga := uuid.New()
	b := newCategoryBalance(map[uuid.UUID]int{yoga: 1})

	yogaClass := &GymClass{ID: uuid.New(), ClassType: "YOGA", CategoryID: &yoga}
	uncategorized := &GymClass{ID: uuid.New(), ClassType: "YOGA"}

	assert.True(t, b.CoversClass(yogaClass))
	assert.False(t, b.CoversClass(uncategorized))

	require.NoError(t, b.Debit(time.Now(), &yoga))
	assert.False(t, b.CoversClass(yogaClass), "empty sub-pool no longer covers")
}

func TestNewBalanceFromPack(t *testing.T) {
	now := time.Now()
	orgID := uuid.New()
	memberID := uuid.New()
	yoga := uuid.New()
	pilates := uuid.New()
	validity := 30

	pack := &ClassPack{
		ID:             uuid.New(),
		OrgID:          orgID,
		ClassCount:     8,
		ValidityDays:   &validity,
		AllocationMode: AllocationPerCategory,
		Allocations: []PackAllocation{
			{CategoryID: yoga, Credits: 5},
			{CategoryID: pilates, Credits: 3},
		},
	}

	b := NewBalanceFromPack(orgID, memberID, pack, nil, now)

	assert.Equal(t, 8, b.CreditsPurchased)
	assert.Equal(t, 8, b.CreditsRemaining)
	require.NotNil(t, b.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 30), *b.ExpiresAt)
	require.Len(t, b.Allocations, 2)
	assert.Equal(t, 5, b.Allocation(yoga).CreditsRemaining)
	assert.Equal(t, 3, b.Allocation(pilates).CreditsRemaining)
}
