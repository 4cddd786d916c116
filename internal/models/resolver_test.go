package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "classfit/internal/errors"
)

func hybridClass() *GymClass {
	price := int64(1500)
	return &GymClass{
		ID:               uuid.New(),
		PricingModel:     PricingHybrid,
		DeductsFromPlan:  true,
		DropInPriceCents: &price,
		ClassType:        "YOGA",
	}
}

func activeSub(remaining int) *Subscription {
	r := remaining
	return &Subscription{ID: uuid.New(), Status: "ACTIVE", ClassesRemaining: &r}
}

func TestHybridPrefersMembership(t *testing.T) {
	class := hybridClass()
	sub := activeSub(3)
	balance := newFlatBalance(5, 5)

	d, err := ResolvePaymentSource(class, sub, []*CreditBalance{balance}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SourceMembership, d.Source)
	require.NotNil(t, d.SubscriptionID)
	assert.Equal(t, sub.ID, *d.SubscriptionID)
}

func TestHybridFallsThroughToClassPack(t *testing.T) {
	class := hybridClass()
	sub := activeSub(0)
	balance := newFlatBalance(5, 5)

	d, err := ResolvePaymentSource(class, sub, []*CreditBalance{balance}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SourceClassPack, d.Source)
	require.NotNil(t, d.BalanceID)
	assert.Equal(t, balance.ID, *d.BalanceID)
}

func TestHybridFallsThroughToPayPerEntry(t *testing.T) {
	class := hybridClass()

	d, err := ResolvePaymentSource(class, nil, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SourcePayPerEntry, d.Source)
	require.NotNil(t, d.AmountCents)
	assert.Equal(t, int64(1500), *d.AmountCents)
}

func TestUnlimitedPlanAlwaysHasAllowance(t *testing.T) {
	class := hybridClass()
	sub := &Subscription{ID: uuid.New(), Status: "ACTIVE"} // nil ClassesRemaining

	d, err := ResolvePaymentSource(class, sub, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SourceMembership, d.Source)
}

func TestNonDeductingClassIgnoresAllowance(t *testing.T) {
	class := hybridClass()
	class.DeductsFromPlan = false
	sub := activeSub(0)

	d, err := ResolvePaymentSource(class, sub, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SourceMembership, d.Source)
}

func TestClassPackOnlyNeverFallsBack(t *testing.T) {
	price := int64(2000)
	class := &GymClass{ID: uuid.New(), PricingModel: PricingClassPackOnly, DropInPriceCents: &price, ClassType: "PILATES"}
	sub := activeSub(10)

	_, err := ResolvePaymentSource(class, sub, nil, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNoPaymentSource)
}

func TestPayPerEntryWithoutPriceFails(t *testing.T) {
	class := &GymClass{ID: uuid.New(), PricingModel: PricingPayPerEntry}

	_, err := ResolvePaymentSource(class, nil, nil, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNoPaymentSource)
}

func TestCategoryScopedBalancePreferredOverFlat(t *testing.T) {
	yoga := uuid.New()
	class := hybridClass()
	class.CategoryID = &yoga

	soon := time.Now().Add(24 * time.Hour)
	flat := newFlatBalance(5, 5)
	flat.ExpiresAt = &soon
	scoped := newCategoryBalance(map[uuid.UUID]int{yoga: 2})

	d, err := ResolvePaymentSource(class, nil, []*CreditBalance{flat, scoped}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SourceClassPack, d.Source)
	assert.Equal(t, scoped.ID, *d.BalanceID)
	require.NotNil(t, d.CategoryID)
	assert.Equal(t, yoga, *d.CategoryID)
}

func TestSoonestExpiryWinsAndNilExpirySortsLast(t *testing.T) {
	class := hybridClass()
	now := time.Now()
	near := now.Add(24 * time.Hour)
	far := now.Add(30 * 24 * time.Hour)

	never := newFlatBalance(5, 5)
	late := newFlatBalance(5, 5)
	late.ExpiresAt = &far
	early := newFlatBalance(5, 5)
	early.ExpiresAt = &near

	d, err := ResolvePaymentSource(class, nil, []*CreditBalance{never, late, early}, now)
	require.NoError(t, err)
	assert.Equal(t, early.ID, *d.BalanceID)
}

func TestEmptyCategoryPoolBlocksDespiteFlatTotal(t *testing.T) {
	// A per-category balance with zero pilates credits left cannot pay
	// for a pilates class even though its overall total is nonzero.
	yoga := uuid.New()
	pilates := uuid.New()
	class := &GymClass{ID: uuid.New(), PricingModel: PricingClassPackOnly, ClassType: "PILATES", CategoryID: &pilates}

	b := newCategoryBalance(map[uuid.UUID]int{yoga: 2, pilates: 1})
	require.NoError(t, b.Debit(time.Now(), &pilates))

	_, err := ResolvePaymentSource(class, nil, []*CreditBalance{b}, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNoPaymentSource)
}

func TestTypeRestrictedBalanceSkipped(t *testing.T) {
	class := hybridClass()
	class.ClassType = "SPIN"

	restricted := newFlatBalance(5, 5)
	restricted.ClassTypeRestrictions = []string{"YOGA"}
	open := newFlatBalance(5, 5)

	d, err := ResolvePaymentSource(class, nil, []*CreditBalance{restricted, open}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, open.ID, *d.BalanceID)
}
