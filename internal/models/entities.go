package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a scheduled class session.
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "SCHEDULED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionCancelled  SessionStatus = "CANCELLED"
)

// BookingStatus is the lifecycle state of a member's booking.
type BookingStatus string

const (
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingWaitlisted BookingStatus = "WAITLISTED"
	BookingCheckedIn  BookingStatus = "CHECKED_IN"
	BookingNoShow     BookingStatus = "NO_SHOW"
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
)

// ActiveBookingStatuses are the states that hold a seat or waitlist slot.
// At most one booking per (member, session) pair may be in one of them.
var ActiveBookingStatuses = []BookingStatus{BookingConfirmed, BookingWaitlisted, BookingCheckedIn}

// PricingModel says how a class can be paid for.
type PricingModel string

const (
	PricingIncludedInMembership PricingModel = "INCLUDED_IN_MEMBERSHIP"
	PricingPayPerEntry          PricingModel = "PAY_PER_ENTRY"
	PricingClassPackOnly        PricingModel = "CLASS_PACK_ONLY"
	PricingHybrid               PricingModel = "HYBRID"
)

// PaymentSource is the entitlement that funded one booking.
type PaymentSource string

const (
	SourceMembership    PaymentSource = "MEMBERSHIP_INCLUDED"
	SourceClassPack     PaymentSource = "CLASS_PACK"
	SourcePayPerEntry   PaymentSource = "PAY_PER_ENTRY"
	SourceComplimentary PaymentSource = "COMPLIMENTARY"
)

// BalanceStatus is the lifecycle state of a class-pack credit balance.
type BalanceStatus string

const (
	BalanceActive    BalanceStatus = "ACTIVE"
	BalanceDepleted  BalanceStatus = "DEPLETED"
	BalanceExpired   BalanceStatus = "EXPIRED"
	BalanceCancelled BalanceStatus = "CANCELLED"
)

// AllocationMode says how a class pack's credits are split.
type AllocationMode string

const (
	AllocationFlat        AllocationMode = "FLAT"
	AllocationPerCategory AllocationMode = "PER_CATEGORY"
)

// GymClass is the template sessions are created from. Only the fields
// the booking engine reads are modeled; class administration is a
// separate concern.
type GymClass struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	OrgID             uuid.UUID    `json:"org_id" db:"org_id"`
	Name              string       `json:"name" db:"name"`
	ClassType         string       `json:"class_type" db:"class_type"`
	CategoryID        *uuid.UUID   `json:"category_id" db:"category_id"`
	MaxCapacity       int          `json:"max_capacity" db:"max_capacity"`
	WaitlistEnabled   bool         `json:"waitlist_enabled" db:"waitlist_enabled"`
	MaxWaitlistSize   int          `json:"max_waitlist_size" db:"max_waitlist_size"`
	PricingModel      PricingModel `json:"pricing_model" db:"pricing_model"`
	DeductsFromPlan   bool         `json:"deducts_from_plan" db:"deducts_from_plan"`
	DropInPriceCents  *int64       `json:"drop_in_price_cents" db:"drop_in_price_cents"`
	CancelDeadlineHrs int          `json:"cancellation_deadline_hours" db:"cancellation_deadline_hours"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// AcceptsMembership reports whether membership allowance can pay for
// this class.
func (c *GymClass) AcceptsMembership() bool {
	return c.PricingModel == PricingIncludedInMembership || c.PricingModel == PricingHybrid
}

// AcceptsClassPack reports whether class-pack credits can pay for this
// class.
func (c *GymClass) AcceptsClassPack() bool {
	return c.PricingModel == PricingClassPackOnly || c.PricingModel == PricingHybrid
}

// AcceptsPayPerEntry reports whether a one-off charge can pay for this
// class.
func (c *GymClass) AcceptsPayPerEntry() bool {
	return c.PricingModel == PricingPayPerEntry || c.PricingModel == PricingHybrid
}

// ClassSession is one scheduled occurrence of a class. The session owns
// its seat, waitlist and check-in counters exclusively; nothing outside
// this package mutates them directly.
type ClassSession struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	OrgID           uuid.UUID     `json:"org_id" db:"org_id"`
	ClassID         uuid.UUID     `json:"class_id" db:"class_id"`
	LocationID      uuid.UUID     `json:"location_id" db:"location_id"`
	TrainerID       *uuid.UUID    `json:"trainer_id" db:"trainer_id"`
	StartsAt        time.Time     `json:"starts_at" db:"starts_at"`
	EndsAt          time.Time     `json:"ends_at" db:"ends_at"`
	MaxCapacity     int           `json:"max_capacity" db:"max_capacity"`
	CurrentBookings int           `json:"current_bookings" db:"current_bookings"`
	WaitlistCount   int           `json:"waitlist_count" db:"waitlist_count"`
	CheckedInCount  int           `json:"checked_in_count" db:"checked_in_count"`
	Status          SessionStatus `json:"status" db:"status"`
	Halted          bool          `json:"halted" db:"halted"`
	CancelReason    *string       `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Booking is one member's claim on a session. Bookings are never
// deleted, only moved to a terminal state.
type Booking struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	OrgID              uuid.UUID      `json:"org_id" db:"org_id"`
	SessionID          uuid.UUID      `json:"session_id" db:"session_id"`
	MemberID           uuid.UUID      `json:"member_id" db:"member_id"`
	SubscriptionID     *uuid.UUID     `json:"subscription_id" db:"subscription_id"`
	Status             BookingStatus  `json:"status" db:"status"`
	WaitlistPosition   *int           `json:"waitlist_position" db:"waitlist_position"`
	PaymentSource      *PaymentSource `json:"payment_source" db:"payment_source"`
	CreditBalanceID    *uuid.UUID     `json:"credit_balance_id" db:"credit_balance_id"`
	CategoryID         *uuid.UUID     `json:"category_id" db:"category_id"`
	ClassDeducted      bool           `json:"class_deducted" db:"class_deducted"`
	PromotionSkippedAt *time.Time     `json:"promotion_skipped_at" db:"promotion_skipped_at"`
	BookedAt           time.Time      `json:"booked_at" db:"booked_at"`
	CheckedInAt        *time.Time     `json:"checked_in_at" db:"checked_in_at"`
	CancelledAt        *time.Time     `json:"cancelled_at" db:"cancelled_at"`
	PromotedAt         *time.Time     `json:"promoted_at" db:"promoted_at"`
	CancelReason       *string        `json:"cancel_reason,omitempty" db:"cancel_reason"`
}

// Active reports whether the booking holds a seat or waitlist slot.
func (b *Booking) Active() bool {
	switch b.Status {
	case BookingConfirmed, BookingWaitlisted, BookingCheckedIn:
		return true
	}
	return false
}

// CategoryAllocation is one category's earmarked sub-pool inside a
// credit balance.
type CategoryAllocation struct {
	ID               uuid.UUID `json:"id" db:"id"`
	BalanceID        uuid.UUID `json:"balance_id" db:"balance_id"`
	CategoryID       uuid.UUID `json:"category_id" db:"category_id"`
	CreditsAllocated int       `json:"credits_allocated" db:"credits_allocated"`
	CreditsRemaining int       `json:"credits_remaining" db:"credits_remaining"`
}

// CreditBalance is a member's pool of class credits from one pack
// purchase or grant. Restriction sets are denormalized from the pack at
// load time so payment resolution needs no extra lookups.
type CreditBalance struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	OrgID            uuid.UUID     `json:"org_id" db:"org_id"`
	MemberID         uuid.UUID     `json:"member_id" db:"member_id"`
	PackID           uuid.UUID     `json:"pack_id" db:"pack_id"`
	OrderID          *uuid.UUID    `json:"order_id" db:"order_id"`
	CreditsPurchased int           `json:"credits_purchased" db:"credits_purchased"`
	CreditsRemaining int           `json:"credits_remaining" db:"credits_remaining"`
	ExpiresAt        *time.Time    `json:"expires_at" db:"expires_at"`
	Status           BalanceStatus `json:"status" db:"status"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`

	// Loaded with the balance, not persisted on this row.
	Allocations           []CategoryAllocation `json:"allocations,omitempty"`
	ClassTypeRestrictions []string             `json:"class_type_restrictions,omitempty"`
	ClassIDRestrictions   []uuid.UUID          `json:"class_id_restrictions,omitempty"`
}

// ClassPack is a purchasable bundle of class credits.
type ClassPack struct {
	ID                    uuid.UUID      `json:"id" db:"id"`
	OrgID                 uuid.UUID      `json:"org_id" db:"org_id"`
	Name                  string         `json:"name" db:"name"`
	ClassCount            int            `json:"class_count" db:"class_count"`
	ValidityDays          *int           `json:"validity_days" db:"validity_days"`
	AllocationMode        AllocationMode `json:"allocation_mode" db:"allocation_mode"`
	ClassTypeRestrictions []string       `json:"class_type_restrictions" db:"class_type_restrictions"`
	ClassIDRestrictions   []uuid.UUID    `json:"class_id_restrictions" db:"class_id_restrictions"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`

	// Loaded with the pack for PER_CATEGORY mode.
	Allocations []PackAllocation `json:"allocations,omitempty"`
}

// PackAllocation is a pack's per-category credit split.
type PackAllocation struct {
	CategoryID uuid.UUID `json:"category_id" db:"category_id"`
	Credits    int       `json:"credits" db:"credits"`
}

// Subscription is the slice of a member's plan the engine reads: whether
// it is active and how many included classes remain. Plan management is
// an external collaborator.
type Subscription struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	OrgID            uuid.UUID  `json:"org_id" db:"org_id"`
	MemberID         uuid.UUID  `json:"member_id" db:"member_id"`
	Status           string     `json:"status" db:"status"`
	ClassesRemaining *int       `json:"classes_remaining" db:"classes_remaining"` // nil = unlimited
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the subscription can fund bookings.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == "ACTIVE"
}

// HasClassesAvailable reports whether the plan allowance has room.
func (s *Subscription) HasClassesAvailable() bool {
	return s.ClassesRemaining == nil || *s.ClassesRemaining > 0
}
