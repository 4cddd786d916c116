package models

import (
	"time"

	"github.com/google/uuid"
)

// NATS subjects for outbound events. Consumers (notification, audit,
// reporting) subscribe to these; delivery is at-least-once and events
// are published only after the owning transaction commits.
const (
	EventBookingConfirmed  = "booking.confirmed"
	EventBookingWaitlisted = "booking.waitlisted"
	EventBookingCancelled  = "booking.cancelled"
	EventBookingCheckedIn  = "booking.checked_in"
	EventBookingNoShow     = "booking.no_show"
	EventWaitlistPromoted  = "waitlist.promoted"
	EventCreditsDebited    = "credits.debited"
	EventCreditsRefunded   = "credits.refunded"
	EventSessionCompleted  = "session.completed"
	EventSessionCancelled  = "session.cancelled"
)

// OutboundEvent pairs a subject with its payload so services can queue
// events inside a transaction and flush them after commit.
type OutboundEvent struct {
	Subject string
	Payload any
}

type BookingEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	SessionID uuid.UUID `json:"session_id"`
	MemberID  uuid.UUID `json:"member_id"`
	OrgID     uuid.UUID `json:"org_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type PromotionEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	MemberID  uuid.UUID `json:"member_id"`
	SessionID uuid.UUID `json:"session_id"`
	OrgID     uuid.UUID `json:"org_id"`
	Timestamp time.Time `json:"timestamp"`
}

type CreditsEvent struct {
	MemberID  uuid.UUID     `json:"member_id"`
	BalanceID *uuid.UUID    `json:"balance_id,omitempty"`
	Credits   int           `json:"amount_of_credits"`
	Source    PaymentSource `json:"source"`
	OrgID     uuid.UUID     `json:"org_id"`
	Timestamp time.Time     `json:"timestamp"`
}

type SessionEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	OrgID     uuid.UUID `json:"org_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
