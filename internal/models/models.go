package models

import (
	"time"

	"github.com/google/uuid"
)

// Request/response shapes for the API layer. The API is thin glue; all
// rules live in the service and model layers.

type CreateBookingRequest struct {
	SessionID     uuid.UUID  `json:"session_id" binding:"required"`
	MemberID      uuid.UUID  `json:"member_id" binding:"required"`
	Complimentary bool       `json:"complimentary"`
	BookedBy      *uuid.UUID `json:"booked_by"`
}

type CancelBookingRequest struct {
	BookingID uuid.UUID  `json:"booking_id" binding:"required"`
	Reason    string     `json:"reason"`
	Actor     *uuid.UUID `json:"actor"`
}

type CheckInRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
}

type NoShowRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
}

type SessionActionRequest struct {
	SessionID uuid.UUID `json:"session_id" binding:"required"`
	Reason    string    `json:"reason"`
}

type GrantBalanceRequest struct {
	MemberID uuid.UUID  `json:"member_id" binding:"required"`
	PackID   uuid.UUID  `json:"pack_id" binding:"required"`
	OrderID  *uuid.UUID `json:"order_id"`
}

// ListSessionsQuery carries schedule browse filters.
type ListSessionsQuery struct {
	Query    string
	Date     string
	Page     int
	PageSize int
}

type ListSessionsResponseItem struct {
	ID             uuid.UUID     `json:"id"`
	ClassID        uuid.UUID     `json:"class_id"`
	ClassName      string        `json:"class_name"`
	StartsAt       time.Time     `json:"starts_at"`
	EndsAt         time.Time     `json:"ends_at"`
	Status         SessionStatus `json:"status"`
	SpotsLeft      int           `json:"spots_left"`
	WaitlistOpen   bool          `json:"waitlist_open"`
	WaitlistLength int           `json:"waitlist_length"`
}

type ListSessionsResponse []ListSessionsResponseItem

// BookingOptionsResponse previews the payment methods a member could use
// for a session, without reserving anything.
type BookingOptionsResponse struct {
	SessionID   uuid.UUID          `json:"session_id"`
	MemberID    uuid.UUID          `json:"member_id"`
	CanBook     bool               `json:"can_book"`
	Reason      string             `json:"reason,omitempty"`
	Membership  *MembershipOption  `json:"membership,omitempty"`
	ClassPacks  []ClassPackOption  `json:"class_packs,omitempty"`
	PayPerEntry *PayPerEntryOption `json:"pay_per_entry,omitempty"`
}

type MembershipOption struct {
	Available        bool   `json:"available"`
	ClassesRemaining *int   `json:"classes_remaining,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

type ClassPackOption struct {
	BalanceID        uuid.UUID  `json:"balance_id"`
	CreditsRemaining int        `json:"credits_remaining"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	CategoryScoped   bool       `json:"category_scoped"`
}

type PayPerEntryOption struct {
	Available  bool  `json:"available"`
	PriceCents int64 `json:"price_cents"`
}
