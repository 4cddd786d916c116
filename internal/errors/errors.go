package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Capacity errors. Recoverable, surfaced to the caller, never retried
// automatically.
var (
	ErrSessionNotBookable = errors.New("session is not bookable")
	ErrWaitlistFull       = errors.New("session waitlist is full")
	ErrNoSeatToRelease    = errors.New("no booked seat to release")
	ErrNoWaitlistEntry    = errors.New("no waitlist entry to release")
)

// Payment errors. Recoverable by the caller choosing another source or
// purchasing credits.
var (
	ErrNoPaymentSource  = errors.New("no payment source available")
	ErrBalanceNotUsable = errors.New("credit balance cannot be used")
)

// Concurrency errors. Transient, safe to retry with the same
// member+session pair.
var ErrBookingTimeout = errors.New("timed out waiting for booking lock")

// ErrSessionHalted means a consistency violation was detected earlier and
// the session is blocked from further mutation until reconciled.
var ErrSessionHalted = errors.New("session is halted pending reconciliation")

var ErrNotFound = errors.New("not found")

// InvalidTransitionError reports an illegal booking state transition,
// naming current and attempted state.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid booking transition: %s -> %s", e.From, e.To)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}

// ConsistencyError reports a detected invariant breach (counters out of
// sync with booking rows). Fatal for the affected session: the caller
// must halt it pending manual reconciliation.
type ConsistencyError struct {
	SessionID uuid.UUID
	Detail    string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("session %s consistency violation: %s", e.SessionID, e.Detail)
}

// IsConsistency reports whether err is a ConsistencyError.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
