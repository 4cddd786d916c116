package models

import (
	apperrors "classfit/internal/errors"
)

// bookingTransitions is the legal transition table for a booking's
// lifecycle. Creation states (CONFIRMED, WAITLISTED) have no "from" row;
// they are produced by NewConfirmedBooking/NewWaitlistedBooking.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingWaitlisted: {BookingConfirmed, BookingCancelled},
	BookingConfirmed:  {BookingCheckedIn, BookingNoShow, BookingCancelled},
	BookingCheckedIn:  {BookingCompleted},
}

// Transition validates from -> to against the transition table and
// returns the error naming both states when the move is illegal. It is
// stateless on purpose: callers mutate the booking only after it
// returns nil.
func Transition(from, to BookingStatus) error {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &apperrors.InvalidTransitionError{From: string(from), To: string(to)}
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to BookingStatus) bool {
	return Transition(from, to) == nil
}
