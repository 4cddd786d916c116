package models

import (
	"fmt"

	apperrors "classfit/internal/errors"
)

// Capacity tracker. These are the only operations allowed to touch a
// session's counters. They enforce the numeric invariants
// (0 <= currentBookings <= maxCapacity, waitlistCount >= 0) and nothing
// else; who may book is the booking service's problem.

// Bookable reports whether booking-related counters may mutate.
func (s *ClassSession) Bookable() bool {
	return s.Status == SessionScheduled && !s.Halted
}

// HasAvailableSpots reports whether a seat is free.
func (s *ClassSession) HasAvailableSpots() bool {
	return s.CurrentBookings < s.MaxCapacity
}

// ReserveSeat claims one seat. Fails with ErrSessionNotBookable when the
// session is not SCHEDULED, is halted, or is already full.
func (s *ClassSession) ReserveSeat() error {
	if s.Halted {
		return apperrors.ErrSessionHalted
	}
	if s.Status != SessionScheduled || !s.HasAvailableSpots() {
		return apperrors.ErrSessionNotBookable
	}
	s.CurrentBookings++
	return nil
}

// ReleaseSeat frees one seat. Fails with ErrNoSeatToRelease when no seat
// is held.
func (s *ClassSession) ReleaseSeat() error {
	if s.Halted {
		return apperrors.ErrSessionHalted
	}
	if s.CurrentBookings == 0 {
		return apperrors.ErrNoSeatToRelease
	}
	s.CurrentBookings--
	return nil
}

// JoinWaitlist claims one waitlist slot. The session must be SCHEDULED
// with all seats taken, and the waitlist must have room.
func (s *ClassSession) JoinWaitlist(maxWaitlistSize int) error {
	if s.Halted {
		return apperrors.ErrSessionHalted
	}
	if s.Status != SessionScheduled || s.HasAvailableSpots() {
		return apperrors.ErrSessionNotBookable
	}
	if s.WaitlistCount >= maxWaitlistSize {
		return apperrors.ErrWaitlistFull
	}
	s.WaitlistCount++
	return nil
}

// LeaveWaitlist frees one waitlist slot.
func (s *ClassSession) LeaveWaitlist() error {
	if s.Halted {
		return apperrors.ErrSessionHalted
	}
	if s.WaitlistCount == 0 {
		return apperrors.ErrNoWaitlistEntry
	}
	s.WaitlistCount--
	return nil
}

// RecordCheckIn counts an attendance. No upper bound beyond the booking
// count; the booking state machine already guarantees the member holds a
// CONFIRMED booking.
func (s *ClassSession) RecordCheckIn() error {
	if s.Halted {
		return apperrors.ErrSessionHalted
	}
	if s.Status != SessionScheduled && s.Status != SessionInProgress {
		return apperrors.ErrSessionNotBookable
	}
	s.CheckedInCount++
	return nil
}

// SeatCount returns how many bookings hold a seat given per-status row
// tallies. A NO_SHOW keeps the seat it was debited for; recording one
// never releases capacity.
func SeatCount(counts map[BookingStatus]int) int {
	return counts[BookingConfirmed] + counts[BookingCheckedIn] + counts[BookingNoShow]
}

// CheckCounters defensively validates the counters against the actual
// booking rows. A non-nil result means the session must be halted.
func (s *ClassSession) CheckCounters(seats, waitlisted int) error {
	if s.CurrentBookings != seats {
		return &apperrors.ConsistencyError{
			SessionID: s.ID,
			Detail:    fmt.Sprintf("current_bookings=%d but %d seat-holding rows", s.CurrentBookings, seats),
		}
	}
	if s.WaitlistCount != waitlisted {
		return &apperrors.ConsistencyError{
			SessionID: s.ID,
			Detail:    fmt.Sprintf("waitlist_count=%d but %d waitlisted rows", s.WaitlistCount, waitlisted),
		}
	}
	if s.CurrentBookings < 0 || s.CurrentBookings > s.MaxCapacity || s.WaitlistCount < 0 {
		return &apperrors.ConsistencyError{
			SessionID: s.ID,
			Detail:    fmt.Sprintf("counters out of range: bookings=%d/%d waitlist=%d", s.CurrentBookings, s.MaxCapacity, s.WaitlistCount),
		}
	}
	return nil
}
