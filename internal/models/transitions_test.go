package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "classfit/internal/errors"
)

func TestTransitionTable(t *testing.T) {
	legal := map[[2]BookingStatus]bool{
		{BookingWaitlisted, BookingConfirmed}: true,
		{BookingWaitlisted, BookingCancelled}: true,
		{BookingConfirmed, BookingCheckedIn}:  true,
		{BookingConfirmed, BookingNoShow}:     true,
		{BookingConfirmed, BookingCancelled}:  true,
		{BookingCheckedIn, BookingCompleted}:  true,
	}

	all := []BookingStatus{
		BookingConfirmed, BookingWaitlisted, BookingCheckedIn,
		BookingNoShow, BookingCompleted, BookingCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			err := Transition(from, to)
			if legal[[2]BookingStatus{from, to}] {
				assert.NoError(t, err, "%s -> %s should be legal", from, to)
			} else {
				assert.Error(t, err, "%s -> %s should be illegal", from, to)
			}
		}
	}
}

func TestTransitionErrorNamesBothStates(t *testing.T) {
	err := Transition(BookingCheckedIn, BookingCancelled)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidTransition(err))
	assert.Contains(t, err.Error(), "CHECKED_IN")
	assert.Contains(t, err.Error(), "CANCELLED")
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []BookingStatus{BookingNoShow, BookingCompleted, BookingCancelled} {
		for _, to := range []BookingStatus{BookingConfirmed, BookingWaitlisted, BookingCheckedIn} {
			assert.False(t, CanTransition(terminal, to), "%s must be terminal", terminal)
		}
	}
}
