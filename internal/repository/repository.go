package repository

import (
	"classfit/internal/database"
)

type Repositories struct {
	Classes       *ClassRepository
	Sessions      *SessionRepository
	Bookings      *BookingRepository
	Balances      *BalanceRepository
	Packs         *PackRepository
	Subscriptions *SubscriptionRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Classes:       NewClassRepository(db),
		Sessions:      NewSessionRepository(db),
		Bookings:      NewBookingRepository(db),
		Balances:      NewBalanceRepository(db),
		Packs:         NewPackRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
	}
}
