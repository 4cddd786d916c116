package service

import (
	"classfit/internal/cache"
	"classfit/internal/config"
	"classfit/internal/database"
	"classfit/internal/external"
	"classfit/internal/messaging"
	"classfit/internal/repository"
	"classfit/internal/search"
)

type Services struct {
	Bookings *BookingService
	Sessions *SessionService
	Credits  *CreditService
}

func NewServices(db *database.DB, repos *repository.Repositories, natsClient *messaging.NATSClient,
	cacheClient *cache.ValkeyClient, esClient *search.ElasticsearchClient,
	billingClient *external.BillingClient, cfg *config.Config) *Services {

	bookingService := NewBookingService(db, repos, natsClient, cacheClient, billingClient,
		cfg.LockTimeout, cfg.WaitlistSkipPolicy)
	sessionService := NewSessionService(db, repos, bookingService, natsClient, cacheClient, esClient, cfg.LockTimeout)
	creditService := NewCreditService(db, repos, natsClient, cfg.LockTimeout)

	return &Services{
		Bookings: bookingService,
		Sessions: sessionService,
		Credits:  creditService,
	}
}
