// The sweeper runs the engine's timer-driven jobs: closing out sessions
// whose end time has passed (which records no-shows and refunds their
// credits) and expiring past-validity credit balances.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classfit/internal/config"
	"classfit/internal/database"
	"classfit/internal/logger"
	"classfit/internal/messaging"
	"classfit/internal/repository"
	"classfit/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	natsClient, err := messaging.NewNATSClient(messaging.Config{
		URL:       cfg.NATS.URL,
		ClusterID: cfg.NATS.ClusterID,
		ClientID:  cfg.NATS.ClientID + "-sweeper",
	})
	if err != nil {
		log.Warn("NATS unavailable, sweeper events will not be published", "error", err)
		natsClient = nil
	} else {
		defer natsClient.Close()
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, natsClient, nil, nil, nil, cfg)

	log.Info("Sweeper started", "interval", cfg.SweepInterval.String())

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			sweep(services, log)
		case <-quit:
			log.Info("Sweeper shutting down")
			return
		}
	}
}

func sweep(services *service.Services, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now().UTC()

	completed, err := services.Sessions.CompleteDue(ctx, now)
	if err != nil {
		log.Error("Session completion sweep failed", "error", err)
	} else if completed > 0 {
		log.Info("Completed due sessions", "count", completed)
	}

	expired, err := services.Credits.ExpireDue(ctx, now)
	if err != nil {
		log.Error("Balance expiry sweep failed", "error", err)
	} else if expired > 0 {
		log.Info("Expired due balances", "count", expired)
	}
}
