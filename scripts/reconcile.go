// Reconcile repairs sessions frozen by a counter consistency
// violation: it recomputes each halted session's counters from its
// booking rows, writes them back, and lifts the halt. Run it manually
// after investigating why the counters drifted.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"

	"classfit/internal/config"
	"classfit/internal/database"
	"classfit/internal/logger"
	"classfit/internal/models"
	"classfit/internal/repository"
)

func main() {
	var dryRun bool
	flag.BoolVar(&dryRun, "dry-run", false, "report drift without writing anything")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")
	log := logger.Get()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	repos := repository.NewRepositories(db)
	ctx := context.Background()

	halted, err := repos.Sessions.ListHalted(ctx)
	if err != nil {
		logger.Fatal("Failed to list halted sessions", "error", err)
	}
	if len(halted) == 0 {
		log.Info("No halted sessions, nothing to reconcile")
		return
	}

	repaired := 0
	for _, session := range halted {
		if err := reconcile(ctx, db, repos, &session, dryRun, log); err != nil {
			log.Error("Reconciliation failed", "session_id", session.ID, "error", err)
			continue
		}
		repaired++
	}

	log.Info("Reconciliation finished", "halted", len(halted), "repaired", repaired, "dry_run", dryRun)
}

func reconcile(ctx context.Context, db *database.DB, repos *repository.Repositories,
	session *models.ClassSession, dryRun bool, log *slog.Logger) error {
	return db.WithTx(ctx, 0, func(tx *sql.Tx) error {
		locked, err := repos.Sessions.GetForUpdate(ctx, tx, session.OrgID, session.ID)
		if err != nil {
			return err
		}

		counts, err := repos.Bookings.CountByStatus(ctx, tx, locked.ID)
		if err != nil {
			return err
		}

		seats := models.SeatCount(counts)
		waitlisted := counts[models.BookingWaitlisted]

		log.Info("Session drift",
			"session_id", locked.ID,
			"current_bookings", locked.CurrentBookings, "seat_rows", seats,
			"waitlist_count", locked.WaitlistCount, "waitlisted_rows", waitlisted)

		if dryRun {
			return nil
		}

		locked.CurrentBookings = seats
		locked.WaitlistCount = waitlisted
		locked.Halted = false
		return repos.Sessions.SaveCounters(ctx, tx, locked)
	})
}
