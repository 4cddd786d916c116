// Seed loads a demo org into the database: a few classes across pricing
// models, a week of sessions, class packs and a member with a plan and
// credits. Intended for local development.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/uuid"

	"classfit/internal/config"
	"classfit/internal/database"
	"classfit/internal/logger"
	"classfit/internal/models"
	"classfit/internal/repository"
)

func main() {
	var orgFlag string
	flag.StringVar(&orgFlag, "org", "", "org UUID to seed (random when empty)")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")
	log := logger.Get()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	orgID := uuid.New()
	if orgFlag != "" {
		orgID, err = uuid.Parse(orgFlag)
		if err != nil {
			logger.Fatal("Invalid org UUID", "org", orgFlag)
		}
	}

	ctx := context.Background()
	repos := repository.NewRepositories(db)

	yogaCategory := uuid.New()
	pilatesCategory := uuid.New()
	location := uuid.New()

	price := int64(1500)
	classes := []*models.GymClass{
		{
			ID: uuid.New(), OrgID: orgID, Name: "Morning Yoga", ClassType: "YOGA",
			CategoryID: &yogaCategory, MaxCapacity: 12, WaitlistEnabled: true, MaxWaitlistSize: 5,
			PricingModel: models.PricingHybrid, DeductsFromPlan: true,
			DropInPriceCents: &price, CancelDeadlineHrs: 2,
		},
		{
			ID: uuid.New(), OrgID: orgID, Name: "Reformer Pilates", ClassType: "PILATES",
			CategoryID: &pilatesCategory, MaxCapacity: 8, WaitlistEnabled: true, MaxWaitlistSize: 3,
			PricingModel: models.PricingClassPackOnly, DeductsFromPlan: false,
			CancelDeadlineHrs: 4,
		},
		{
			ID: uuid.New(), OrgID: orgID, Name: "Spin Express", ClassType: "SPIN",
			MaxCapacity: 20, WaitlistEnabled: false, MaxWaitlistSize: 0,
			PricingModel: models.PricingPayPerEntry, DeductsFromPlan: false,
			DropInPriceCents: &price, CancelDeadlineHrs: 1,
		},
	}

	for _, class := range classes {
		if err := repos.Classes.Create(ctx, class); err != nil {
			logger.Fatal("Failed to create class", "name", class.Name, "error", err)
		}
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	sessions := 0
	for d := 1; d <= 7; d++ {
		for i, class := range classes {
			start := day.AddDate(0, 0, d).Add(time.Duration(8+2*i) * time.Hour)
			session := &models.ClassSession{
				ID:          uuid.New(),
				OrgID:       orgID,
				ClassID:     class.ID,
				LocationID:  location,
				StartsAt:    start,
				EndsAt:      start.Add(time.Hour),
				MaxCapacity: class.MaxCapacity,
				Status:      models.SessionScheduled,
			}
			if err := repos.Sessions.Create(ctx, session); err != nil {
				logger.Fatal("Failed to create session", "error", err)
			}
			sessions++
		}
	}

	validity := 90
	flatPack := &models.ClassPack{
		ID: uuid.New(), OrgID: orgID, Name: "10-Class Pack", ClassCount: 10,
		ValidityDays: &validity, AllocationMode: models.AllocationFlat,
		ClassTypeRestrictions: []string{"YOGA", "PILATES"},
	}
	splitPack := &models.ClassPack{
		ID: uuid.New(), OrgID: orgID, Name: "Yoga + Pilates Split", ClassCount: 8,
		ValidityDays: &validity, AllocationMode: models.AllocationPerCategory,
		Allocations: []models.PackAllocation{
			{CategoryID: yogaCategory, Credits: 5},
			{CategoryID: pilatesCategory, Credits: 3},
		},
	}
	for _, pack := range []*models.ClassPack{flatPack, splitPack} {
		if err := repos.Packs.Create(ctx, pack); err != nil {
			logger.Fatal("Failed to create pack", "name", pack.Name, "error", err)
		}
	}

	memberID := uuid.New()
	remaining := 8
	sub := &models.Subscription{
		ID: uuid.New(), OrgID: orgID, MemberID: memberID,
		Status: "ACTIVE", ClassesRemaining: &remaining,
	}
	if err := repos.Subscriptions.Create(ctx, sub); err != nil {
		logger.Fatal("Failed to create subscription", "error", err)
	}

	log.Info("Seed complete",
		"org_id", orgID,
		"member_id", memberID,
		"classes", len(classes),
		"sessions", sessions,
		"packs", 2,
		"flat_pack_id", flatPack.ID,
		"split_pack_id", splitPack.ID)
}
