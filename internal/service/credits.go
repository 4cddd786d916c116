package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"classfit/internal/database"
	"classfit/internal/logger"
	"classfit/internal/messaging"
	"classfit/internal/models"
	"classfit/internal/repository"
)

type CreditService struct {
	db          *database.DB
	repos       *repository.Repositories
	natsClient  *messaging.NATSClient
	lockTimeout time.Duration
}

func NewCreditService(db *database.DB, repos *repository.Repositories,
	natsClient *messaging.NATSClient, lockTimeout time.Duration) *CreditService {
	return &CreditService{
		db:          db,
		repos:       repos,
		natsClient:  natsClient,
		lockTimeout: lockTimeout,
	}
}

// Grant issues a member a credit balance from a pack definition, as
// done after a shop purchase or by staff. Purchase and tax handling
// live in the shop; the engine only materializes the entitlement.
func (s *CreditService) Grant(ctx context.Context, orgID uuid.UUID, req *models.GrantBalanceRequest) (*models.CreditBalance, error) {
	pack, err := s.repos.Packs.GetByID(ctx, orgID, req.PackID)
	if err != nil {
		return nil, err
	}

	if pack.AllocationMode == models.AllocationPerCategory {
		sum := 0
		for _, a := range pack.Allocations {
			sum += a.Credits
		}
		if sum != pack.ClassCount {
			return nil, fmt.Errorf("pack %s category allocations sum to %d, want %d", pack.ID, sum, pack.ClassCount)
		}
	}

	now := time.Now().UTC()
	balance := models.NewBalanceFromPack(orgID, req.MemberID, pack, req.OrderID, now)

	err = s.db.WithTx(ctx, s.lockTimeout, func(tx *sql.Tx) error {
		return s.repos.Balances.Create(ctx, tx, balance)
	})
	if err != nil {
		return nil, err
	}

	logger.WithOrgID(orgID).Info("Granted credit balance",
		"balance_id", balance.ID, "member_id", req.MemberID, "pack_id", pack.ID,
		"credits", balance.CreditsPurchased)

	return balance, nil
}

func (s *CreditService) ListByMember(ctx context.Context, orgID, memberID uuid.UUID) ([]*models.CreditBalance, error) {
	return s.repos.Balances.ListByMember(ctx, orgID, memberID)
}

// ExpireDue flips past-expiry balances to EXPIRED. Called by the
// sweeper; expiry does not touch bookings already funded by the
// balance, and refunds onto an EXPIRED balance still restore the credit
// without making it usable again.
func (s *CreditService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repos.Balances.ListExpiredDue(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, len(due))
	for i, b := range due {
		ids[i] = b.ID
	}

	if err := s.repos.Balances.MarkExpired(ctx, ids); err != nil {
		return 0, err
	}

	logger.Get().Info("Expired credit balances", "count", len(ids))
	return len(ids), nil
}
