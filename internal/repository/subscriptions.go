package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"classfit/internal/database"
	"classfit/internal/models"
)

type SubscriptionRepository struct {
	db *database.DB
}

func NewSubscriptionRepository(db *database.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, org_id, member_id, status, classes_remaining, created_at, updated_at`

func scanSubscription(row interface{ Scan(...interface{}) error }) (*models.Subscription, error) {
	s := &models.Subscription{}
	err := row.Scan(
		&s.ID,
		&s.OrgID,
		&s.MemberID,
		&s.Status,
		&s.ClassesRemaining,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetActiveByMember returns the member's active plan, or nil when the
// member has none. Members without a plan can still book with packs or
// drop-in charges.
func (r *SubscriptionRepository) GetActiveByMember(ctx context.Context, orgID, memberID uuid.UUID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE org_id = $1 AND member_id = $2 AND status = 'ACTIVE'
		ORDER BY created_at DESC
		LIMIT 1`

	return scanSubscription(r.db.QueryRowContext(ctx, query, orgID, memberID))
}

// GetForUpdate locks the plan row before its allowance is deducted or
// restored.
func (r *SubscriptionRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, orgID, id uuid.UUID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE id = $1 AND org_id = $2
		FOR UPDATE`

	return scanSubscription(tx.QueryRowContext(ctx, query, id, orgID))
}

func (r *SubscriptionRepository) Save(ctx context.Context, tx *sql.Tx, sub *models.Subscription) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET classes_remaining = $1, updated_at = NOW() WHERE id = $2`,
		sub.ClassesRemaining, sub.ID,
	)
	return err
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, org_id, member_id, status, classes_remaining)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		sub.ID,
		sub.OrgID,
		sub.MemberID,
		sub.Status,
		sub.ClassesRemaining,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
}
