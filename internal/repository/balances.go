package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"classfit/internal/database"
	apperrors "classfit/internal/errors"
	"classfit/internal/models"
)

type BalanceRepository struct {
	db *database.DB
}

func NewBalanceRepository(db *database.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// balanceColumns joins the pack's restriction arrays onto the balance so
// payment resolution gets everything in one query.
const balanceColumns = `b.id, b.org_id, b.member_id, b.pack_id, b.order_id,
	b.credits_purchased, b.credits_remaining, b.expires_at, b.status,
	b.created_at, b.updated_at, p.class_type_restrictions, p.class_id_restrictions`

func scanBalance(row interface{ Scan(...interface{}) error }) (*models.CreditBalance, error) {
	b := &models.CreditBalance{}
	err := row.Scan(
		&b.ID,
		&b.OrgID,
		&b.MemberID,
		&b.PackID,
		&b.OrderID,
		&b.CreditsPurchased,
		&b.CreditsRemaining,
		&b.ExpiresAt,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
		pq.Array(&b.ClassTypeRestrictions),
		pq.Array(&b.ClassIDRestrictions),
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Create persists a freshly granted balance and its category
// allocations inside the caller's transaction.
func (r *BalanceRepository) Create(ctx context.Context, tx *sql.Tx, balance *models.CreditBalance) error {
	query := `
		INSERT INTO credit_balances (id, org_id, member_id, pack_id, order_id,
			credits_purchased, credits_remaining, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := tx.QueryRowContext(ctx, query,
		balance.ID,
		balance.OrgID,
		balance.MemberID,
		balance.PackID,
		balance.OrderID,
		balance.CreditsPurchased,
		balance.CreditsRemaining,
		balance.ExpiresAt,
		balance.Status,
	).Scan(&balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range balance.Allocations {
		a := &balance.Allocations[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO balance_category_allocations (id, balance_id, category_id, credits_allocated, credits_remaining)
			VALUES ($1, $2, $3, $4, $5)`,
			a.ID, a.BalanceID, a.CategoryID, a.CreditsAllocated, a.CreditsRemaining,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetForUpdate locks the balance row and loads its allocations. The
// session lock must already be held.
func (r *BalanceRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, orgID, id uuid.UUID) (*models.CreditBalance, error) {
	query := `SELECT ` + balanceColumns + `
		FROM credit_balances b
		JOIN class_packs p ON p.id = b.pack_id
		WHERE b.id = $1 AND b.org_id = $2
		FOR UPDATE OF b`

	balance, err := scanBalance(tx.QueryRowContext(ctx, query, id, orgID))
	if err != nil {
		return nil, err
	}

	if err := r.loadAllocations(ctx, tx, balance); err != nil {
		return nil, err
	}

	return balance, nil
}

// ListUsableByMember returns the member's balances that could fund a
// booking right now, with allocations loaded. No locks are taken; the
// booking transaction re-locks its chosen balance before debiting.
func (r *BalanceRepository) ListUsableByMember(ctx context.Context, orgID, memberID uuid.UUID, now time.Time) ([]*models.CreditBalance, error) {
	query := `SELECT ` + balanceColumns + `
		FROM credit_balances b
		JOIN class_packs p ON p.id = b.pack_id
		WHERE b.org_id = $1 AND b.member_id = $2
		  AND b.status = 'ACTIVE' AND b.credits_remaining > 0
		  AND (b.expires_at IS NULL OR b.expires_at > $3)
		ORDER BY b.expires_at ASC NULLS LAST, b.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, orgID, memberID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*models.CreditBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, b := range balances {
		if err := r.loadAllocations(ctx, nil, b); err != nil {
			return nil, err
		}
	}

	return balances, nil
}

// Save writes back credit counters, status and allocation sub-pools
// mutated while the balance row was locked.
func (r *BalanceRepository) Save(ctx context.Context, tx *sql.Tx, balance *models.CreditBalance) error {
	query := `
		UPDATE credit_balances
		SET credits_remaining = $1, status = $2, updated_at = NOW()
		WHERE id = $3`

	if _, err := tx.ExecContext(ctx, query, balance.CreditsRemaining, balance.Status, balance.ID); err != nil {
		return err
	}

	for i := range balance.Allocations {
		a := &balance.Allocations[i]
		_, err := tx.ExecContext(ctx,
			`UPDATE balance_category_allocations SET credits_remaining = $1 WHERE id = $2`,
			a.CreditsRemaining, a.ID,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// ListExpiredDue finds ACTIVE balances whose expiry has passed, for the
// sweeper.
func (r *BalanceRepository) ListExpiredDue(ctx context.Context, now time.Time) ([]*models.CreditBalance, error) {
	query := `SELECT ` + balanceColumns + `
		FROM credit_balances b
		JOIN class_packs p ON p.id = b.pack_id
		WHERE b.status = 'ACTIVE' AND b.expires_at IS NOT NULL AND b.expires_at <= $1
		LIMIT 500`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*models.CreditBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}

	return balances, rows.Err()
}

func (r *BalanceRepository) MarkExpired(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE credit_balances SET status = 'EXPIRED', updated_at = NOW() WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	return err
}

func (r *BalanceRepository) ListByMember(ctx context.Context, orgID, memberID uuid.UUID) ([]*models.CreditBalance, error) {
	query := `SELECT ` + balanceColumns + `
		FROM credit_balances b
		JOIN class_packs p ON p.id = b.pack_id
		WHERE b.org_id = $1 AND b.member_id = $2
		ORDER BY b.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, orgID, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*models.CreditBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, b := range balances {
		if err := r.loadAllocations(ctx, nil, b); err != nil {
			return nil, err
		}
	}

	return balances, nil
}

func (r *BalanceRepository) loadAllocations(ctx context.Context, tx *sql.Tx, balance *models.CreditBalance) error {
	query := `
		SELECT id, balance_id, category_id, credits_allocated, credits_remaining
		FROM balance_category_allocations
		WHERE balance_id = $1
		ORDER BY category_id`

	var rows *sql.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryContext(ctx, query, balance.ID)
	} else {
		rows, err = r.db.QueryContext(ctx, query, balance.ID)
	}
	if err != nil {
		return err
	}
	defer rows.Close()

	balance.Allocations = nil
	for rows.Next() {
		var a models.CategoryAllocation
		if err := rows.Scan(&a.ID, &a.BalanceID, &a.CategoryID, &a.CreditsAllocated, &a.CreditsRemaining); err != nil {
			return err
		}
		balance.Allocations = append(balance.Allocations, a)
	}

	return rows.Err()
}
