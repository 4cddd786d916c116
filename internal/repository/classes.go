package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"classfit/internal/database"
	apperrors "classfit/internal/errors"
	"classfit/internal/models"
)

type ClassRepository struct {
	db *database.DB
}

func NewClassRepository(db *database.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = `id, org_id, name, class_type, category_id, max_capacity,
	waitlist_enabled, max_waitlist_size, pricing_model, deducts_from_plan,
	drop_in_price_cents, cancellation_deadline_hours, created_at, updated_at`

func (r *ClassRepository) Create(ctx context.Context, class *models.GymClass) error {
	query := `
		INSERT INTO gym_classes (id, org_id, name, class_type, category_id, max_capacity,
			waitlist_enabled, max_waitlist_size, pricing_model, deducts_from_plan,
			drop_in_price_cents, cancellation_deadline_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		class.ID,
		class.OrgID,
		class.Name,
		class.ClassType,
		class.CategoryID,
		class.MaxCapacity,
		class.WaitlistEnabled,
		class.MaxWaitlistSize,
		class.PricingModel,
		class.DeductsFromPlan,
		class.DropInPriceCents,
		class.CancelDeadlineHrs,
	).Scan(&class.CreatedAt, &class.UpdatedAt)
}

func (r *ClassRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.GymClass, error) {
	class := &models.GymClass{}
	query := `SELECT ` + classColumns + ` FROM gym_classes WHERE id = $1 AND org_id = $2`

	err := r.db.QueryRowContext(ctx, query, id, orgID).Scan(
		&class.ID,
		&class.OrgID,
		&class.Name,
		&class.ClassType,
		&class.CategoryID,
		&class.MaxCapacity,
		&class.WaitlistEnabled,
		&class.MaxWaitlistSize,
		&class.PricingModel,
		&class.DeductsFromPlan,
		&class.DropInPriceCents,
		&class.CancelDeadlineHrs,
		&class.CreatedAt,
		&class.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return class, nil
}
