package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"classfit/internal/database"
	apperrors "classfit/internal/errors"
	"classfit/internal/models"
)

type PackRepository struct {
	db *database.DB
}

func NewPackRepository(db *database.DB) *PackRepository {
	return &PackRepository{db: db}
}

func (r *PackRepository) Create(ctx context.Context, pack *models.ClassPack) error {
	query := `
		INSERT INTO class_packs (id, org_id, name, class_count, validity_days,
			allocation_mode, class_type_restrictions, class_id_restrictions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		pack.ID,
		pack.OrgID,
		pack.Name,
		pack.ClassCount,
		pack.ValidityDays,
		pack.AllocationMode,
		pq.Array(pack.ClassTypeRestrictions),
		pq.Array(pack.ClassIDRestrictions),
	).Scan(&pack.CreatedAt)
	if err != nil {
		return err
	}

	for _, a := range pack.Allocations {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO class_pack_allocations (pack_id, category_id, credits)
			VALUES ($1, $2, $3)`,
			pack.ID, a.CategoryID, a.Credits,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *PackRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.ClassPack, error) {
	pack := &models.ClassPack{}
	query := `
		SELECT id, org_id, name, class_count, validity_days, allocation_mode,
		       class_type_restrictions, class_id_restrictions, created_at
		FROM class_packs
		WHERE id = $1 AND org_id = $2`

	err := r.db.QueryRowContext(ctx, query, id, orgID).Scan(
		&pack.ID,
		&pack.OrgID,
		&pack.Name,
		&pack.ClassCount,
		&pack.ValidityDays,
		&pack.AllocationMode,
		pq.Array(&pack.ClassTypeRestrictions),
		pq.Array(&pack.ClassIDRestrictions),
		&pack.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, credits FROM class_pack_allocations WHERE pack_id = $1 ORDER BY category_id`,
		pack.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a models.PackAllocation
		if err := rows.Scan(&a.CategoryID, &a.Credits); err != nil {
			return nil, err
		}
		pack.Allocations = append(pack.Allocations, a)
	}

	return pack, rows.Err()
}
