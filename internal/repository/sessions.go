package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"classfit/internal/database"
	apperrors "classfit/internal/errors"
	"classfit/internal/models"
)

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, org_id, class_id, location_id, trainer_id, starts_at, ends_at,
	max_capacity, current_bookings, waitlist_count, checked_in_count, status, halted,
	cancel_reason, created_at, updated_at`

func scanSession(row interface{ Scan(...interface{}) error }) (*models.ClassSession, error) {
	s := &models.ClassSession{}
	err := row.Scan(
		&s.ID,
		&s.OrgID,
		&s.ClassID,
		&s.LocationID,
		&s.TrainerID,
		&s.StartsAt,
		&s.EndsAt,
		&s.MaxCapacity,
		&s.CurrentBookings,
		&s.WaitlistCount,
		&s.CheckedInCount,
		&s.Status,
		&s.Halted,
		&s.CancelReason,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *models.ClassSession) error {
	query := `
		INSERT INTO class_sessions (id, org_id, class_id, location_id, trainer_id,
			starts_at, ends_at, max_capacity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		session.ID,
		session.OrgID,
		session.ClassID,
		session.LocationID,
		session.TrainerID,
		session.StartsAt,
		session.EndsAt,
		session.MaxCapacity,
		session.Status,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
}

func (r *SessionRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.ClassSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = $1 AND org_id = $2`
	return scanSession(r.db.QueryRowContext(ctx, query, id, orgID))
}

// GetForUpdate locks the session row for the rest of the transaction.
// Every booking mutation locks the session before any balance row, so
// two transactions can never lock the same pair in opposite order.
func (r *SessionRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, orgID, id uuid.UUID) (*models.ClassSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = $1 AND org_id = $2 FOR UPDATE`
	return scanSession(tx.QueryRowContext(ctx, query, id, orgID))
}

// SaveCounters writes back the counter and status fields mutated on the
// in-memory session while its row was locked.
func (r *SessionRepository) SaveCounters(ctx context.Context, tx *sql.Tx, session *models.ClassSession) error {
	query := `
		UPDATE class_sessions
		SET current_bookings = $1, waitlist_count = $2, checked_in_count = $3,
		    status = $4, halted = $5, cancel_reason = $6, updated_at = NOW()
		WHERE id = $7`

	_, err := tx.ExecContext(ctx, query,
		session.CurrentBookings,
		session.WaitlistCount,
		session.CheckedInCount,
		session.Status,
		session.Halted,
		session.CancelReason,
		session.ID,
	)
	return err
}

// Halt freezes a session outside any caller transaction. Used when a
// consistency check fails and the surrounding transaction rolls back.
func (r *SessionRepository) Halt(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE class_sessions SET halted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// ListItem is a session joined with the class fields the schedule needs.
type ListItem struct {
	Session   models.ClassSession
	ClassName string
	ClassType string
	Waitlist  bool
	MaxWait   int
}

// List returns the org's schedule page straight from Postgres. The
// cache and search layers sit in front of this for read traffic.
func (r *SessionRepository) List(ctx context.Context, orgID uuid.UUID, date string, page, pageSize int) ([]ListItem, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * pageSize
	}

	query := `
		SELECT s.id, s.org_id, s.class_id, s.location_id, s.trainer_id, s.starts_at, s.ends_at,
		       s.max_capacity, s.current_bookings, s.waitlist_count, s.checked_in_count,
		       s.status, s.halted, s.cancel_reason, s.created_at, s.updated_at,
		       c.name, c.class_type, c.waitlist_enabled, c.max_waitlist_size
		FROM class_sessions s
		JOIN gym_classes c ON c.id = s.class_id
		WHERE s.org_id = $1
		  AND ($2 = '' OR s.starts_at::date = $2::date)
		ORDER BY s.starts_at ASC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, orgID, date, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		s := &it.Session
		err := rows.Scan(
			&s.ID, &s.OrgID, &s.ClassID, &s.LocationID, &s.TrainerID, &s.StartsAt, &s.EndsAt,
			&s.MaxCapacity, &s.CurrentBookings, &s.WaitlistCount, &s.CheckedInCount,
			&s.Status, &s.Halted, &s.CancelReason, &s.CreatedAt, &s.UpdatedAt,
			&it.ClassName, &it.ClassType, &it.Waitlist, &it.MaxWait,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

// ListDueForCompletion finds sessions whose end time has passed but are
// still open, for the sweeper to close out.
func (r *SessionRepository) ListDueForCompletion(ctx context.Context, now time.Time) ([]models.ClassSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM class_sessions
		WHERE status IN ('SCHEDULED', 'IN_PROGRESS') AND halted = FALSE AND ends_at < $1
		ORDER BY ends_at ASC
		LIMIT 100`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.ClassSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}

	return sessions, rows.Err()
}

// ListHalted returns frozen sessions for the reconciliation tool.
func (r *SessionRepository) ListHalted(ctx context.Context) ([]models.ClassSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE halted = TRUE`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.ClassSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}

	return sessions, rows.Err()
}
