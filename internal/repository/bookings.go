package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"classfit/internal/database"
	apperrors "classfit/internal/errors"
	"classfit/internal/models"
)

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, org_id, session_id, member_id, subscription_id, status,
	waitlist_position, payment_source, credit_balance_id, category_id, class_deducted,
	promotion_skipped_at, booked_at, checked_in_at, cancelled_at, promoted_at, cancel_reason`

func scanBooking(row interface{ Scan(...interface{}) error }) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID,
		&b.OrgID,
		&b.SessionID,
		&b.MemberID,
		&b.SubscriptionID,
		&b.Status,
		&b.WaitlistPosition,
		&b.PaymentSource,
		&b.CreditBalanceID,
		&b.CategoryID,
		&b.ClassDeducted,
		&b.PromotionSkippedAt,
		&b.BookedAt,
		&b.CheckedInAt,
		&b.CancelledAt,
		&b.PromotedAt,
		&b.CancelReason,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BookingRepository) Create(ctx context.Context, tx *sql.Tx, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (id, org_id, session_id, member_id, subscription_id, status,
			waitlist_position, payment_source, credit_balance_id, category_id, class_deducted,
			booked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.ExecContext(ctx, query,
		booking.ID,
		booking.OrgID,
		booking.SessionID,
		booking.MemberID,
		booking.SubscriptionID,
		booking.Status,
		booking.WaitlistPosition,
		booking.PaymentSource,
		booking.CreditBalanceID,
		booking.CategoryID,
		booking.ClassDeducted,
		booking.BookedAt,
	)
	return err
}

func (r *BookingRepository) Update(ctx context.Context, tx *sql.Tx, booking *models.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1, waitlist_position = $2, payment_source = $3, credit_balance_id = $4,
		    category_id = $5, class_deducted = $6, promotion_skipped_at = $7,
		    checked_in_at = $8, cancelled_at = $9, promoted_at = $10, cancel_reason = $11
		WHERE id = $12`

	_, err := tx.ExecContext(ctx, query,
		booking.Status,
		booking.WaitlistPosition,
		booking.PaymentSource,
		booking.CreditBalanceID,
		booking.CategoryID,
		booking.ClassDeducted,
		booking.PromotionSkippedAt,
		booking.CheckedInAt,
		booking.CancelledAt,
		booking.PromotedAt,
		booking.CancelReason,
		booking.ID,
	)
	return err
}

func (r *BookingRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND org_id = $2`
	return scanBooking(r.db.QueryRowContext(ctx, query, id, orgID))
}

// GetForUpdate locks the booking row. Callers must already hold the
// session lock.
func (r *BookingRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, orgID, id uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND org_id = $2 FOR UPDATE`
	return scanBooking(tx.QueryRowContext(ctx, query, id, orgID))
}

// GetActive returns the member's live booking on a session, if any.
// A partial unique index guarantees at most one exists.
func (r *BookingRepository) GetActive(ctx context.Context, tx *sql.Tx, sessionID, memberID uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE session_id = $1 AND member_id = $2
		  AND status IN ('CONFIRMED', 'WAITLISTED', 'CHECKED_IN')`

	b, err := scanBooking(tx.QueryRowContext(ctx, query, sessionID, memberID))
	if err == apperrors.ErrNotFound {
		return nil, nil
	}
	return b, err
}

// ListWaitlistedForUpdate locks the session's waitlist in FIFO order so
// the promoter can pick and renumber under one lock.
func (r *BookingRepository) ListWaitlistedForUpdate(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE session_id = $1 AND status = 'WAITLISTED'
		ORDER BY waitlist_position ASC
		FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// ListBySession returns every booking for a session, confirmed first,
// then waitlist in position order.
func (r *BookingRepository) ListBySession(ctx context.Context, orgID, sessionID uuid.UUID) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE session_id = $1 AND org_id = $2
		ORDER BY status ASC, waitlist_position ASC NULLS FIRST, booked_at ASC`

	return r.list(ctx, query, sessionID, orgID)
}

func (r *BookingRepository) ListByMember(ctx context.Context, orgID, memberID uuid.UUID) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE member_id = $1 AND org_id = $2
		ORDER BY booked_at DESC`

	return r.list(ctx, query, memberID, orgID)
}

// ListActiveBySessionForUpdate locks every live booking on a session,
// for bulk cancellation when the session itself is cancelled.
func (r *BookingRepository) ListActiveBySessionForUpdate(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE session_id = $1 AND status IN ('CONFIRMED', 'WAITLISTED', 'CHECKED_IN')
		FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// CountByStatus tallies a session's bookings per status, for counter
// consistency checks and reconciliation.
func (r *BookingRepository) CountByStatus(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID) (map[models.BookingStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM bookings WHERE session_id = $1 GROUP BY status`

	var rows *sql.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryContext(ctx, query, sessionID)
	} else {
		rows, err = r.db.QueryContext(ctx, query, sessionID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.BookingStatus]int)
	for rows.Next() {
		var status models.BookingStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}

	return bookings, rows.Err()
}
