package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createGymClassesTable,
		createSessionsTable,
		createBookingsTable,
		createClassPacksTable,
		createPackAllocationsTable,
		createCreditBalancesTable,
		createCategoryAllocationsTable,
		createSubscriptionsTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createGymClassesTable = `
CREATE TABLE IF NOT EXISTS gym_classes (
    id UUID PRIMARY KEY,
    org_id UUID NOT NULL,
    name VARCHAR(255) NOT NULL,
    class_type VARCHAR(50) NOT NULL DEFAULT 'GROUP_FITNESS',
    category_id UUID,
    max_capacity INTEGER NOT NULL DEFAULT 20,
    waitlist_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    max_waitlist_size INTEGER NOT NULL DEFAULT 5,
    pricing_model VARCHAR(30) NOT NULL DEFAULT 'INCLUDED_IN_MEMBERSHIP',
    deducts_from_plan BOOLEAN NOT NULL DEFAULT TRUE,
    drop_in_price_cents BIGINT,
    cancellation_deadline_hours INTEGER NOT NULL DEFAULT 2,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (max_capacity > 0),
    CHECK (pricing_model IN ('INCLUDED_IN_MEMBERSHIP', 'PAY_PER_ENTRY', 'CLASS_PACK_ONLY', 'HYBRID'))
);`

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS class_sessions (
    id UUID PRIMARY KEY,
    org_id UUID NOT NULL,
    class_id UUID NOT NULL REFERENCES gym_classes(id),
    location_id UUID NOT NULL,
    trainer_id UUID,
    starts_at TIMESTAMPTZ NOT NULL,
    ends_at TIMESTAMPTZ NOT NULL,
    max_capacity INTEGER NOT NULL,
    current_bookings INTEGER NOT NULL DEFAULT 0,
    waitlist_count INTEGER NOT NULL DEFAULT 0,
    checked_in_count INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'SCHEDULED',
    halted BOOLEAN NOT NULL DEFAULT FALSE,
    cancel_reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('SCHEDULED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED')),
    CHECK (current_bookings >= 0 AND current_bookings <= max_capacity),
    CHECK (waitlist_count >= 0)
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY,
    org_id UUID NOT NULL,
    session_id UUID NOT NULL REFERENCES class_sessions(id),
    member_id UUID NOT NULL,
    subscription_id UUID,
    status VARCHAR(20) NOT NULL,
    waitlist_position INTEGER,
    payment_source VARCHAR(30),
    credit_balance_id UUID,
    category_id UUID,
    class_deducted BOOLEAN NOT NULL DEFAULT FALSE,
    promotion_skipped_at TIMESTAMPTZ,
    booked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    checked_in_at TIMESTAMPTZ,
    cancelled_at TIMESTAMPTZ,
    promoted_at TIMESTAMPTZ,
    cancel_reason TEXT,

    CHECK (status IN ('CONFIRMED', 'WAITLISTED', 'CHECKED_IN', 'NO_SHOW', 'COMPLETED', 'CANCELLED')),
    CHECK ((status = 'WAITLISTED') = (waitlist_position IS NOT NULL)),
    CHECK (waitlist_position IS NULL OR waitlist_position > 0)
);`

const createClassPacksTable = `
CREATE TABLE IF NOT EXISTS class_packs (
    id UUID PRIMARY KEY,
    org_id UUID NOT NULL,
    name VARCHAR(255) NOT NULL,
    class_count INTEGER NOT NULL,
    validity_days INTEGER,
    allocation_mode VARCHAR(20) NOT NULL DEFAULT 'FLAT',
    class_type_restrictions TEXT[] NOT NULL DEFAULT '{}',
    class_id_restrictions UUID[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (class_count > 0),
    CHECK (allocation_mode IN ('FLAT', 'PER_CATEGORY'))
);`

const createPackAllocationsTable = `
CREATE TABLE IF NOT EXISTS class_pack_allocations (
    pack_id UUID NOT NULL REFERENCES class_packs(id) ON DELETE CASCADE,
    category_id UUID NOT NULL,
    credits INTEGER NOT NULL,

    PRIMARY KEY (pack_id, category_id),
    CHECK (credits > 0)
);`

const createCreditBalancesTable = `
CREATE TABLE IF NOT EXISTS credit_balances (
    id UUID PRIMARY KEY,
    org_id UUID NOT NULL,
    member_id UUID NOT NULL,
    pack_id UUID NOT NULL REFERENCES class_packs(id),
    order_id UUID,
    credits_purchased INTEGER NOT NULL,
    credits_remaining INTEGER NOT NULL,
    expires_at TIMESTAMPTZ,
    status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('ACTIVE', 'DEPLETED', 'EXPIRED', 'CANCELLED')),
    CHECK (credits_remaining >= 0 AND credits_remaining <= credits_purchased)
);`

const createCategoryAllocationsTable = `
CREATE TABLE IF NOT EXISTS balance_category_allocations (
    id UUID PRIMARY KEY,
    balance_id UUID NOT NULL REFERENCES credit_balances(id) ON DELETE CASCADE,
    category_id UUID NOT NULL,
    credits_allocated INTEGER NOT NULL,
    credits_remaining INTEGER NOT NULL,

    UNIQUE (balance_id, category_id),
    CHECK (credits_remaining >= 0 AND credits_remaining <= credits_allocated)
);`

const createSubscriptionsTable = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id UUID PRIMARY KEY,
    org_id UUID NOT NULL,
    member_id UUID NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    classes_remaining INTEGER,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createIndexes = `
CREATE INDEX IF NOT EXISTS sessions_org_starts_at_idx ON class_sessions (org_id, starts_at);
CREATE INDEX IF NOT EXISTS bookings_session_status_idx ON bookings (session_id, status);
CREATE INDEX IF NOT EXISTS bookings_member_idx ON bookings (org_id, member_id);
CREATE UNIQUE INDEX IF NOT EXISTS bookings_one_active_per_member_session
    ON bookings (session_id, member_id)
    WHERE status IN ('CONFIRMED', 'WAITLISTED', 'CHECKED_IN');
CREATE UNIQUE INDEX IF NOT EXISTS bookings_waitlist_position_unique
    ON bookings (session_id, waitlist_position)
    WHERE status = 'WAITLISTED';
CREATE INDEX IF NOT EXISTS balances_member_status_idx ON credit_balances (org_id, member_id, status);
CREATE INDEX IF NOT EXISTS subscriptions_member_idx ON subscriptions (org_id, member_id, status);`
