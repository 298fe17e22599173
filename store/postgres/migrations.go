package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"

	// Registers the "pg" migration executor used by migrate.NewExecutorFor.
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
)

// Migrations is the grove migration group for the placement store.
var Migrations = migrate.NewGroup("placement")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_placement_publishers",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS placement_publishers (
    id                  TEXT PRIMARY KEY,
    email               TEXT NOT NULL DEFAULT '',
    name                TEXT NOT NULL DEFAULT '',
    account_status      TEXT NOT NULL DEFAULT 'active',
    verification_status TEXT NOT NULL DEFAULT 'unverified',
    is_shadow           BOOLEAN NOT NULL DEFAULT FALSE,
    metadata            JSONB NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_placement_publishers_email
    ON placement_publishers (LOWER(email)) WHERE email <> '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS placement_publishers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_placement_websites",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS placement_websites (
    id                       TEXT PRIMARY KEY,
    domain                   TEXT NOT NULL,
    current_price_amount     BIGINT CHECK (current_price_amount >= 0),
    current_price_currency   TEXT NOT NULL DEFAULT '',
    derived_price_amount     BIGINT CHECK (derived_price_amount >= 0),
    derived_price_currency   TEXT NOT NULL DEFAULT '',
    price_calculation_method TEXT NOT NULL DEFAULT '',
    price_calculated_at      TIMESTAMPTZ,
    override_offering_id     TEXT,
    override_reason          TEXT NOT NULL DEFAULT '',
    metadata                 JSONB NOT NULL DEFAULT '{}',
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_placement_websites_domain ON placement_websites (domain);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS placement_websites`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_placement_offerings",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS placement_offerings (
    id                  TEXT PRIMARY KEY,
    publisher_id        TEXT NOT NULL REFERENCES placement_publishers (id),
    type                TEXT NOT NULL DEFAULT 'guest_post',
    base_price_amount   BIGINT CHECK (base_price_amount >= 0),
    base_price_currency TEXT NOT NULL DEFAULT '',
    turnaround_days     INT NOT NULL DEFAULT 0,
    min_words           INT NOT NULL DEFAULT 0,
    max_words           INT NOT NULL DEFAULT 0,
    availability        TEXT NOT NULL DEFAULT 'available',
    is_active           BOOLEAN NOT NULL DEFAULT TRUE,
    metadata            JSONB NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_placement_offerings_publisher ON placement_offerings (publisher_id);

CREATE TABLE IF NOT EXISTS placement_offering_relationships (
    id                    TEXT PRIMARY KEY,
    publisher_id          TEXT NOT NULL REFERENCES placement_publishers (id),
    offering_id           TEXT REFERENCES placement_offerings (id),
    website_id            TEXT NOT NULL REFERENCES placement_websites (id),
    is_primary            BOOLEAN NOT NULL DEFAULT FALSE,
    is_active             BOOLEAN NOT NULL DEFAULT TRUE,
    type                  TEXT NOT NULL DEFAULT 'owner',
    verification_status   TEXT NOT NULL DEFAULT 'claimed',
    priority_rank         INT NOT NULL DEFAULT 0,
    is_preferred          BOOLEAN NOT NULL DEFAULT FALSE,
    custom_price_amount   BIGINT CHECK (custom_price_amount >= 0),
    custom_price_currency TEXT NOT NULL DEFAULT '',
    custom_terms          TEXT NOT NULL DEFAULT '',
    notes                 TEXT NOT NULL DEFAULT '',
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_placement_rel_website ON placement_offering_relationships (website_id);
CREATE INDEX IF NOT EXISTS idx_placement_rel_publisher ON placement_offering_relationships (publisher_id);
CREATE INDEX IF NOT EXISTS idx_placement_rel_offering ON placement_offering_relationships (offering_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_placement_rel_verified_owner
    ON placement_offering_relationships (publisher_id, website_id)
    WHERE type = 'owner' AND verification_status = 'verified' AND is_active;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS placement_offering_relationships;
DROP TABLE IF EXISTS placement_offerings;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_placement_pricing_rules",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS placement_pricing_rules (
    id                TEXT PRIMARY KEY,
    offering_id       TEXT NOT NULL REFERENCES placement_offerings (id),
    name              TEXT NOT NULL DEFAULT '',
    type              TEXT NOT NULL DEFAULT 'discount',
    conditions        JSONB NOT NULL DEFAULT '{}',
    actions           JSONB NOT NULL DEFAULT '{}',
    priority          INT NOT NULL DEFAULT 0,
    is_cumulative     BOOLEAN NOT NULL DEFAULT FALSE,
    auto_apply        BOOLEAN NOT NULL DEFAULT TRUE,
    requires_approval BOOLEAN NOT NULL DEFAULT FALSE,
    is_active         BOOLEAN NOT NULL DEFAULT TRUE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_placement_rules_offering ON placement_pricing_rules (offering_id, priority);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS placement_pricing_rules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_placement_line_items",
			Version: "20260101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS placement_line_items (
    id                       TEXT PRIMARY KEY,
    order_id                 TEXT NOT NULL,
    client_id                TEXT NOT NULL DEFAULT '',
    target_page_url          TEXT NOT NULL DEFAULT '',
    anchor_text              TEXT NOT NULL DEFAULT '',
    status                   TEXT NOT NULL DEFAULT 'draft',
    publisher_status         TEXT NOT NULL DEFAULT 'pending',
    client_review_status     TEXT NOT NULL DEFAULT 'pending',
    assigned_domain          TEXT NOT NULL DEFAULT '',
    website_id               TEXT REFERENCES placement_websites (id),
    offering_id              TEXT REFERENCES placement_offerings (id),
    publisher_id             TEXT REFERENCES placement_publishers (id),
    estimated_price_amount   BIGINT CHECK (estimated_price_amount >= 0),
    estimated_price_currency TEXT NOT NULL DEFAULT '',
    approved_price_amount    BIGINT CHECK (approved_price_amount >= 0),
    approved_price_currency  TEXT NOT NULL DEFAULT '',
    wholesale_price_amount   BIGINT CHECK (wholesale_price_amount >= 0),
    wholesale_price_currency TEXT NOT NULL DEFAULT '',
    final_price_amount       BIGINT CHECK (final_price_amount >= 0),
    final_price_currency     TEXT NOT NULL DEFAULT '',
    approved_by              TEXT NOT NULL DEFAULT '',
    approved_at              TIMESTAMPTZ,
    publisher_accepted_at    TIMESTAMPTZ,
    delivery_url             TEXT NOT NULL DEFAULT '',
    delivered_at             TIMESTAMPTZ,
    completed_at             TIMESTAMPTZ,
    cancelled_at             TIMESTAMPTZ,
    cancellation_reason      TEXT NOT NULL DEFAULT '',
    exception_reason         TEXT NOT NULL DEFAULT '',
    version                  BIGINT NOT NULL DEFAULT 1,
    metadata                 JSONB NOT NULL DEFAULT '{}',
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_placement_li_order ON placement_line_items (order_id);
CREATE INDEX IF NOT EXISTS idx_placement_li_website ON placement_line_items (website_id);
CREATE INDEX IF NOT EXISTS idx_placement_li_publisher ON placement_line_items (publisher_id);
CREATE INDEX IF NOT EXISTS idx_placement_li_status ON placement_line_items (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS placement_line_items`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_placement_line_item_changes",
			Version: "20260101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS placement_line_item_changes (
    id             TEXT PRIMARY KEY,
    line_item_id   TEXT,
    order_id       TEXT,
    website_id     TEXT,
    change_type    TEXT NOT NULL,
    previous_value JSONB,
    new_value      JSONB,
    actor          TEXT NOT NULL DEFAULT '',
    reason         TEXT NOT NULL DEFAULT '',
    batch_id       TEXT,
    timestamp      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sequence       BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_placement_changes_li ON placement_line_item_changes (line_item_id, timestamp, sequence);
CREATE INDEX IF NOT EXISTS idx_placement_changes_website ON placement_line_item_changes (website_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_placement_changes_batch ON placement_line_item_changes (batch_id);

CREATE OR REPLACE FUNCTION placement_changes_immutable() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION 'placement_line_item_changes is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_placement_changes_immutable ON placement_line_item_changes;
CREATE TRIGGER trg_placement_changes_immutable
    BEFORE UPDATE OR DELETE ON placement_line_item_changes
    FOR EACH ROW EXECUTE FUNCTION placement_changes_immutable();
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS placement_line_item_changes;
DROP FUNCTION IF EXISTS placement_changes_immutable();
`)
				return err
			},
		},
	)
}
