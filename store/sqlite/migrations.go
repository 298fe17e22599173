package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"

	// Registers the "sqlite" migration executor used by migrate.NewExecutorFor.
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
)

// Migrations is the grove migration group for the placement store (SQLite).
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
    is_shadow           INTEGER NOT NULL DEFAULT 0,
    metadata            TEXT NOT NULL DEFAULT '{}',
    created_at          TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    updated_at          TIMESTAMP NOT NULL DEFAULT (datetime('now'))
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
    current_price_amount     INTEGER CHECK (current_price_amount >= 0),
    current_price_currency   TEXT NOT NULL DEFAULT '',
    derived_price_amount     INTEGER CHECK (derived_price_amount >= 0),
    derived_price_currency   TEXT NOT NULL DEFAULT '',
    price_calculation_method TEXT NOT NULL DEFAULT '',
    price_calculated_at      TIMESTAMP,
    override_offering_id     TEXT,
    override_reason          TEXT NOT NULL DEFAULT '',
    metadata                 TEXT NOT NULL DEFAULT '{}',
    created_at               TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    updated_at               TIMESTAMP NOT NULL DEFAULT (datetime('now'))
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
    base_price_amount   INTEGER CHECK (base_price_amount >= 0),
    base_price_currency TEXT NOT NULL DEFAULT '',
    turnaround_days     INTEGER NOT NULL DEFAULT 0,
    min_words           INTEGER NOT NULL DEFAULT 0,
    max_words           INTEGER NOT NULL DEFAULT 0,
    availability        TEXT NOT NULL DEFAULT 'available',
    is_active           INTEGER NOT NULL DEFAULT 1,
    metadata            TEXT NOT NULL DEFAULT '{}',
    created_at          TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    updated_at          TIMESTAMP NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_placement_offerings_publisher ON placement_offerings (publisher_id);

CREATE TABLE IF NOT EXISTS placement_offering_relationships (
    id                    TEXT PRIMARY KEY,
    publisher_id          TEXT NOT NULL REFERENCES placement_publishers (id),
    offering_id           TEXT REFERENCES placement_offerings (id),
    website_id            TEXT NOT NULL REFERENCES placement_websites (id),
    is_primary            INTEGER NOT NULL DEFAULT 0,
    is_active             INTEGER NOT NULL DEFAULT 1,
    type                  TEXT NOT NULL DEFAULT 'owner',
    verification_status   TEXT NOT NULL DEFAULT 'claimed',
    priority_rank         INTEGER NOT NULL DEFAULT 0,
    is_preferred          INTEGER NOT NULL DEFAULT 0,
    custom_price_amount   INTEGER CHECK (custom_price_amount >= 0),
    custom_price_currency TEXT NOT NULL DEFAULT '',
    custom_terms          TEXT NOT NULL DEFAULT '',
    notes                 TEXT NOT NULL DEFAULT '',
    created_at            TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    updated_at            TIMESTAMP NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_placement_rel_website ON placement_offering_relationships (website_id);
CREATE INDEX IF NOT EXISTS idx_placement_rel_publisher ON placement_offering_relationships (publisher_id);
CREATE INDEX IF NOT EXISTS idx_placement_rel_offering ON placement_offering_relationships (offering_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_placement_rel_verified_owner
    ON placement_offering_relationships (publisher_id, website_id)
    WHERE type = 'owner' AND verification_status = 'verified' AND is_active = 1;
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
    conditions        TEXT NOT NULL DEFAULT '{}',
    actions           TEXT NOT NULL DEFAULT '{}',
    priority          INTEGER NOT NULL DEFAULT 0,
    is_cumulative     INTEGER NOT NULL DEFAULT 0,
    auto_apply        INTEGER NOT NULL DEFAULT 1,
    requires_approval INTEGER NOT NULL DEFAULT 0,
    is_active         INTEGER NOT NULL DEFAULT 1,
    created_at        TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    updated_at        TIMESTAMP NOT NULL DEFAULT (datetime('now'))
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
    estimated_price_amount   INTEGER CHECK (estimated_price_amount >= 0),
    estimated_price_currency TEXT NOT NULL DEFAULT '',
    approved_price_amount    INTEGER CHECK (approved_price_amount >= 0),
    approved_price_currency  TEXT NOT NULL DEFAULT '',
    wholesale_price_amount   INTEGER CHECK (wholesale_price_amount >= 0),
    wholesale_price_currency TEXT NOT NULL DEFAULT '',
    final_price_amount       INTEGER CHECK (final_price_amount >= 0),
    final_price_currency     TEXT NOT NULL DEFAULT '',
    approved_by              TEXT NOT NULL DEFAULT '',
    approved_at              TIMESTAMP,
    publisher_accepted_at    TIMESTAMP,
    delivery_url             TEXT NOT NULL DEFAULT '',
    delivered_at             TIMESTAMP,
    completed_at             TIMESTAMP,
    cancelled_at             TIMESTAMP,
    cancellation_reason      TEXT NOT NULL DEFAULT '',
    exception_reason         TEXT NOT NULL DEFAULT '',
    version                  INTEGER NOT NULL DEFAULT 1,
    metadata                 TEXT NOT NULL DEFAULT '{}',
    created_at               TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    updated_at               TIMESTAMP NOT NULL DEFAULT (datetime('now'))
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
    previous_value TEXT,
    new_value      TEXT,
    actor          TEXT NOT NULL DEFAULT '',
    reason         TEXT NOT NULL DEFAULT '',
    batch_id       TEXT,
    timestamp      TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    sequence       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_placement_changes_li ON placement_line_item_changes (line_item_id, timestamp, sequence);
CREATE INDEX IF NOT EXISTS idx_placement_changes_website ON placement_line_item_changes (website_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_placement_changes_batch ON placement_line_item_changes (batch_id);

CREATE TRIGGER IF NOT EXISTS placement_changes_no_update
BEFORE UPDATE ON placement_line_item_changes
BEGIN
    SELECT RAISE(ABORT, 'placement_line_item_changes is append-only');
END;

CREATE TRIGGER IF NOT EXISTS placement_changes_no_delete
BEFORE DELETE ON placement_line_item_changes
BEGIN
    SELECT RAISE(ABORT, 'placement_line_item_changes is append-only');
END;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS placement_line_item_changes`)
				return err
			},
		},
	)
}
