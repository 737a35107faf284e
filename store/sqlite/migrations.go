package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the authz store (SQLite).
var Migrations = migrate.NewGroup("authz")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_roles",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authz_roles (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    slug            TEXT NOT NULL UNIQUE,
    description     TEXT NOT NULL DEFAULT '',
    is_system       INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_authz_roles_system ON authz_roles (is_system);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authz_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_permissions",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authz_permissions (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    resource        TEXT NOT NULL,
    operation       TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    is_system       INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_authz_permissions_resource ON authz_permissions (resource, operation);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authz_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_role_permissions",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authz_role_permissions (
    role_id         TEXT NOT NULL REFERENCES authz_roles(id) ON DELETE CASCADE,
    permission_id   TEXT NOT NULL REFERENCES authz_permissions(id) ON DELETE CASCADE,

    PRIMARY KEY (role_id, permission_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authz_role_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_global_roles",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authz_global_roles (
    user_id         TEXT PRIMARY KEY,
    role_id         TEXT NOT NULL REFERENCES authz_roles(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_authz_global_roles_role ON authz_global_roles (role_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authz_global_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_assignments",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authz_assignments (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    retreat_id      TEXT NOT NULL,
    role_id         TEXT NOT NULL,
    status          TEXT NOT NULL,
    invited_by      TEXT NOT NULL DEFAULT '',
    invited_at      TEXT NOT NULL DEFAULT (datetime('now')),
    expires_at      TEXT,
    overrides       TEXT NOT NULL DEFAULT '[]',
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),

    UNIQUE(user_id, retreat_id)
);

CREATE INDEX IF NOT EXISTS idx_authz_assignments_retreat ON authz_assignments (retreat_id);
CREATE INDEX IF NOT EXISTS idx_authz_assignments_user ON authz_assignments (user_id);
CREATE INDEX IF NOT EXISTS idx_authz_assignments_role ON authz_assignments (role_id);
CREATE INDEX IF NOT EXISTS idx_authz_assignments_expires ON authz_assignments (expires_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authz_assignments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_requests",
			Version: "20250101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authz_requests (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    retreat_id      TEXT NOT NULL,
    role_id         TEXT NOT NULL,
    status          TEXT NOT NULL,
    message         TEXT NOT NULL DEFAULT '',
    resolved_by     TEXT NOT NULL DEFAULT '',
    reason          TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    resolved_at     TEXT
);

CREATE INDEX IF NOT EXISTS idx_authz_requests_retreat ON authz_requests (retreat_id);
CREATE INDEX IF NOT EXISTS idx_authz_requests_user ON authz_requests (user_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_authz_requests_pending
    ON authz_requests (user_id, retreat_id) WHERE status = 'pending';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authz_requests`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_decision_logs",
			Version: "20250101000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authz_decision_logs (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    retreat_id      TEXT NOT NULL DEFAULT '',
    permission      TEXT NOT NULL,
    allowed         INTEGER NOT NULL,
    decision        TEXT NOT NULL,
    reason          TEXT NOT NULL DEFAULT '',
    eval_time_ns    INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_authz_decision_logs_user ON authz_decision_logs (user_id);
CREATE INDEX IF NOT EXISTS idx_authz_decision_logs_retreat ON authz_decision_logs (retreat_id);
CREATE INDEX IF NOT EXISTS idx_authz_decision_logs_created ON authz_decision_logs (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authz_decision_logs`)
				return err
			},
		},
	)
}
