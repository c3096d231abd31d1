package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Схема хранилища. Применяется при старте сервиса, идемпотентна.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id            UUID        PRIMARY KEY,
    tenant_id     UUID        NOT NULL,
    type          TEXT        NOT NULL,
    status        TEXT        NOT NULL DEFAULT 'pending',
    payload       JSONB       NOT NULL,
    result        JSONB,
    error_message TEXT        NOT NULL DEFAULT '',
    claimed_by    TEXT        NOT NULL DEFAULT '',
    created_by    TEXT        NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_jobs_tenant_created ON jobs (tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS subscription_states (
    tenant_id                UUID        PRIMARY KEY,
    status                   TEXT        NOT NULL DEFAULT 'incomplete',
    external_subscription_id TEXT        NOT NULL DEFAULT '',
    current_period_end       TIMESTAMPTZ,
    grace_period_until       TIMESTAMPTZ,
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_subscription_states_external
    ON subscription_states (external_subscription_id)
    WHERE external_subscription_id <> '';
`

// EnsureSchema применяет схему хранилища.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
