package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS agents (
	id                TEXT PRIMARY KEY,
	handle            TEXT NOT NULL DEFAULT '',
	full_name         TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	company           TEXT NOT NULL DEFAULT '',
	notify_channel_id TEXT NOT NULL DEFAULT '',
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY,
	client_id          TEXT NOT NULL,
	handle             TEXT NOT NULL DEFAULT '',
	name               TEXT NOT NULL DEFAULT '',
	agent_id           TEXT NOT NULL,
	budget             TEXT NOT NULL DEFAULT '',
	size               TEXT NOT NULL DEFAULT '',
	location           TEXT NOT NULL DEFAULT '',
	rooms              TEXT NOT NULL DEFAULT '',
	readiness          TEXT NOT NULL DEFAULT '',
	contact            TEXT NOT NULL DEFAULT '',
	notes              TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	draft_step         INTEGER NOT NULL DEFAULT 0,
	selected_supplier  TEXT NOT NULL DEFAULT '',
	selected_unit      TEXT NOT NULL DEFAULT '',
	commission_amount  DOUBLE PRECISION,
	commission_paid_at TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_leads_client ON leads (client_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_agent ON leads (agent_id, status);
`

// NewPostgresRepository connects to PostgreSQL and creates the schema
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*Repository, error) {
	// Disable prepared statement caching to avoid "unnamed prepared statement does not exist" errors
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if !strings.Contains(dsn, "?") {
			dsn += "?prefer_simple_protocol=true"
		} else {
			dsn += "&prefer_simple_protocol=true"
		}
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute) // Shorter lifetime to avoid stale connections
	db.SetConnMaxIdleTime(2 * time.Minute) // Close idle connections sooner

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newRepository(db, postgresSchema)
}
