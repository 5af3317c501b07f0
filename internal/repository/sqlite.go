package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agents (
	id                TEXT PRIMARY KEY,
	handle            TEXT NOT NULL DEFAULT '',
	full_name         TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	company           TEXT NOT NULL DEFAULT '',
	notify_channel_id TEXT NOT NULL DEFAULT '',
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	created_at        DATETIME NOT NULL
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
	commission_amount  REAL,
	commission_paid_at DATETIME,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_client ON leads (client_id, created_at);
CREATE INDEX IF NOT EXISTS idx_leads_agent ON leads (agent_id, status);
`

// NewSQLiteRepository opens (or creates) a SQLite database file. ":memory:"
// gives a throwaway store.
func NewSQLiteRepository(path string) (*Repository, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// one writer; an in-memory database also exists per connection
	db.SetMaxOpenConns(1)

	return newRepository(db, sqliteSchema)
}
