// Package storage handles persistence of imported companies in SQLite.
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Blank import: registers the SQLite driver.
)

// Schema is embedded directly in the binary, so no migration files need to
// exist at runtime. Nested sequences (industries, reviews, coordinates) are
// stored as JSON text columns; the record identity is the same
// (company_name, normalized_domain) pair the deduplicator keys on.
const schema = `
CREATE TABLE IF NOT EXISTS companies (
    id                      TEXT NOT NULL,
    company_name            TEXT NOT NULL,
    company_tagline         TEXT NOT NULL DEFAULT '',
    industries              TEXT NOT NULL DEFAULT '[]',
    product_keywords        TEXT NOT NULL DEFAULT '',
    url                     TEXT NOT NULL DEFAULT '',
    email_address           TEXT NOT NULL DEFAULT '',
    amazon_url              TEXT NOT NULL DEFAULT '',
    headquarters_location   TEXT NOT NULL DEFAULT 'Unknown',
    manufacturing_locations TEXT NOT NULL DEFAULT '[]',
    red_flag                BOOLEAN NOT NULL DEFAULT 0,
    reviews                 TEXT NOT NULL DEFAULT '[]',
    notes                   TEXT NOT NULL DEFAULT '',
    contact_info            TEXT,
    hq_lat                  REAL NOT NULL DEFAULT 0,
    hq_lng                  REAL NOT NULL DEFAULT 0,
    manu_lats               TEXT NOT NULL DEFAULT '[]',
    manu_lngs               TEXT NOT NULL DEFAULT '[]',
    session_id              TEXT,
    created_at              DATETIME NOT NULL,
    normalized_domain       TEXT NOT NULL,
    PRIMARY KEY (company_name, normalized_domain)
);

CREATE TABLE IF NOT EXISTS llm_calls (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    page        INTEGER NOT NULL,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL,
    success     BOOLEAN NOT NULL DEFAULT 0,
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_companies_domain ON companies(normalized_domain);
CREATE INDEX IF NOT EXISTS idx_companies_session ON companies(session_id);
`

// NewDatabase opens a SQLite connection and runs migrations. The connection
// is created once at process start and closed on shutdown; no lazy
// singletons hiding in request handlers.
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	// WAL for concurrent reads, busy_timeout to wait out lock contention.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Ping actually opens the connection (Open is lazy in database/sql)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
