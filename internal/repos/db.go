package repos

import (
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// driverFor picks lib/pq for postgres URLs and the pure-Go sqlite driver otherwise.
func driverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

func OpenDB(dsn string) (*sqlx.DB, error) {
	driver := driverFor(dsn)
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" && dsn == ":memory:" {
		// every pooled connection would get its own empty in-memory database
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	log.Printf("[db] view state store ready (driver=%s)", driver)
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
-- What each browser session currently sees: cursor, rendered rows, add form, feedback.
CREATE TABLE IF NOT EXISTS view_sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  page INTEGER NOT NULL DEFAULT 1 CHECK (page >= 1),
  rows_json TEXT NOT NULL DEFAULT '',
  form_open INTEGER NOT NULL DEFAULT 0,
  draft_json TEXT NOT NULL DEFAULT '',
  banner_message TEXT NOT NULL DEFAULT '',
  banner_kind TEXT NOT NULL DEFAULT '',
  banner_expires_at TEXT NOT NULL DEFAULT '',
  alert TEXT NOT NULL DEFAULT '',
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen TEXT
);
CREATE INDEX IF NOT EXISTS idx_view_sessions_last_seen ON view_sessions(last_seen);
`
	_, err := db.Exec(schema)
	return err
}
