package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection. WAL mode and a busy timeout
// are enabled through DSN pragmas so a poll cycle and a control-surface call
// can share the file without spurious lock errors.
func New(path string) (*DB, error) {
	dsn := path
	if !strings.Contains(path, "_pragma=") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &DB{db}, nil
}

// RunMigrations creates the schema. Safe to run on every start.
func (db *DB) RunMigrations() error {
	migration := `
-- Negotiations (scheduling sessions), stored as JSON documents
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL CHECK(status IN ('negotiating', 'confirmed', 'escalated')),
    data TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

-- Deadline-bounded rooms, stored as JSON documents
CREATE TABLE IF NOT EXISTS rooms (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL CHECK(status IN ('open', 'locked', 'finalized')),
    deadline TEXT NOT NULL,
    data TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status);

-- Store-first durable inbox
CREATE TABLE IF NOT EXISTS pending_messages (
    id TEXT PRIMARY KEY,
    sender TEXT NOT NULL,
    subject TEXT NOT NULL,
    body TEXT NOT NULL,
    payload BLOB,
    correlation TEXT,
    processed INTEGER NOT NULL DEFAULT 0,
    arrived_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_correlation ON pending_messages(correlation, processed);
CREATE INDEX IF NOT EXISTS idx_pending_arrived ON pending_messages(arrived_at);

-- Contact directory
CREATE TABLE IF NOT EXISTS contacts (
    address TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    role TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(name);
`
	if _, err := db.Exec(migration); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
