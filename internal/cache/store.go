package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"costura-backend/internal/platform/db"
)

const currentVersion = 1

var (
	ErrNotFound  = errors.New("cache: not found")
	ErrDuplicate = errors.New("cache: duplicate")
)

// Store: 端末側のローカルキャッシュ（SQLite）
type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// 書き込みは1本に直列化
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: conn}
	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return s, nil
}

func NewMemory() (*Store, error) {
	return Open(context.Background(), ":memory:")
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}
	if version < 1 {
		if _, err := s.db.ExecContext(ctx, schemaV1); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS users (
	id                   TEXT PRIMARY KEY,
	username             TEXT NOT NULL UNIQUE,
	password_hash        TEXT NOT NULL,
	name                 TEXT NOT NULL,
	role                 TEXT NOT NULL,
	modality             TEXT NOT NULL,
	is_active            INTEGER NOT NULL DEFAULT 1,
	total_earnings       TEXT NOT NULL DEFAULT '0',
	monthly_production   INTEGER NOT NULL DEFAULT 0,
	worked_days          INTEGER NOT NULL DEFAULT 0,
	last_attendance_date TEXT NOT NULL DEFAULT '',
	created_at           TEXT NOT NULL,
	last_sync            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS operations (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	payment_per_unit TEXT NOT NULL,
	is_active        INTEGER NOT NULL DEFAULT 1,
	created_at       TEXT NOT NULL,
	last_sync        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS production_records (
	id               TEXT PRIMARY KEY,
	worker_id        TEXT NOT NULL,
	operation_id     TEXT NOT NULL,
	operation_name   TEXT NOT NULL,
	quantity         INTEGER NOT NULL,
	payment_per_unit TEXT NOT NULL,
	total_payment    TEXT NOT NULL,
	date             TEXT NOT NULL,
	year_month       TEXT NOT NULL,
	is_synced        INTEGER NOT NULL DEFAULT 0,
	stats_pending    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_production_worker_date ON production_records(worker_id, date);
CREATE INDEX IF NOT EXISTS idx_production_year_month  ON production_records(year_month);

CREATE TABLE IF NOT EXISTS attendance_records (
	id            TEXT PRIMARY KEY,
	worker_id     TEXT NOT NULL,
	worker_name   TEXT NOT NULL,
	date          TEXT NOT NULL,
	entry_time    TEXT NOT NULL,
	exit_time     TEXT,
	status        TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	year_month    TEXT NOT NULL,
	is_synced     INTEGER NOT NULL DEFAULT 0,
	stats_pending INTEGER NOT NULL DEFAULT 0,
	UNIQUE(worker_id, date)
);
CREATE INDEX IF NOT EXISTS idx_attendance_year_month ON attendance_records(year_month);

CREATE TABLE IF NOT EXISTS machines (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	machine_number   TEXT NOT NULL,
	type             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	last_maintenance TEXT
);

CREATE TABLE IF NOT EXISTS machine_history (
	id             TEXT PRIMARY KEY,
	machine_id     TEXT NOT NULL REFERENCES machines(id),
	machine_name   TEXT NOT NULL,
	machine_number TEXT NOT NULL,
	type           TEXT NOT NULL,
	description    TEXT NOT NULL,
	solved_by      TEXT NOT NULL DEFAULT '',
	solution       TEXT NOT NULL DEFAULT '',
	date           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_machine_history_machine ON machine_history(machine_id, date);
`

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUnique(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// inTx: 単一接続なので fn 内で s.db を使わないこと
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	return db.RunInTx(ctx, s.db, nil, fn)
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
