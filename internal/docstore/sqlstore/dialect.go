package sqlstore

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"costura-backend/internal/platform/db"
)

// Dialect: MySQL と SQLite の差分だけを持つ
type Dialect struct {
	Name        string
	Schema      []string
	LockSuffix  string // 行ロック（SELECT ... FOR UPDATE）
	IsDuplicate func(error) bool
}

var MySQL = Dialect{
	Name: "mysql",
	Schema: []string{`
CREATE TABLE IF NOT EXISTS documents (
  path        VARCHAR(255) NOT NULL,
  collection  VARCHAR(255) NOT NULL,
  doc_id      VARCHAR(64)  NOT NULL,
  unique_key  VARCHAR(255) NULL,
  data        LONGTEXT     NOT NULL, -- 数値の桁を保つため JSON 型にしない
  created_at  DATETIME(6)  NOT NULL,
  updated_at  DATETIME(6)  NOT NULL,
  PRIMARY KEY (path),
  UNIQUE KEY uq_documents_unique_key (unique_key),
  KEY idx_documents_collection (collection)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	LockSuffix:  " FOR UPDATE",
	IsDuplicate: db.IsDuplicateKey,
}

var SQLite = Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
  path        TEXT PRIMARY KEY,
  collection  TEXT NOT NULL,
  doc_id      TEXT NOT NULL,
  unique_key  TEXT UNIQUE,
  data        TEXT NOT NULL,
  created_at  TEXT NOT NULL,
  updated_at  TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection)`,
	},
	IsDuplicate: isSQLiteDuplicate,
}

func isSQLiteDuplicate(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return false
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
