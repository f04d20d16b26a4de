package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"costura-backend/internal/docstore"
	"costura-backend/internal/platform/db"
)

// Store: documents テーブル1枚に文書を JSON で持つ docstore.Store 実装
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ docstore.Store = (*Store)(nil)

func New(conn *sql.DB, d Dialect) *Store {
	return &Store{db: conn, dialect: d, now: func() time.Time { return time.Now().UTC() }}
}

// OpenSQLite: 単一ノード運用・テスト用
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)
	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}
	s := New(conn, SQLite)
	if err := s.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func NewMemory() (*Store, error) {
	return OpenSQLite(context.Background(), ":memory:")
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, ddl := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("migrate documents: %w", err)
		}
	}
	return nil
}

func (s *Store) Close(context.Context) error { return s.db.Close() }

func nullable(key string) any {
	if key == "" {
		return nil
	}
	return key
}

func decodeData(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	return s.get(ctx, s.db, path, "")
}

func (s *Store) get(ctx context.Context, q db.DBTX, path, suffix string) (docstore.Snapshot, error) {
	var id string
	var raw []byte
	err := q.QueryRowContext(ctx, `SELECT doc_id, data FROM documents WHERE path = ?`+suffix, path).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Snapshot{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", path, err)
	}
	data, err := decodeData(raw)
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", path, err)
	}
	return docstore.Snapshot{ID: id, Path: path, Data: data}, nil
}

func (s *Store) Create(ctx context.Context, path string, doc map[string]any, uniqueKey string) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (path, collection, doc_id, unique_key, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		path, collection, id, nullable(uniqueKey), string(raw), now, now)
	if err != nil {
		if s.dialect.IsDuplicate(err) {
			return docstore.ErrAlreadyExists
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, path string, doc map[string]any, uniqueKey string) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		now := s.now()
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE path = ?`+s.dialect.LockSuffix, path).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO documents (path, collection, doc_id, unique_key, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				path, collection, id, nullable(uniqueKey), string(raw), now, now)
		case err == nil:
			_, err = tx.ExecContext(ctx,
				`UPDATE documents SET unique_key = ?, data = ?, updated_at = ? WHERE path = ?`,
				nullable(uniqueKey), string(raw), now, path)
		}
		return err
	})
	if err != nil {
		if s.dialect.IsDuplicate(err) {
			return docstore.ErrAlreadyExists
		}
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// mutate: 行ロックを取って読み、fn で書き換えて保存する
func (s *Store) mutate(ctx context.Context, path string, fn func(data map[string]any) error) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		snap, err := s.get(ctx, tx, path, s.dialect.LockSuffix)
		if err != nil {
			return err
		}
		if err := fn(snap.Data); err != nil {
			return err
		}
		raw, err := json.Marshal(snap.Data)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE documents SET data = ?, updated_at = ? WHERE path = ?`, string(raw), s.now(), path)
		return err
	})
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	return s.mutate(ctx, path, func(data map[string]any) error {
		for f, v := range fields {
			docstore.SetField(data, f, v)
		}
		return nil
	})
}

func (s *Store) Increment(ctx context.Context, path string, deltas map[string]decimal.Decimal, set map[string]any) error {
	return s.mutate(ctx, path, func(data map[string]any) error {
		return docstore.ApplyIncrements(data, deltas, set)
	})
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, doc_id, data FROM documents WHERE collection = ? ORDER BY path`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var snaps []docstore.Snapshot
	for rows.Next() {
		var sn docstore.Snapshot
		var raw []byte
		if err := rows.Scan(&sn.Path, &sn.ID, &raw); err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		if sn.Data, err = decodeData(raw); err != nil {
			return nil, fmt.Errorf("query %s: %s: %w", collection, sn.Path, err)
		}
		snaps = append(snaps, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return docstore.Apply(snaps, q), nil
}

func (s *Store) List(ctx context.Context, collection string) ([]docstore.Snapshot, error) {
	return s.Query(ctx, collection, docstore.Query{})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}
