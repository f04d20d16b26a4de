package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"costura-backend/internal/platform/db"
)

const userColumns = `id, username, password_hash, name, role, modality, is_active, total_earnings,
	monthly_production, worked_days, last_attendance_date, created_at, last_sync`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var active int
	var earnings, createdAt, lastSync string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Role, &u.Modality, &active, &earnings,
		&u.MonthlyProduction, &u.WorkedDays, &u.LastAttendanceDate, &createdAt, &lastSync)
	if err != nil {
		return User{}, err
	}
	u.Active = active != 0
	if u.TotalEarnings, err = decimal.NewFromString(earnings); err != nil {
		return User{}, fmt.Errorf("user %s total_earnings: %w", u.ID, err)
	}
	u.CreatedAt, _ = ParseTime(createdAt)
	u.LastSync, _ = ParseTime(lastSync)
	return u, nil
}

func upsertUser(ctx context.Context, q db.DBTX, u User) error {
	if u.LastSync.IsZero() {
		u.LastSync = time.Now()
	}
	_, err := q.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	username = excluded.username,
	password_hash = excluded.password_hash,
	name = excluded.name,
	role = excluded.role,
	modality = excluded.modality,
	is_active = excluded.is_active,
	total_earnings = excluded.total_earnings,
	monthly_production = excluded.monthly_production,
	worked_days = excluded.worked_days,
	last_attendance_date = excluded.last_attendance_date,
	last_sync = excluded.last_sync`,
		u.ID, u.Username, u.PasswordHash, u.Name, u.Role, u.Modality, boolInt(u.Active), u.TotalEarnings.String(),
		u.MonthlyProduction, u.WorkedDays, u.LastAttendanceDate, FormatTime(u.CreatedAt), FormatTime(u.LastSync))
	if isUnique(err) {
		return fmt.Errorf("upsert user %s: %w", u.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, u User) error {
	return upsertUser(ctx, s.db, u)
}

// UpsertUsers: 一括リフレッシュ用（1トランザクション）
func (s *Store) UpsertUsers(ctx context.Context, users []User) error {
	return s.inTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		for _, u := range users {
			if err := upsertUser(ctx, tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return s.getUser(ctx, "username = ?", username)
}

// ListUsers: role が空なら全ロール
func (s *Store) ListUsers(ctx context.Context, role string, activeOnly bool) ([]User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE (? = '' OR role = ?)`
	if activeOnly {
		q += ` AND is_active = 1`
	}
	q += ` ORDER BY name, id`
	rows, err := s.db.QueryContext(ctx, q, role, role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AddUserStats: リモートの increment と同じ加算をローカルにも反映
func (s *Store) AddUserStats(ctx context.Context, id string, earnings decimal.Decimal, production, workedDays int64, lastAttendanceDate string) error {
	return s.inTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		var cur string
		err := tx.QueryRowContext(ctx, `SELECT total_earnings FROM users WHERE id = ?`, id).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		base, err := decimal.NewFromString(cur)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
UPDATE users SET
	total_earnings = ?,
	monthly_production = monthly_production + ?,
	worked_days = worked_days + ?,
	last_attendance_date = CASE WHEN ? = '' THEN last_attendance_date ELSE ? END
WHERE id = ?`,
			base.Add(earnings).String(), production, workedDays, lastAttendanceDate, lastAttendanceDate, id)
		return err
	})
}
