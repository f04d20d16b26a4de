package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"costura-backend/internal/platform/db"
)

const machineColumns = `id, name, machine_number, type, description, status, created_at, last_maintenance`

func scanMachine(row interface{ Scan(...any) error }) (Machine, error) {
	var m Machine
	var createdAt string
	var last sql.NullString
	if err := row.Scan(&m.ID, &m.Name, &m.Number, &m.Type, &m.Description, &m.Status, &createdAt, &last); err != nil {
		return Machine{}, err
	}
	m.CreatedAt, _ = ParseTime(createdAt)
	if last.Valid {
		if t, err := ParseTime(last.String); err == nil {
			m.LastMaintenance = &t
		}
	}
	return m, nil
}

func formatOptTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

func (s *Store) InsertMachine(ctx context.Context, m Machine) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO machines (`+machineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Number, m.Type, m.Description, m.Status, FormatTime(m.CreatedAt), formatOptTime(m.LastMaintenance))
	if isUnique(err) {
		return fmt.Errorf("insert machine %s: %w", m.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert machine %s: %w", m.ID, err)
	}
	return nil
}

func updateMachine(ctx context.Context, q db.DBTX, m Machine) error {
	res, err := q.ExecContext(ctx, `
UPDATE machines SET name = ?, machine_number = ?, type = ?, description = ?, status = ?, last_maintenance = ?
WHERE id = ?`,
		m.Name, m.Number, m.Type, m.Description, m.Status, formatOptTime(m.LastMaintenance), m.ID)
	if err != nil {
		return fmt.Errorf("update machine %s: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateMachine(ctx context.Context, m Machine) error {
	return updateMachine(ctx, s.db, m)
}

func getMachine(ctx context.Context, q db.DBTX, id string) (Machine, error) {
	m, err := scanMachine(q.QueryRowContext(ctx, `SELECT `+machineColumns+` FROM machines WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Machine{}, ErrNotFound
	}
	if err != nil {
		return Machine{}, fmt.Errorf("get machine %s: %w", id, err)
	}
	return m, nil
}

func (s *Store) GetMachine(ctx context.Context, id string) (Machine, error) {
	return getMachine(ctx, s.db, id)
}

// ListMachines: status が空なら全件
func (s *Store) ListMachines(ctx context.Context, status string) ([]Machine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+machineColumns+` FROM machines WHERE (? = '' OR status = ?) ORDER BY machine_number, id`, status, status)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var out []Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("list machines: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMachine: 履歴を先に消してから本体を消す
func (s *Store) DeleteMachine(ctx context.Context, id string) error {
	return s.inTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM machine_history WHERE machine_id = ?`, id); err != nil {
			return fmt.Errorf("delete machine history %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM machines WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete machine %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func insertHistory(ctx context.Context, q db.DBTX, h MachineHistory) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO machine_history (id, machine_id, machine_name, machine_number, type, description, solved_by, solution, date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.MachineID, h.MachineName, h.MachineNumber, h.Type, h.Description, h.SolvedBy, h.Solution, FormatTime(h.Date))
	if err != nil {
		return fmt.Errorf("insert machine history %s: %w", h.ID, err)
	}
	return nil
}

// TransitionMachine: 状態変更と履歴追記を1トランザクションで行う。
// mutate は現在の行を受け取り、更新後の行と追記する履歴を返す
func (s *Store) TransitionMachine(ctx context.Context, id string, mutate func(Machine) (Machine, MachineHistory, error)) (Machine, error) {
	var out Machine
	err := s.inTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		m, err := getMachine(ctx, tx, id)
		if err != nil {
			return err
		}
		next, h, err := mutate(m)
		if err != nil {
			return err
		}
		if err := updateMachine(ctx, tx, next); err != nil {
			return err
		}
		if err := insertHistory(ctx, tx, h); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

func (s *Store) queryHistory(ctx context.Context, where string, args ...any) ([]MachineHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, machine_id, machine_name, machine_number, type, description, solved_by, solution, date
FROM machine_history WHERE `+where+` ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query machine history: %w", err)
	}
	defer rows.Close()

	var out []MachineHistory
	for rows.Next() {
		var h MachineHistory
		var date string
		if err := rows.Scan(&h.ID, &h.MachineID, &h.MachineName, &h.MachineNumber, &h.Type, &h.Description, &h.SolvedBy, &h.Solution, &date); err != nil {
			return nil, fmt.Errorf("query machine history: %w", err)
		}
		h.Date, _ = ParseTime(date)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) HistoryByMachine(ctx context.Context, machineID string) ([]MachineHistory, error) {
	return s.queryHistory(ctx, `machine_id = ?`, machineID)
}

func (s *Store) AllHistory(ctx context.Context) ([]MachineHistory, error) {
	return s.queryHistory(ctx, `1 = 1`)
}
