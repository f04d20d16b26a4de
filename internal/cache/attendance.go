package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const attendanceColumns = `id, worker_id, worker_name, date, entry_time, exit_time, status, created_at,
	year_month, is_synced, stats_pending`

func scanAttendance(row interface{ Scan(...any) error }) (AttendanceRecord, error) {
	var a AttendanceRecord
	var exit sql.NullString
	var createdAt string
	var synced, pending int
	err := row.Scan(&a.ID, &a.WorkerID, &a.WorkerName, &a.Date, &a.EntryTime, &exit, &a.Status, &createdAt,
		&a.YearMonth, &synced, &pending)
	if err != nil {
		return AttendanceRecord{}, err
	}
	a.ExitTime = exit.String
	a.CreatedAt, _ = ParseTime(createdAt)
	a.Synced = synced != 0
	a.StatsPending = pending != 0
	return a, nil
}

// PutAttendance: id で upsert。別 id で同じ (worker, date) があれば ErrDuplicate
func (s *Store) PutAttendance(ctx context.Context, a AttendanceRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO attendance_records (`+attendanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	worker_name = excluded.worker_name,
	entry_time = excluded.entry_time,
	exit_time = excluded.exit_time,
	status = excluded.status,
	is_synced = excluded.is_synced,
	stats_pending = excluded.stats_pending`,
		a.ID, a.WorkerID, a.WorkerName, a.Date, a.EntryTime, nullString(a.ExitTime), a.Status, FormatTime(a.CreatedAt),
		a.YearMonth, boolInt(a.Synced), boolInt(a.StatsPending))
	if isUnique(err) {
		return fmt.Errorf("put attendance %s/%s: %w", a.WorkerID, a.Date, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("put attendance %s: %w", a.ID, err)
	}
	return nil
}

func (s *Store) GetAttendance(ctx context.Context, workerID, date string) (AttendanceRecord, error) {
	a, err := scanAttendance(s.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_records WHERE worker_id = ? AND date = ?`, workerID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return AttendanceRecord{}, ErrNotFound
	}
	if err != nil {
		return AttendanceRecord{}, fmt.Errorf("get attendance %s/%s: %w", workerID, date, err)
	}
	return a, nil
}

// SetExitTime: 退勤が未記録の行だけ更新する
func (s *Store) SetExitTime(ctx context.Context, id, exitTime string, synced bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attendance_records SET exit_time = ?, is_synced = ? WHERE id = ? AND (exit_time IS NULL OR exit_time = '')`,
		exitTime, boolInt(synced), id)
	if err != nil {
		return fmt.Errorf("set exit time %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAttendanceSynced(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE attendance_records SET is_synced = 1, stats_pending = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark attendance %s synced: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryAttendance(ctx context.Context, where string, args ...any) ([]AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+attendanceColumns+` FROM attendance_records WHERE `+where+` ORDER BY date DESC, worker_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var out []AttendanceRecord
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("query attendance: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UnsyncedAttendance(ctx context.Context) ([]AttendanceRecord, error) {
	return s.queryAttendance(ctx, `is_synced = 0`)
}

// AttendanceByWorkerBetween: from <= date <= to、日付の新しい順
func (s *Store) AttendanceByWorkerBetween(ctx context.Context, workerID, from, to string) ([]AttendanceRecord, error) {
	return s.queryAttendance(ctx, `worker_id = ? AND date >= ? AND date <= ?`, workerID, from, to)
}

func (s *Store) AttendanceByWorkerMonth(ctx context.Context, workerID, yearMonth string) ([]AttendanceRecord, error) {
	return s.queryAttendance(ctx, `worker_id = ? AND year_month = ?`, workerID, yearMonth)
}

func (s *Store) AttendanceByDate(ctx context.Context, date string) ([]AttendanceRecord, error) {
	return s.queryAttendance(ctx, `date = ?`, date)
}

func (s *Store) AttendanceByMonth(ctx context.Context, yearMonth string) ([]AttendanceRecord, error) {
	return s.queryAttendance(ctx, `year_month = ?`, yearMonth)
}

// PruneAttendanceBefore: 同期済みで date < before の行を削除
func (s *Store) PruneAttendanceBefore(ctx context.Context, before string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE date < ? AND is_synced = 1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune attendance: %w", err)
	}
	return res.RowsAffected()
}
