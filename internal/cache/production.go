package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const productionColumns = `id, worker_id, operation_id, operation_name, quantity, payment_per_unit, total_payment,
	date, year_month, is_synced, stats_pending`

func scanProduction(row interface{ Scan(...any) error }) (ProductionRecord, error) {
	var p ProductionRecord
	var rate, total, date string
	var synced, pending int
	err := row.Scan(&p.ID, &p.WorkerID, &p.OperationID, &p.OperationName, &p.Quantity, &rate, &total,
		&date, &p.YearMonth, &synced, &pending)
	if err != nil {
		return ProductionRecord{}, err
	}
	if p.PaymentPerUnit, err = decimal.NewFromString(rate); err != nil {
		return ProductionRecord{}, fmt.Errorf("production %s payment_per_unit: %w", p.ID, err)
	}
	if p.TotalPayment, err = decimal.NewFromString(total); err != nil {
		return ProductionRecord{}, fmt.Errorf("production %s total_payment: %w", p.ID, err)
	}
	if p.Date, err = ParseTime(date); err != nil {
		return ProductionRecord{}, fmt.Errorf("production %s date: %w", p.ID, err)
	}
	p.Synced = synced != 0
	p.StatsPending = pending != 0
	return p, nil
}

// InsertProduction: 同じ id は上書き（リモートからの再取り込みを許す）
func (s *Store) InsertProduction(ctx context.Context, p ProductionRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO production_records (`+productionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	is_synced = excluded.is_synced,
	stats_pending = excluded.stats_pending`,
		p.ID, p.WorkerID, p.OperationID, p.OperationName, p.Quantity, p.PaymentPerUnit.String(), p.TotalPayment.String(),
		FormatTime(p.Date), p.YearMonth, boolInt(p.Synced), boolInt(p.StatsPending))
	if err != nil {
		return fmt.Errorf("insert production %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) MarkProductionSynced(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE production_records SET is_synced = 1, stats_pending = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark production %s synced: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryProduction(ctx context.Context, where string, args ...any) ([]ProductionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productionColumns+` FROM production_records WHERE `+where+` ORDER BY date DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query production: %w", err)
	}
	defer rows.Close()

	var out []ProductionRecord
	for rows.Next() {
		p, err := scanProduction(rows)
		if err != nil {
			return nil, fmt.Errorf("query production: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UnsyncedProduction(ctx context.Context) ([]ProductionRecord, error) {
	return s.queryProduction(ctx, `is_synced = 0`)
}

// ProductionByWorkerSince: since 以降（含む）、新しい順
func (s *Store) ProductionByWorkerSince(ctx context.Context, workerID string, since time.Time) ([]ProductionRecord, error) {
	return s.queryProduction(ctx, `worker_id = ? AND date >= ?`, workerID, FormatTime(since))
}

func (s *Store) ProductionByWorkerMonth(ctx context.Context, workerID, yearMonth string) ([]ProductionRecord, error) {
	return s.queryProduction(ctx, `worker_id = ? AND year_month = ?`, workerID, yearMonth)
}

// ProductionBetween: 全作業者、[from, to)
func (s *Store) ProductionBetween(ctx context.Context, from, to time.Time) ([]ProductionRecord, error) {
	return s.queryProduction(ctx, `date >= ? AND date < ?`, FormatTime(from), FormatTime(to))
}

func (s *Store) ProductionByMonth(ctx context.Context, yearMonth string) ([]ProductionRecord, error) {
	return s.queryProduction(ctx, `year_month = ?`, yearMonth)
}

// SumEarnings: decimal で合算（SQLite の SUM は浮動小数になる）
func (s *Store) SumEarnings(ctx context.Context, workerID string) (decimal.Decimal, error) {
	recs, err := s.queryProduction(ctx, `worker_id = ?`, workerID)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, r := range recs {
		sum = sum.Add(r.TotalPayment)
	}
	return sum, nil
}

func (s *Store) SumAllEarnings(ctx context.Context) (decimal.Decimal, error) {
	recs, err := s.queryProduction(ctx, `1 = 1`)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, r := range recs {
		sum = sum.Add(r.TotalPayment)
	}
	return sum, nil
}

// PruneProductionBefore: 同期済みのみ削除
func (s *Store) PruneProductionBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM production_records WHERE date < ? AND is_synced = 1`, FormatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune production: %w", err)
	}
	return res.RowsAffected()
}
