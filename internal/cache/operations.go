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

const operationColumns = `id, name, payment_per_unit, is_active, created_at, last_sync`

func scanOperation(row interface{ Scan(...any) error }) (Operation, error) {
	var o Operation
	var rate, createdAt, lastSync string
	var active int
	if err := row.Scan(&o.ID, &o.Name, &rate, &active, &createdAt, &lastSync); err != nil {
		return Operation{}, err
	}
	var err error
	if o.PaymentPerUnit, err = decimal.NewFromString(rate); err != nil {
		return Operation{}, fmt.Errorf("operation %s payment_per_unit: %w", o.ID, err)
	}
	o.Active = active != 0
	o.CreatedAt, _ = ParseTime(createdAt)
	o.LastSync, _ = ParseTime(lastSync)
	return o, nil
}

func upsertOperation(ctx context.Context, q db.DBTX, o Operation) error {
	if o.LastSync.IsZero() {
		o.LastSync = time.Now()
	}
	_, err := q.ExecContext(ctx, `
INSERT INTO operations (`+operationColumns+`) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	payment_per_unit = excluded.payment_per_unit,
	is_active = excluded.is_active,
	last_sync = excluded.last_sync`,
		o.ID, o.Name, o.PaymentPerUnit.String(), boolInt(o.Active), FormatTime(o.CreatedAt), FormatTime(o.LastSync))
	if err != nil {
		return fmt.Errorf("upsert operation %s: %w", o.ID, err)
	}
	return nil
}

func (s *Store) UpsertOperation(ctx context.Context, o Operation) error {
	return upsertOperation(ctx, s.db, o)
}

func (s *Store) UpsertOperations(ctx context.Context, ops []Operation) error {
	return s.inTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		for _, o := range ops {
			if err := upsertOperation(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetOperation(ctx context.Context, id string) (Operation, error) {
	o, err := scanOperation(s.db.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM operations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Operation{}, ErrNotFound
	}
	if err != nil {
		return Operation{}, fmt.Errorf("get operation %s: %w", id, err)
	}
	return o, nil
}

func (s *Store) ListOperations(ctx context.Context, activeOnly bool) ([]Operation, error) {
	q := `SELECT ` + operationColumns + ` FROM operations`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY name, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("list operations: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
