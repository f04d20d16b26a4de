package production

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"costura-backend/internal/cache"
	"costura-backend/internal/docstore"
)

// users/{w}/production/{id} の形
type productionDoc struct {
	ID             string           `json:"id" validate:"required"`
	WorkerID       string           `json:"workerId" validate:"required"`
	OperationID    string           `json:"operationId" validate:"required"`
	OperationName  string           `json:"operationName"`
	Quantity       int64            `json:"quantity" validate:"gt=0"`
	PaymentPerUnit *decimal.Decimal `json:"paymentPerUnit" validate:"required"`
	TotalPayment   *decimal.Decimal `json:"totalPayment" validate:"required"`
	Date           string           `json:"date" validate:"required"`
	YearMonth      string           `json:"yearMonth" validate:"required"`
}

func toDoc(r Record) map[string]any {
	return map[string]any{
		"id":             r.ID,
		"workerId":       r.WorkerID,
		"operationId":    r.OperationID,
		"operationName":  r.OperationName,
		"quantity":       json.Number(strconv.FormatInt(r.Quantity, 10)),
		"paymentPerUnit": json.Number(r.PaymentPerUnit.String()),
		"totalPayment":   json.Number(r.TotalPayment.String()),
		"date":           cache.FormatTime(r.Date),
		"yearMonth":      r.YearMonth,
	}
}

func decodeRecord(snap docstore.Snapshot) (Record, error) {
	var d productionDoc
	if err := snap.Decode(&d); err != nil {
		return Record{}, err
	}
	date, err := cache.ParseTime(d.Date)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:             d.ID,
		WorkerID:       d.WorkerID,
		OperationID:    d.OperationID,
		OperationName:  d.OperationName,
		Quantity:       d.Quantity,
		PaymentPerUnit: *d.PaymentPerUnit,
		TotalPayment:   *d.TotalPayment,
		Date:           date,
		YearMonth:      d.YearMonth,
		Synced:         true,
	}, nil
}

type Store struct {
	remote docstore.Store
}

func NewStore(remote docstore.Store) *Store { return &Store{remote: remote} }

func (s *Store) Create(ctx context.Context, r Record) error {
	return s.remote.Create(ctx, docstore.ProductionPath(r.WorkerID, r.ID), toDoc(r), "")
}

func (s *Store) Put(ctx context.Context, r Record) error {
	return s.remote.Set(ctx, docstore.ProductionPath(r.WorkerID, r.ID), toDoc(r), "")
}

// AddEarnings: 収入と月間出来高をサーバ側で加算
func (s *Store) AddEarnings(ctx context.Context, workerID string, total decimal.Decimal, quantity int64, now string) error {
	return s.remote.Increment(ctx, docstore.UserPath(workerID),
		map[string]decimal.Decimal{
			"stats.totalEarnings":     total,
			"stats.monthlyProduction": decimal.NewFromInt(quantity),
		},
		map[string]any{"timestamps.lastActive": now},
	)
}

func (s *Store) All(ctx context.Context, workerID string) ([]docstore.Snapshot, error) {
	return s.remote.List(ctx, docstore.ProductionCollection(workerID))
}

func (s *Store) Since(ctx context.Context, workerID, since string) ([]docstore.Snapshot, error) {
	return s.remote.Query(ctx, docstore.ProductionCollection(workerID), docstore.Query{
		Where:   []docstore.Filter{docstore.Where("date", docstore.OpGte, since)},
		OrderBy: "date",
		Desc:    true,
	})
}

func (s *Store) ByMonth(ctx context.Context, workerID, yearMonth string) ([]docstore.Snapshot, error) {
	return s.remote.Query(ctx, docstore.ProductionCollection(workerID), docstore.Query{
		Where:   []docstore.Filter{docstore.Where("yearMonth", docstore.OpEq, yearMonth)},
		OrderBy: "date",
		Desc:    true,
	})
}

// mergePending: 未同期のローカル記録を足して新しい順に
func mergePending(remote []Record, local []cache.ProductionRecord) []Record {
	seen := make(map[string]struct{}, len(remote))
	for _, r := range remote {
		seen[r.ID] = struct{}{}
	}
	out := remote
	for _, l := range local {
		if l.Synced {
			continue
		}
		if _, ok := seen[l.ID]; ok {
			continue
		}
		out = append(out, fromCache(l))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
