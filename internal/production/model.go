package production

import (
	"time"

	"github.com/shopspring/decimal"

	"costura-backend/internal/cache"
)

// Record: 出来高 1 回分。単価は登録時点の値を持つ
type Record struct {
	ID             string
	WorkerID       string
	OperationID    string
	OperationName  string
	Quantity       int64
	PaymentPerUnit decimal.Decimal
	TotalPayment   decimal.Decimal
	Date           time.Time
	YearMonth      string
	Synced         bool
}

type RegisterInput struct {
	WorkerID       string
	OperationID    string
	OperationName  string
	PaymentPerUnit decimal.Decimal
	Quantity       int64
}

// Earnings: 合計と、どこから計算したか
type Earnings struct {
	Total  decimal.Decimal
	Source string // "remote" | "local"
}

const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

func fromCache(c cache.ProductionRecord) Record {
	return Record{
		ID:             c.ID,
		WorkerID:       c.WorkerID,
		OperationID:    c.OperationID,
		OperationName:  c.OperationName,
		Quantity:       c.Quantity,
		PaymentPerUnit: c.PaymentPerUnit,
		TotalPayment:   c.TotalPayment,
		Date:           c.Date,
		YearMonth:      c.YearMonth,
		Synced:         c.Synced,
	}
}

func (r Record) toCache(statsPending bool) cache.ProductionRecord {
	return cache.ProductionRecord{
		ID:             r.ID,
		WorkerID:       r.WorkerID,
		OperationID:    r.OperationID,
		OperationName:  r.OperationName,
		Quantity:       r.Quantity,
		PaymentPerUnit: r.PaymentPerUnit,
		TotalPayment:   r.TotalPayment,
		Date:           r.Date,
		YearMonth:      r.YearMonth,
		Synced:         r.Synced,
		StatsPending:   statsPending,
	}
}

func (r Record) toDTO() RecordResponse {
	return RecordResponse{
		ID:             r.ID,
		WorkerID:       r.WorkerID,
		OperationID:    r.OperationID,
		OperationName:  r.OperationName,
		Quantity:       r.Quantity,
		PaymentPerUnit: r.PaymentPerUnit.String(),
		TotalPayment:   r.TotalPayment.StringFixed(2),
		Date:           r.Date,
		YearMonth:      r.YearMonth,
		Synced:         r.Synced,
	}
}

func sumPayments(recs []Record) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range recs {
		sum = sum.Add(r.TotalPayment)
	}
	return sum
}
