package operation

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"costura-backend/internal/cache"
	"costura-backend/internal/docstore"
)

// Operation: 出来高作業（単価つき）
type Operation struct {
	ID             string
	Name           string
	PaymentPerUnit decimal.Decimal
	Active         bool
	CreatedAt      time.Time
}

// operations/{id} の形
type operationDoc struct {
	Name           string           `json:"name" validate:"required"`
	PaymentPerUnit *decimal.Decimal `json:"paymentPerUnit" validate:"required"`
	IsActive       *bool            `json:"isActive" validate:"required"`
	CreatedAt      string           `json:"createdAt" validate:"required"`
}

func newOperationDoc(o Operation) map[string]any {
	return map[string]any{
		"name":           o.Name,
		"paymentPerUnit": json.Number(o.PaymentPerUnit.String()),
		"isActive":       o.Active,
		"createdAt":      cache.FormatTime(o.CreatedAt),
	}
}

func decodeOperation(snap docstore.Snapshot) (Operation, error) {
	var d operationDoc
	if err := snap.Decode(&d); err != nil {
		return Operation{}, err
	}
	created, _ := cache.ParseTime(d.CreatedAt)
	return Operation{
		ID:             snap.ID,
		Name:           d.Name,
		PaymentPerUnit: *d.PaymentPerUnit,
		Active:         *d.IsActive,
		CreatedAt:      created,
	}, nil
}

func fromCache(c cache.Operation) Operation {
	return Operation{ID: c.ID, Name: c.Name, PaymentPerUnit: c.PaymentPerUnit, Active: c.Active, CreatedAt: c.CreatedAt}
}

func (o Operation) toCache(now time.Time) cache.Operation {
	return cache.Operation{
		ID:             o.ID,
		Name:           o.Name,
		PaymentPerUnit: o.PaymentPerUnit,
		Active:         o.Active,
		CreatedAt:      o.CreatedAt,
		LastSync:       now,
	}
}

func (o Operation) toDTO() OperationResponse {
	return OperationResponse{
		ID:             o.ID,
		Name:           o.Name,
		PaymentPerUnit: o.PaymentPerUnit.StringFixed(2),
		Active:         o.Active,
		CreatedAt:      o.CreatedAt,
	}
}
