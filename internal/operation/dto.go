package operation

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateOperationRequest struct {
	ID             string           `json:"id,omitempty"`
	Name           string           `json:"name" binding:"required"`
	PaymentPerUnit *decimal.Decimal `json:"payment_per_unit" binding:"required"`
}

type UpdateOperationRequest struct {
	Name           *string          `json:"name,omitempty"`
	PaymentPerUnit *decimal.Decimal `json:"payment_per_unit,omitempty"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type OperationResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	PaymentPerUnit string    `json:"payment_per_unit"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type RefreshReport struct {
	Updated int `json:"updated"`
	Invalid int `json:"invalid"`
}
