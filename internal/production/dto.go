package production

import "time"

type RegisterRequest struct {
	WorkerID    string `json:"worker_id,omitempty"` // ADMIN のみ
	OperationID string `json:"operation_id" binding:"required"`
	Quantity    int64  `json:"quantity" binding:"required"`
}

type RecordResponse struct {
	ID             string    `json:"id"`
	WorkerID       string    `json:"worker_id"`
	OperationID    string    `json:"operation_id"`
	OperationName  string    `json:"operation_name"`
	Quantity       int64     `json:"quantity"`
	PaymentPerUnit string    `json:"payment_per_unit"`
	TotalPayment   string    `json:"total_payment"`
	Date           time.Time `json:"date"`
	YearMonth      string    `json:"year_month"`
	Synced         bool      `json:"synced"`
}

type EarningsResponse struct {
	WorkerID string `json:"worker_id"`
	Total    string `json:"total"`
	Source   string `json:"source"`
}

type MonthResponse struct {
	WorkerID  string           `json:"worker_id"`
	YearMonth string           `json:"year_month"`
	Units     int64            `json:"units"`
	Earnings  string           `json:"earnings"`
	Records   []RecordResponse `json:"records"`
}

type SyncReport struct {
	Pushed int `json:"pushed"`
	Failed int `json:"failed"`
}
