package attendance

import "time"

type EntryRequest struct {
	WorkerID   string `json:"worker_id,omitempty"` // ADMIN のみ
	WorkerName string `json:"worker_name,omitempty"`
}

type ExitRequest struct {
	WorkerID string `json:"worker_id,omitempty"`
}

type RecordResponse struct {
	ID         string    `json:"id"`
	WorkerID   string    `json:"worker_id"`
	WorkerName string    `json:"worker_name"`
	Date       string    `json:"date"`
	EntryTime  string    `json:"entry_time"`
	ExitTime   *string   `json:"exit_time"`
	Status     string    `json:"status"`
	YearMonth  string    `json:"year_month"`
	CreatedAt  time.Time `json:"created_at"`
	Synced     bool      `json:"synced"`
}

type SyncReport struct {
	Pushed int `json:"pushed"`
	Failed int `json:"failed"`
}
