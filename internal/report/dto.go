package report

type WorkerDayResponse struct {
	WorkerID  string `json:"worker_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	EntryTime string `json:"entry_time,omitempty"`
	ExitTime  string `json:"exit_time,omitempty"`
	Units     int64  `json:"units"`
	Earnings  string `json:"earnings"`
}

type DailyResponse struct {
	Date     string              `json:"date"`
	Workers  []WorkerDayResponse `json:"workers"`
	Present  int                 `json:"present"`
	Late     int                 `json:"late"`
	Absent   int                 `json:"absent"`
	Units    int64               `json:"units"`
	Earnings string              `json:"earnings"`
}

type DashboardResponse struct {
	ActiveWorkers int    `json:"active_workers"`
	TotalPayment  string `json:"total_payment"`
}

// ExportQuery: GET /reports/export のクエリ
type ExportQuery struct {
	Month    string `form:"month" binding:"required"`
	Kind     string `form:"kind" binding:"omitempty,oneof=production attendance"`
	Format   string `form:"format" binding:"omitempty,oneof=xlsx csv"`
	Encoding string `form:"encoding" binding:"omitempty,oneof=utf-8 windows-1252 shift_jis"`
}
