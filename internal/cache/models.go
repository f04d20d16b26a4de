package cache

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout: 文字列比較で時系列順になる固定長 UTC 表記
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

func ParseTime(s string) (time.Time, error) { return time.Parse(TimeLayout, s) }

type User struct {
	ID                 string
	Username           string
	PasswordHash       string
	Name               string
	Role               string
	Modality           string
	Active             bool
	TotalEarnings      decimal.Decimal
	MonthlyProduction  int64
	WorkedDays         int64
	LastAttendanceDate string
	CreatedAt          time.Time
	LastSync           time.Time
}

type Operation struct {
	ID             string
	Name           string
	PaymentPerUnit decimal.Decimal
	Active         bool
	CreatedAt      time.Time
	LastSync       time.Time
}

type ProductionRecord struct {
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
	StatsPending   bool // オフライン登録時、同期で統計加算を後追いする
}

type AttendanceRecord struct {
	ID           string
	WorkerID     string
	WorkerName   string
	Date         string // YYYY-MM-DD
	EntryTime    string // HH:mm
	ExitTime     string // 空 = 未退勤
	Status       string
	CreatedAt    time.Time
	YearMonth    string
	Synced       bool
	StatsPending bool
}

type Machine struct {
	ID              string
	Name            string
	Number          string
	Type            string
	Description     string
	Status          string
	CreatedAt       time.Time
	LastMaintenance *time.Time
}

type MachineHistory struct {
	ID            string
	MachineID     string
	MachineName   string
	MachineNumber string
	Type          string
	Description   string
	SolvedBy      string
	Solution      string
	Date          time.Time
}
